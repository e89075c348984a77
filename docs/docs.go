// Package docs registers the generated OpenAPI spec for
// cmd/ctod-server's swag annotations with swaggo/http-swagger. Normally
// produced by `swag init`; hand-maintained here to match what that
// command would emit from the `@title`/`@Description` annotations in
// cmd/ctod-server/main.go. The paths it lists are written by hand; the
// handler files under internal/httpapi carry no swag annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {"name": "MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "tags": ["status"],
                "summary": "Liveness probe",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/tiles/dynamic/layer.json": {
            "get": {
                "tags": ["tiles"],
                "summary": "TileJSON-style descriptor for a cog= given inline",
                "parameters": [
                    {"name": "cog", "in": "query", "required": true, "type": "string"},
                    {"name": "minZoom", "in": "query", "type": "integer"},
                    {"name": "maxZoom", "in": "query", "type": "integer"},
                    {"name": "noData", "in": "query", "type": "number"},
                    {"name": "resamplingMethod", "in": "query", "type": "string"},
                    {"name": "meshingMethod", "in": "query", "type": "string"},
                    {"name": "defaultGridSize", "in": "query", "type": "integer"},
                    {"name": "zoomGridSizes", "in": "query", "type": "string"},
                    {"name": "defaultMaxError", "in": "query", "type": "number"},
                    {"name": "zoomMaxErrors", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "400": {"description": "BadRequest"}}
            }
        },
        "/tiles/dynamic/{z}/{x}/{y}.terrain": {
            "get": {
                "tags": ["tiles"],
                "summary": "Quantized-mesh tile synthesized from a cog= given inline",
                "parameters": [
                    {"name": "z", "in": "path", "required": true, "type": "integer"},
                    {"name": "x", "in": "path", "required": true, "type": "integer"},
                    {"name": "y", "in": "path", "required": true, "type": "integer"},
                    {"name": "cog", "in": "query", "required": true, "type": "string"},
                    {"name": "skipCache", "in": "query", "type": "boolean"}
                ],
                "produces": ["application/vnd.quantized-mesh;extensions=octvertexnormals"],
                "responses": {"200": {"description": "OK"}, "413": {"description": "UnsafeRequest"}}
            }
        },
        "/tiles/{dataset}/layer.json": {
            "get": {
                "tags": ["tiles"],
                "summary": "TileJSON-style descriptor for a named configured dataset",
                "parameters": [
                    {"name": "dataset", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "NoSuchDataset"}}
            }
        },
        "/tiles/{dataset}/{z}/{x}/{y}.terrain": {
            "get": {
                "tags": ["tiles"],
                "summary": "Quantized-mesh tile for a named configured dataset",
                "parameters": [
                    {"name": "dataset", "in": "path", "required": true, "type": "string"},
                    {"name": "z", "in": "path", "required": true, "type": "integer"},
                    {"name": "x", "in": "path", "required": true, "type": "integer"},
                    {"name": "y", "in": "path", "required": true, "type": "integer"},
                    {"name": "skipCache", "in": "query", "type": "boolean"}
                ],
                "produces": ["application/vnd.quantized-mesh;extensions=octvertexnormals"],
                "responses": {"200": {"description": "OK"}, "404": {"description": "NoSuchDataset"}}
            }
        }
    }
}`

// SwaggerInfo holds exported swagger spec, filled by cmd/ctod-server's
// package-level annotations at `swag init` time.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Cesium Terrain On Demand",
	Description:      "Serves quantized-mesh terrain tiles synthesized from a COG",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
