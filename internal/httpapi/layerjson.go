package httpapi

import (
	"github.com/sogelink-research/ctod/internal/dataset"
	"github.com/sogelink-research/ctod/internal/tms"
)

// availableRange is one zoom level's covered tile range, in the shape
// Cesium's CesiumTerrainProvider expects a layer.json's "available"
// array to carry.
type availableRange struct {
	StartX int `json:"startX"`
	StartY int `json:"startY"`
	EndX   int `json:"endX"`
	EndY   int `json:"endY"`
}

// layerJSON is the tile-set descriptor served at every */layer.json
// route (spec.md §6).
type layerJSON struct {
	TilejsonVersion string             `json:"tilejson"`
	Name            string             `json:"name"`
	Format          string             `json:"format"`
	Scheme          string             `json:"scheme"`
	Tiles           []string           `json:"tiles"`
	Projection      string             `json:"projection"`
	Bounds          [4]float64         `json:"bounds"`
	CogBounds       [4]float64         `json:"cogBounds"`
	MinZoom         int                `json:"minzoom"`
	MaxZoom         int                `json:"maxzoom"`
	Available       [][]availableRange `json:"available"`
}

// buildLayerJSON reports ds's footprint and the zoom-by-zoom tile range
// covering it, so a Cesium client knows which tiles to request without
// probing for 404s.
func buildLayerJSON(ds *dataset.Dataset, tmsImpl tms.TileMatrixSet, tilesURLTemplate string) layerJSON {
	west, south, east, north := -180.0, -90.0, 180.0, 90.0
	if fp, ok := ds.Reader.Footprint(); ok {
		west, south, east, north = fp.West, fp.South, fp.East, fp.North
	}

	minZoom, maxZoom := ds.Options.MinZoom, ds.Options.MaxZoom
	available := availableRanges(tmsImpl, west, south, east, north, minZoom, maxZoom)

	return layerJSON{
		TilejsonVersion: "2.1.0",
		Name:            ds.Name,
		Format:          "quantized-mesh-1.0",
		Scheme:          "tms",
		Tiles:           []string{tilesURLTemplate},
		Projection:      tmsImpl.ID(),
		Bounds:          [4]float64{west, south, east, north},
		CogBounds:       [4]float64{west, south, east, north},
		MinZoom:         minZoom,
		MaxZoom:         maxZoom,
		Available:       available,
	}
}

// availableRanges computes the per-zoom tile range covering
// (west,south,east,north) for zoom levels minZoom..maxZoom, inclusive.
// Split out from buildLayerJSON so the tile-range math is testable
// without a real opened dataset.
func availableRanges(tmsImpl tms.TileMatrixSet, west, south, east, north float64, minZoom, maxZoom int) [][]availableRange {
	if maxZoom < minZoom {
		return nil
	}
	ranges := make([][]availableRange, 0, maxZoom-minZoom+1)
	for z := minZoom; z <= maxZoom; z++ {
		x0, y0 := tmsImpl.TileForPoint(z, west, north)
		x1, y1 := tmsImpl.TileForPoint(z, east, south)
		if x0 > x1 {
			x0, x1 = x1, x0
		}
		if y0 > y1 {
			y0, y1 = y1, y0
		}
		ranges = append(ranges, []availableRange{{StartX: x0, StartY: y0, EndX: x1, EndY: y1}})
	}
	return ranges
}
