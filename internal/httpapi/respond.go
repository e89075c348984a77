// Package httpapi implements the HTTP surface of spec.md §6: the
// dynamic and named-dataset tile/layer.json endpoints, liveness, and
// generated API docs, wired with github.com/go-chi/chi/v5.
//
// File: respond.go
// Purpose: uniform JSON response helpers, matching the {error, message}
// failure shape of spec.md §7.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sogelink-research/ctod/internal/ctoderr"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RespondJSON writes v as a JSON body with the given status code.
func RespondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("httpapi: encode response body", "error", err)
	}
}

// RespondError maps err to a status code via ctoderr.HTTPStatus and
// writes the {error, message} body of spec.md §7. Internal-kind
// messages are replaced with a generic string so no internal detail
// leaks to the client.
func RespondError(w http.ResponseWriter, err error) {
	kind := ctoderr.KindOf(err)
	status := ctoderr.HTTPStatus(kind)

	msg := err.Error()
	if kind == ctoderr.Internal {
		msg = "internal error"
	}
	RespondJSON(w, status, errorBody{Error: string(kind), Message: msg})
}
