// Package site serves the API landing route.
package site

import (
	"context"
	"encoding/json"
	"net/http"
)

// Welcome is the body returned by GET /.
type Welcome struct {
	Message       string `json:"message"`
	Documentation string `json:"documentation"`
	HealthCheck   string `json:"health_check"`
	OpenAPI       string `json:"openapi"`
}

// Register attaches the landing route to mux. Only the exact root path is
// matched; every other unknown path stays 404.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc("GET /{$}", NewRootHandler().HandleRoot)
}

// RootHandler handles root path requests.
type RootHandler struct {
	body Welcome
}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{body: Welcome{
		Message:       "Gambling Harm Prevention API",
		Documentation: "/docs",
		HealthCheck:   "/health",
		OpenAPI:       "/openapi.yaml",
	}}
}

// HandleRoot handles GET / with links to the documentation and health check.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(h.body)
}
