package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/riskwatch/pkg/metrics"
)

// HealthDependencies reports model state.
type HealthDependencies interface {
	ModelsLoaded() bool
	ModelVersion() string
}

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	deps    HealthDependencies
	version string
	now     func() time.Time
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies, version string, now func() time.Time) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		version: version,
		now:     now,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

type healthResponse struct {
	Status       string    `json:"status"`
	Version      string    `json:"version"`
	ModelsLoaded bool      `json:"models_loaded"`
	ModelVersion string    `json:"model_version"`
	Timestamp    time.Time `json:"timestamp"`
}

// HandleHealth handles GET /health requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Version:      h.version,
		ModelsLoaded: h.deps.ModelsLoaded(),
		ModelVersion: h.deps.ModelVersion(),
		Timestamp:    h.now(),
	})
}

// HandleMetrics handles GET /metrics with the service registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
