// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/summary"
	"github.com/okian/riskwatch/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// defaultHistoryLimit applies when GET /api/v1/risk/assessments has no limit.
const defaultHistoryLimit = 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	Assess(ctx context.Context, req service.AssessRequest) (model.Assessment, error)
	DemoOverview(ctx context.Context) (service.DemoOverview, error)
	Demo(ctx context.Context, level string) (model.Assessment, error)
	BatchSummary(ctx context.Context) (summary.Report, error)
	SubmitBatch(ctx context.Context, req service.BatchRequest) (service.BatchResult, error)
	Assessment(ctx context.Context, id string) (model.Assessment, error)
	Assessments(ctx context.Context, limit int) ([]model.Assessment, error)
	MaxHistoryLimit() int
	PutBehavior(ctx context.Context, userID int64, b model.Behavior) (bool, error)
	ModelsLoaded() bool
	ModelVersion() string
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	riskHandler     *RiskHandler
	batchHandler    *BatchHandler
	historyHandler  *HistoryHandler
	behaviorHandler *BehaviorHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := options{version: "1.0.0", now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("http")
	}
	return &Server{
		healthHandler:   NewHealthHandler(deps, o.version, o.now),
		statsHandler:    NewStatsHandler(statsProvider),
		riskHandler:     NewRiskHandler(deps, o.logger),
		batchHandler:    NewBatchHandler(deps, o.logger),
		historyHandler:  NewHistoryHandler(deps, o.logger),
		behaviorHandler: NewBehaviorHandler(deps, o.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(pattern, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(pattern, MetricsMiddleware(h, endpoint))
	}

	route("GET /health", "health", s.healthHandler.HandleHealth)
	route("GET /metrics", "metrics", s.healthHandler.HandleMetrics)
	route("GET /stats", "stats", s.statsHandler.HandleStats)

	route("POST /api/v1/risk/assess", "assess", s.riskHandler.HandleAssess)
	route("GET /api/v1/risk/demo/overview", "demo_overview", s.riskHandler.HandleDemoOverview)
	route("GET /api/v1/risk/demo/{risk_level}", "demo", s.riskHandler.HandleDemo)

	route("POST /api/v1/risk/batch", "batch", s.batchHandler.HandleSubmit)
	route("GET /api/v1/risk/batch-summary", "batch_summary", s.batchHandler.HandleSummary)

	route("GET /api/v1/risk/assessments", "assessments", s.historyHandler.HandleList)
	route("GET /api/v1/risk/assessments/{id}", "assessment", s.historyHandler.HandleGet)

	route("PUT /api/v1/users/{user_id}/behavior", "behavior", s.behaviorHandler.HandlePut)
}

// Option configures the Server.
type Option func(*options)

type options struct {
	version string
	now     func() time.Time
	logger  logger.Logger
}

// WithVersion sets the API version reported by /health.
func WithVersion(v string) Option {
	return func(o *options) {
		if v != "" {
			o.version = v
		}
	}
}

// WithClock overrides the time source used by /health.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// classify maps an error to its HTTP status and error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrUnknownDemoLevel):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrBatchTooLarge):
		return http.StatusBadRequest, "batch_too_large"
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrAssessmentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes err with the status derived from its kind. Server errors are
// logged; their details are not returned to the client.
func fail(ctx context.Context, log logger.Logger, w http.ResponseWriter, op string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
		writeError(w, status, code, nil)
		return
	}
	writeError(w, status, code, err)
}

// decodeJSON reads a single JSON document into v, rejecting unknown fields.
func decodeJSON(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("invalid JSON body: trailing data")
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain dates (YYYY-MM-DD, UTC).
// An empty string yields nil.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil //nolint:nilnil // absent date
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid assessment_date %q: use RFC 3339 or YYYY-MM-DD", s)
}
