package api

import (
	"net/http"

	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// RiskHandler serves single-user and demo assessments.
type RiskHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRiskHandler creates a new risk handler.
func NewRiskHandler(deps Dependencies, log logger.Logger) *RiskHandler {
	return &RiskHandler{deps: deps, logger: log}
}

// assessRequest mirrors the OpenAPI schema for POST /api/v1/risk/assess.
type assessRequest struct {
	UserID         int64           `json:"user_id"`
	AssessmentDate string          `json:"assessment_date,omitempty"`
	Behavior       *model.Behavior `json:"behavior,omitempty"`
}

// HandleAssess handles POST /api/v1/risk/assess.
func (h *RiskHandler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	const op = "api.assess"
	var req assessRequest
	if err := decodeJSON(r, w, &req); err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	at, err := parseDate(req.AssessmentDate)
	if err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}

	a, err := h.deps.Assess(r.Context(), service.AssessRequest{
		UserID:         req.UserID,
		AssessmentDate: at,
		Behavior:       req.Behavior,
	})
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// HandleDemoOverview handles GET /api/v1/risk/demo/overview.
func (h *RiskHandler) HandleDemoOverview(w http.ResponseWriter, r *http.Request) {
	const op = "api.demo_overview"
	overview, err := h.deps.DemoOverview(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// HandleDemo handles GET /api/v1/risk/demo/{risk_level}.
func (h *RiskHandler) HandleDemo(w http.ResponseWriter, r *http.Request) {
	const op = "api.demo"
	a, err := h.deps.Demo(r.Context(), r.PathValue("risk_level"))
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
