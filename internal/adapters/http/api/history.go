package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// HistoryHandler serves stored assessments.
type HistoryHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps Dependencies, log logger.Logger) *HistoryHandler {
	return &HistoryHandler{deps: deps, logger: log}
}

type historyResponse struct {
	Limit       int                `json:"limit"`
	Count       int                `json:"count"`
	Assessments []model.Assessment `json:"assessments"`
}

// HandleList handles GET /api/v1/risk/assessments?limit=N.
// limit defaults to 20 and is capped by the configured maximum.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_assessments"
	limit := min(defaultHistoryLimit, h.deps.MaxHistoryLimit())
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, errors.New("limit must be a positive integer")))
			return
		}
		limit = min(n, h.deps.MaxHistoryLimit())
	}

	list, err := h.deps.Assessments(r.Context(), limit)
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	if list == nil {
		list = []model.Assessment{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Limit: limit, Count: len(list), Assessments: list})
}

// HandleGet handles GET /api/v1/risk/assessments/{id}.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_assessment"
	a, err := h.deps.Assessment(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, a)
}
