package api

import (
	"net/http"

	service "github.com/okian/riskwatch/internal/app"
	"github.com/okian/riskwatch/pkg/logger"
)

// BatchHandler accepts batch submissions and serves the batch summary.
type BatchHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deps Dependencies, log logger.Logger) *BatchHandler {
	return &BatchHandler{deps: deps, logger: log}
}

// batchRequest mirrors the OpenAPI schema for POST /api/v1/risk/batch.
type batchRequest struct {
	BatchID        string  `json:"batch_id,omitempty"`
	UserIDs        []int64 `json:"user_ids"`
	AssessmentDate string  `json:"assessment_date,omitempty"`
}

type batchResponse struct {
	service.BatchResult
	Duplicate bool `json:"duplicate"`
}

// HandleSubmit handles POST /api/v1/risk/batch.
// 202 when accepted, 200 for an already seen batch_id, 429 on backpressure.
func (h *BatchHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_batch"
	var req batchRequest
	if err := decodeJSON(r, w, &req); err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	at, err := parseDate(req.AssessmentDate)
	if err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.SubmitBatch(r.Context(), service.BatchRequest{
		BatchID:        req.BatchID,
		UserIDs:        req.UserIDs,
		AssessmentDate: at,
	})
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}

	if res.Status == service.BatchDuplicate {
		writeJSON(w, http.StatusOK, batchResponse{BatchResult: res, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{BatchResult: res})
}

// HandleSummary handles GET /api/v1/risk/batch-summary.
func (h *BatchHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	const op = "api.batch_summary"
	rep, err := h.deps.BatchSummary(r.Context())
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
