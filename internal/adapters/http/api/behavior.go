package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// BehaviorHandler registers behaviour summaries.
type BehaviorHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewBehaviorHandler creates a new behaviour handler.
func NewBehaviorHandler(deps Dependencies, log logger.Logger) *BehaviorHandler {
	return &BehaviorHandler{deps: deps, logger: log}
}

type behaviorResponse struct {
	UserID  int64          `json:"user_id"`
	Created bool           `json:"created"`
	Summary model.Behavior `json:"behavior"`
}

// HandlePut handles PUT /api/v1/users/{user_id}/behavior.
// 201 when the user is new, 200 when an existing summary was replaced.
func (h *BehaviorHandler) HandlePut(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_behavior"
	userID, err := strconv.ParseInt(r.PathValue("user_id"), 10, 64)
	if err != nil || userID < 1 {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, errors.New("user_id must be a positive integer")))
		return
	}
	var b model.Behavior
	if err := decodeJSON(r, w, &b); err != nil {
		fail(r.Context(), h.logger, w, op, WrapKind(op, ErrBadRequest, err))
		return
	}

	created, err := h.deps.PutBehavior(r.Context(), userID, b)
	if err != nil {
		fail(r.Context(), h.logger, w, op, Wrap(op, err))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, behaviorResponse{UserID: userID, Created: created, Summary: b})
}
