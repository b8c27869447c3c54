package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

// Batch submission statuses.
const (
	BatchAccepted  = "accepted"
	BatchDuplicate = "duplicate"
	BatchRejected  = "rejected"
)

// BatchRequest asks for asynchronous assessment of several users.
type BatchRequest struct {
	BatchID        string     `json:"batch_id,omitempty"`
	UserIDs        []int64    `json:"user_ids"`
	AssessmentDate *time.Time `json:"assessment_date,omitempty"`
}

// BatchResult describes what happened to a submission.
type BatchResult struct {
	BatchID string `json:"batch_id"`
	Status  string `json:"status"`
	Jobs    int    `json:"jobs"`
}

// SubmitBatch enqueues one job per distinct user. A batch ID already seen
// returns BatchDuplicate without enqueueing. The batch is enqueued whole or
// not at all; on backpressure the ID is forgotten so it can be retried.
func (s *Service) SubmitBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	deduper, q, err := s.pipeline()
	if err != nil {
		return BatchResult{}, err
	}

	users, err := s.distinctUsers(req.UserIDs)
	if err != nil {
		metrics.RecordBatch(BatchRejected)
		return BatchResult{}, err
	}

	batchID := req.BatchID
	if batchID == "" {
		batchID = uuid.NewString()
	}
	if deduper.SeenAndRecord(ctx, batchID) {
		metrics.RecordBatch(BatchDuplicate)
		return BatchResult{BatchID: batchID, Status: BatchDuplicate}, nil
	}

	at := s.now()
	if req.AssessmentDate != nil {
		at = *req.AssessmentDate
	}
	jobs := make([]queue.Job, len(users))
	for i, id := range users {
		jobs[i] = queue.Job{
			JobID:          batchID + ":" + strconv.FormatInt(id, 10),
			BatchID:        batchID,
			UserID:         id,
			AssessmentDate: at,
		}
	}

	if !q.EnqueueAll(ctx, jobs) {
		deduper.Unrecord(ctx, batchID)
		metrics.RecordBatch(BatchRejected)
		if q.IsClosed() {
			// Stop ran after pipeline() handed out the queue.
			return BatchResult{}, fmt.Errorf("%w: batch queue closed", ErrNotStarted)
		}
		return BatchResult{}, fmt.Errorf("%w: %d jobs do not fit", ErrQueueFull, len(jobs))
	}

	metrics.RecordBatch(BatchAccepted)
	s.logger.Info(ctx, "batch accepted", logger.String("batch_id", batchID), logger.Int("jobs", len(jobs)))
	return BatchResult{BatchID: batchID, Status: BatchAccepted, Jobs: len(jobs)}, nil
}

// distinctUsers validates ids and drops repeats, keeping first-seen order.
func (s *Service) distinctUsers(ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: user_ids must not be empty", ErrInvalidRequest)
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, fmt.Errorf("%w: user_ids must be positive, got %d", ErrInvalidRequest, id)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d users exceeds the limit of %d", ErrBatchTooLarge, len(out), s.maxBatchSize)
	}
	return out, nil
}
