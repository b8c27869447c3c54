// Package worker runs batch assessment jobs pulled from the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Job outcomes reported to metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeAssessError = "assess_error"
	OutcomeRecordError = "record_error"
	OutcomeUnknownUser = "unknown_user"
)

// Metadata keys added to assessments produced by batch jobs.
const (
	MetadataBatchID    = "batch_id"
	MetadataJobID      = "job_id"
	MetadataAssessedBy = "assessed_by"
)

// ErrUnknownUser may be wrapped by an Assessor when the job's user has no profile.
var ErrUnknownUser = errors.New("unknown user")

// Assessor produces an assessment for a known user.
type Assessor interface {
	AssessUser(ctx context.Context, userID int64, at time.Time) (model.Assessment, error)
}

// Recorder persists a finished assessment.
type Recorder interface {
	Save(ctx context.Context, a model.Assessment) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs using the provided interfaces.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// Stats counts processed jobs.
type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	assessor Assessor
	recorder Recorder
	name     string

	processed *atomic.Int64
	failed    *atomic.Int64

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, assessor Assessor, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		assessor:  assessor,
		recorder:  recorder,
		name:      "worker",
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "batch job failed",
					logger.String("job_id", j.JobID),
					logger.String("batch_id", j.BatchID),
					logger.Int64("user_id", j.UserID),
					logger.Error(err),
				)
			}
		}
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Stats returns the jobs counted by this worker (shared across a pool).
func (w *InMemoryWorker) Stats() Stats {
	return Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error {
	start := time.Now()
	outcome := OutcomeSuccess
	defer func() {
		metrics.RecordWorkerJob(outcome, float64(time.Since(start).Microseconds())/1000)
		if outcome == OutcomeSuccess {
			w.processed.Add(1)
		} else {
			w.failed.Add(1)
			metrics.RecordErrorByComponent("worker", outcome)
		}
	}()

	a, err := w.assessor.AssessUser(ctx, j.UserID, j.AssessmentDate)
	if err != nil {
		outcome = OutcomeAssessError
		if errors.Is(err, ErrUnknownUser) {
			outcome = OutcomeUnknownUser
		}
		return fmt.Errorf("assess user %d: %w", j.UserID, err)
	}

	if a.Metadata == nil {
		a.Metadata = make(map[string]string, 3)
	}
	a.Metadata[MetadataBatchID] = j.BatchID
	a.Metadata[MetadataJobID] = j.JobID
	a.Metadata[MetadataAssessedBy] = w.name

	if err := w.recorder.Save(ctx, a); err != nil {
		outcome = OutcomeRecordError
		return fmt.Errorf("save assessment %s: %w", a.AssessmentID, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	processed *atomic.Int64
	failed    *atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. workerCount < 1 selects a CPU-based default.
func NewPool(workerCount int, q Queue, assessor Assessor, recorder Recorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	p := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		failed:    new(atomic.Int64),
		logger:    logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		w := NewInMemoryWorker(q, assessor, recorder, WithName("worker-"+strconv.Itoa(i)))
		w.processed, w.failed = p.processed, p.failed
		p.workers[i] = w
	}

	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Stats returns jobs processed and failed across the pool.
func (p *Pool) Stats() Stats {
	return Stats{Processed: p.processed.Load(), Failed: p.failed.Load()}
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue so workers drain remaining jobs, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
