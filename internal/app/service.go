// Package service wires the risk engine, stores and batch pipeline together
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/adapters/mq/worker"
	"github.com/okian/riskwatch/internal/adapters/repository"
	"github.com/okian/riskwatch/internal/domain/dedupe"
	"github.com/okian/riskwatch/internal/domain/risk"
	"github.com/okian/riskwatch/internal/domain/summary"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

// Service implements the API dependencies for the risk assessment system.
type Service struct {
	mu sync.RWMutex

	// Core components
	engine      *risk.Engine
	profiles    repository.ProfileStore
	assessments repository.AssessmentStore
	deduper     dedupe.Deduper
	queue       queue.Queue
	pool        *worker.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	maxBatchSize    int
	maxHistoryLimit int
	performance     summary.Performance

	// State
	started   bool
	startedAt time.Time
	now       func() time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithProfileStore sets the behaviour profile store.
func WithProfileStore(store repository.ProfileStore) Option {
	return func(s *Service) {
		if store != nil {
			s.profiles = store
		}
	}
}

// WithAssessmentStore sets the assessment store. The service closes it on Stop.
func WithAssessmentStore(store repository.AssessmentStore) Option {
	return func(s *Service) {
		if store != nil {
			s.assessments = store
		}
	}
}

// WithWorkerCount sets the number of batch workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the batch job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many batch IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxBatchSize caps the number of users in one batch.
func WithMaxBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.maxBatchSize = size
		}
	}
}

// WithMaxHistoryLimit caps the number of assessments listed at once.
func WithMaxHistoryLimit(limit int) Option {
	return func(s *Service) {
		if limit > 0 {
			s.maxHistoryLimit = limit
		}
	}
}

// WithPerformance sets the model accuracies reported by the batch summary.
func WithPerformance(p summary.Performance) Option {
	return func(s *Service) {
		s.performance = p
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service around engine. Stores default to empty in-memory
// implementations.
func New(engine *risk.Engine, opts ...Option) *Service {
	s := &Service{
		engine:          engine,
		workerCount:     runtime.NumCPU() * 2,
		queueSize:       10_000,
		dedupeSize:      10_000,
		maxBatchSize:    1_000,
		maxHistoryLimit: 100,
		performance: summary.Performance{
			SevenDayAccuracy:  72.7,
			ThirtyDayAccuracy: 64.5,
			TargetAccuracy:    70.0,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.profiles == nil {
		s.profiles = repository.NewInMemoryProfileStore()
	}
	if s.assessments == nil {
		s.assessments = repository.NewInMemoryAssessmentStore()
	}
	return s
}

// Start initializes the batch pipeline and starts the worker pool. Cancelling
// ctx does not stop the workers; only Stop does, after the queue is drained.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.engine == nil {
		return errors.New("service requires a risk engine")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.workerCount, s.queue, s, s.assessments)
	s.pool.Start(context.WithoutCancel(ctx))

	metrics.SetModelsLoaded(s.engine.ModelsLoaded())
	metrics.UpdateProfilesTotal(s.profiles.Count(ctx))
	metrics.UpdateAssessmentsStored(s.assessments.Count(ctx))

	s.started = true
	s.startedAt = s.now()
	s.logger.Info(ctx, "risk service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Bool("models_loaded", s.engine.ModelsLoaded()),
		logger.String("model_version", s.engine.ModelVersion()),
	)
	return nil
}

// Stop drains the batch queue, waits for workers and closes the assessment store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping risk service")

	var errs []error
	if err := s.pool.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.assessments.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close assessment store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "risk service stopped")
	return errors.Join(errs...)
}

// ModelsLoaded reports whether trained models are active.
func (s *Service) ModelsLoaded() bool {
	return s.engine.ModelsLoaded()
}

// ModelVersion returns the version stamped on assessments.
func (s *Service) ModelVersion() string {
	return s.engine.ModelVersion()
}

// pipeline returns the batch components, or ErrNotStarted.
func (s *Service) pipeline() (dedupe.Deduper, queue.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.deduper, s.queue, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"maxBatchSize":  s.maxBatchSize,
		"modelsLoaded":  s.engine.ModelsLoaded(),
		"modelVersion":  s.engine.ModelVersion(),
		"profiles":      s.profiles.Count(ctx),
		"assessments":   s.assessments.Count(ctx),
		"goroutines":    runtime.NumGoroutine(),
		"dedupeEntries": int64(0),
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		jobs := s.pool.Stats()

		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.deduper.Size()
		stats["jobsProcessed"] = jobs.Processed
		stats["jobsFailed"] = jobs.Failed
		stats["uptimeSeconds"] = int64(s.now().Sub(s.startedAt).Seconds())

		metrics.UpdateQueueSize(queueLen, s.queueSize)
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return stats
}
