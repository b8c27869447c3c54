// Package queue holds batch assessment jobs between the HTTP layer and the
// worker pool.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/riskwatch/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
)

// Job asks the worker pool to assess one user as part of a batch.
type Job struct {
	JobID          string
	BatchID        string
	UserID         int64
	AssessmentDate time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, j Job) bool

	// EnqueueAll adds every job or none of them.
	EnqueueAll(ctx context.Context, jobs []Job) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel will be closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Cap returns the queue capacity.
	Cap() int

	// Close gracefully shuts down the queue.
	// After closing, no new jobs can be enqueued and the dequeue channel will be closed.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0, q.capacity)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.acceptable(ctx, 1) {
		return false
	}
	return q.push(ctx, j)
}

// EnqueueAll adds all jobs when there is room for every one of them.
// Concurrent enqueues are excluded while the batch is pushed, so a batch
// that passed the capacity check cannot be split.
func (q *InMemoryQueue) EnqueueAll(ctx context.Context, jobs []Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.acceptable(ctx, len(jobs)) {
		return false
	}
	for _, j := range jobs {
		if !q.push(ctx, j) {
			return false
		}
	}
	return true
}

// acceptable reports whether n more jobs fit. Callers hold q.mu.
func (q *InMemoryQueue) acceptable(ctx context.Context, n int) bool {
	switch {
	case q.closed:
		q.reject("closed")
		return false
	case ctx.Err() != nil:
		q.reject("context_cancelled")
		return false
	case len(q.jobs)+n > q.capacity:
		q.reject("capacity_exceeded")
		return false
	}
	return true
}

func (q *InMemoryQueue) push(ctx context.Context, j Job) bool {
	select {
	case q.jobs <- j:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.jobs), q.capacity)
		return true
	case <-ctx.Done():
		q.reject("context_cancelled")
		return false
	default:
		q.reject("queue_full")
		return false
	}
}

func (q *InMemoryQueue) reject(reason string) {
	metrics.RecordQueueEnqueueError(reason)
	metrics.RecordErrorByComponent("queue", reason)
}

// Dequeue returns a channel that will receive jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				select {
				case out <- j:
					metrics.RecordQueueDequeue()
					metrics.UpdateQueueSize(len(q.jobs), q.capacity)
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size, q.capacity)
	return size
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int {
	return q.capacity
}

// Close gracefully shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
