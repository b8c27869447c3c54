package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/riskwatch/internal/adapters/mq/queue"
	"github.com/okian/riskwatch/internal/adapters/mq/worker"
	"github.com/okian/riskwatch/internal/domain/model"
	logging "github.com/okian/riskwatch/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing.
type mockQueue struct {
	jobs chan queue.Job
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan queue.Job, 128)}
}

func (mq *mockQueue) Dequeue(_ context.Context) <-chan queue.Job {
	return mq.jobs
}

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

func (mq *mockQueue) add(userID int64) {
	mq.jobs <- queue.Job{
		JobID:          fmt.Sprintf("job-%d", userID),
		BatchID:        "batch-1",
		UserID:         userID,
		AssessmentDate: time.Now(),
	}
}

type mockAssessor struct {
	mu     sync.RWMutex
	errors map[int64]error
}

func newMockAssessor() *mockAssessor {
	return &mockAssessor{errors: make(map[int64]error)}
}

func (ma *mockAssessor) AssessUser(_ context.Context, userID int64, at time.Time) (model.Assessment, error) {
	ma.mu.RLock()
	defer ma.mu.RUnlock()
	if err, ok := ma.errors[userID]; ok {
		return model.Assessment{}, err
	}
	return model.Assessment{
		AssessmentID:     fmt.Sprintf("assessment-%d", userID),
		UserID:           userID,
		AssessmentDate:   at,
		OverallRiskLevel: model.RiskLow,
	}, nil
}

func (ma *mockAssessor) setError(userID int64, err error) {
	ma.mu.Lock()
	defer ma.mu.Unlock()
	ma.errors[userID] = err
}

type mockRecorder struct {
	mu     sync.RWMutex
	saved  map[int64]model.Assessment
	errors map[int64]error
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{saved: make(map[int64]model.Assessment), errors: make(map[int64]error)}
}

func (mr *mockRecorder) Save(_ context.Context, a model.Assessment) error {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if err, ok := mr.errors[a.UserID]; ok {
		return err
	}
	mr.saved[a.UserID] = a
	return nil
}

func (mr *mockRecorder) get(userID int64) (model.Assessment, bool) {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	a, ok := mr.saved[userID]
	return a, ok
}

func (mr *mockRecorder) count() int {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return len(mr.saved)
}

func (mr *mockRecorder) setError(userID int64, err error) {
	mr.mu.Lock()
	defer mr.mu.Unlock()
	mr.errors[userID] = err
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		assessor := newMockAssessor()
		recorder := newMockRecorder()
		w := worker.NewInMemoryWorker(q, assessor, recorder, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a job is processed", func() {
			q.add(12345)
			convey.So(waitFor(func() bool { return recorder.count() == 1 }), convey.ShouldBeTrue)

			convey.Convey("Then the saved assessment carries the batch metadata", func() {
				a, ok := recorder.get(12345)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(a.Metadata[worker.MetadataBatchID], convey.ShouldEqual, "batch-1")
				convey.So(a.Metadata[worker.MetadataJobID], convey.ShouldEqual, "job-12345")
				convey.So(a.Metadata[worker.MetadataAssessedBy], convey.ShouldEqual, "test-worker")
				convey.So(waitFor(func() bool { return w.Stats().Processed == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When assessment fails", func() {
			assessor.setError(1, fmt.Errorf("profile: %w", worker.ErrUnknownUser))
			q.add(1)
			q.add(2)

			convey.Convey("Then the job is counted as failed and later jobs still run", func() {
				convey.So(waitFor(func() bool { return recorder.count() == 1 }), convey.ShouldBeTrue)
				_, saved := recorder.get(1)
				convey.So(saved, convey.ShouldBeFalse)
				convey.So(waitFor(func() bool { return w.Stats().Failed == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When saving fails", func() {
			recorder.setError(3, errors.New("disk full"))
			q.add(3)

			convey.Convey("Then nothing is recorded", func() {
				convey.So(waitFor(func() bool { return w.Stats().Failed == 1 }), convey.ShouldBeTrue)
				_, saved := recorder.get(3)
				convey.So(saved, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool", t, func() {
		_ = logging.Init()

		q := newMockQueue()
		assessor := newMockAssessor()
		recorder := newMockRecorder()

		convey.Convey("When created with a non-positive count", func() {
			pool := worker.NewPool(0, q, assessor, recorder)
			convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("When many jobs arrive concurrently", func() {
			pool := worker.NewPool(4, q, assessor, recorder)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			pool.Start(ctx)

			const jobs = 100
			var wg sync.WaitGroup
			for p := 0; p < 5; p++ {
				wg.Add(1)
				go func(p int) {
					defer wg.Done()
					for k := 0; k < jobs/5; k++ {
						q.add(int64(p*1000 + k))
					}
				}(p)
			}
			wg.Wait()

			convey.Convey("Then every job is processed once", func() {
				convey.So(waitFor(func() bool { return pool.Stats().Processed == jobs }), convey.ShouldBeTrue)
				convey.So(recorder.count(), convey.ShouldEqual, jobs)
				convey.So(pool.Stats().Failed, convey.ShouldEqual, 0)
			})

			convey.Convey("Then shutdown drains the queue and returns", func() {
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer shutdownCancel()
				convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
				convey.So(recorder.count(), convey.ShouldEqual, jobs)
			})
		})
	})
}
