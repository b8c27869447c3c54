package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/pkg/logger"
)

// rejectedBackoff is the pause before resubmitting a batch the queue refused.
const rejectedBackoff = 200 * time.Millisecond

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	log := logger.Get().Named("loadtest")
	client := NewClient(cfg.BaseURL, cfg.Timeout)
	stats := &Stats{RunID: uuid.NewString(), StartTime: time.Now()}

	log.Info(ctx, "starting load run",
		logger.String("run_id", stats.RunID),
		logger.String("base_url", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("workers", cfg.Workers),
		logger.Int("batch_size", cfg.BatchSize),
		logger.Duration("wait", cfg.Wait),
	)

	// Step 1: Check service health
	h, err := client.Health(ctx)
	if err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}
	log.Info(ctx, "service is healthy",
		logger.String("version", h.Version),
		logger.Bool("models_loaded", h.ModelsLoaded),
		logger.String("model_version", h.ModelVersion))

	before, err := client.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("read service stats: %w", err)
	}

	// Step 2: Generate and register behaviour summaries
	profiles := Generate(cfg.Users, cfg.Seed)
	stats.UsersGenerated = len(profiles)
	registered, err := register(ctx, &cfg, client, log, profiles, stats)
	if err != nil {
		return nil, fmt.Errorf("register users: %w", err)
	}

	// Step 3: Submit batches
	deadline := time.Now().Add(cfg.Wait)
	if err := submit(ctx, &cfg, client, log, registered, deadline, stats); err != nil {
		return nil, fmt.Errorf("submit batches: %w", err)
	}

	// Step 4: Wait for the workers
	if err := await(ctx, &cfg, client, before, deadline, stats); err != nil {
		return nil, err
	}

	// Step 5: Read the summary
	if rep, err := client.BatchSummary(ctx); err != nil {
		log.Warn(ctx, "batch summary unavailable", logger.Error(err))
	} else {
		stats.Summary = &rep
	}

	stats.Duration = time.Since(stats.StartTime)
	log.Info(ctx, "load run finished",
		logger.Int("users_created", stats.UsersCreated),
		logger.Int("register_failed", stats.RegisterFailed),
		logger.Int("jobs_queued", stats.JobsQueued),
		logger.Int64("jobs_processed", stats.JobsProcessed),
		logger.Int64("jobs_failed", stats.JobsFailed),
		logger.Bool("complete", stats.Complete),
		logger.Duration("duration", stats.Duration),
	)
	if !stats.Complete {
		return stats, ErrIncomplete
	}
	return stats, nil
}

// register PUTs every profile with at most cfg.Workers requests in flight and
// returns the IDs the service accepted, in generation order.
func register(ctx context.Context, cfg *Config, client *Client, log logger.Logger, profiles []model.Profile, stats *Stats) ([]int64, error) {
	var created, replaced, failed atomic.Int64
	ok := make([]bool, len(profiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, p := range profiles {
		g.Go(func() error {
			isNew, err := client.PutBehavior(gctx, p.UserID, p.Behavior)
			switch {
			case err == nil && isNew:
				created.Add(1)
			case err == nil:
				replaced.Add(1)
			case gctx.Err() != nil:
				return gctx.Err()
			default:
				failed.Add(1)
				if cfg.Verbose {
					log.Warn(gctx, "register failed", logger.Int64("user_id", p.UserID), logger.Error(err))
				}
				return nil
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.UsersCreated = int(created.Load())
	stats.UsersReplaced = int(replaced.Load())
	stats.RegisterFailed = int(failed.Load())

	ids := make([]int64, 0, len(profiles))
	for i, p := range profiles {
		if ok[i] {
			ids = append(ids, p.UserID)
		}
	}
	return ids, nil
}

// submit sends ids in chunks of cfg.BatchSize. Chunks refused for
// backpressure are retried until deadline.
func submit(ctx context.Context, cfg *Config, client *Client, log logger.Logger, ids []int64, deadline time.Time, stats *Stats) error {
	for n, start := 0, 0; start < len(ids); n, start = n+1, start+cfg.BatchSize {
		chunk := ids[start:min(start+cfg.BatchSize, len(ids))]
		batchID := stats.RunID + "-" + strconv.Itoa(n)

		for {
			ack, err := client.SubmitBatch(ctx, batchID, chunk)
			var apiErr *APIError
			switch {
			case err == nil && ack.Duplicate:
				stats.BatchesDuplicate++
			case err == nil:
				stats.BatchesAccepted++
				stats.JobsQueued += ack.Jobs
			case errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests && time.Now().Before(deadline):
				if cfg.Verbose {
					log.Warn(ctx, "queue full, retrying batch", logger.String("batch_id", batchID))
				}
				if err := sleep(ctx, rejectedBackoff); err != nil {
					return err
				}
				continue
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				stats.BatchesRejected++
				log.Warn(ctx, "batch rejected", logger.String("batch_id", batchID), logger.Error(err))
			}
			break
		}
	}
	return nil
}

// await polls /stats until the jobs queued by this run are all accounted
// for or deadline passes.
func await(ctx context.Context, cfg *Config, client *Client, before ServiceStats, deadline time.Time, stats *Stats) error {
	for {
		now, err := client.Stats(ctx)
		if err == nil {
			stats.JobsProcessed = now.JobsProcessed - before.JobsProcessed
			stats.JobsFailed = now.JobsFailed - before.JobsFailed
			if stats.JobsProcessed+stats.JobsFailed >= int64(stats.JobsQueued) {
				stats.Complete = true
				return nil
			}
		}
		if time.Now().After(deadline) {
			return nil
		}
		if err := sleep(ctx, cfg.PollInterval); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
