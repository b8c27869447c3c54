// Package loadtest drives a running riskwatch service with synthetic users:
// it registers behaviour summaries, submits batches and waits for the
// workers to assess them.
package loadtest

import (
	"errors"
	"time"

	"github.com/okian/riskwatch/internal/domain/summary"
)

// Defaults used by the riskload command.
const (
	DefaultBaseURL      = "http://localhost:8000"
	DefaultUsers        = 1000
	DefaultBatchSize    = 500
	DefaultTimeout      = 10 * time.Second
	DefaultWait         = 2 * time.Minute
	DefaultPollInterval = 250 * time.Millisecond
	DefaultSeed         = 1
)

// firstUserID keeps synthetic users clear of the demo accounts.
const firstUserID int64 = 1_000_000

// ErrIncomplete is returned when the queued jobs were not all processed
// before the wait deadline.
var ErrIncomplete = errors.New("batch processing did not complete in time")

// Config holds configuration for a load run.
type Config struct {
	BaseURL      string        // Base URL of the service
	Users        int           // Number of synthetic users
	Workers      int           // Concurrent registration requests
	BatchSize    int           // Users per batch submission
	Timeout      time.Duration // Per-request HTTP timeout
	Wait         time.Duration // How long to wait for batch processing
	PollInterval time.Duration // Delay between progress polls
	Seed         uint64        // Generator seed; equal seeds give equal users
	Verbose      bool          // Log every failed request
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = DefaultBaseURL
	}
	if out.Users < 1 {
		out.Users = DefaultUsers
	}
	if out.Workers < 1 {
		out.Workers = 1
	}
	if out.BatchSize < 1 {
		out.BatchSize = DefaultBatchSize
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Wait <= 0 {
		out.Wait = DefaultWait
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	return out
}

// Stats holds the outcome of a load run.
type Stats struct {
	RunID            string
	UsersGenerated   int
	UsersCreated     int
	UsersReplaced    int
	RegisterFailed   int
	BatchesAccepted  int
	BatchesDuplicate int
	BatchesRejected  int
	JobsQueued       int
	JobsProcessed    int64
	JobsFailed       int64
	Complete         bool
	Summary          *summary.Report
	StartTime        time.Time
	Duration         time.Duration
}
