// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"runtime"
	"strings"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ModelPath points at the trained model file. A missing file selects the
	// fallback models.
	ModelPath string `koanf:"model_path"`

	// ModelVersion is reported in assessment metadata when the model file
	// does not carry its own version.
	ModelVersion string `koanf:"model_version"`

	// DemoData seeds the profile store with the built-in demo accounts.
	DemoData bool `koanf:"demo_data"`

	// StoreDriver selects the assessment store: memory or sqlite.
	StoreDriver string `koanf:"store_driver"`

	// SQLitePath is the database file used by the sqlite driver.
	SQLitePath string `koanf:"sqlite_path"`

	// QueueSize bounds the batch job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of batch workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize bounds the set of remembered batch IDs.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxBatchSize caps user_ids per batch submission.
	MaxBatchSize int `koanf:"max_batch_size"`

	// MaxHistoryLimit caps GET /api/v1/risk/assessments?limit.
	MaxHistoryLimit int `koanf:"max_history_limit"`

	// AccountAgeDays is the account age reported on every assessment.
	AccountAgeDays int `koanf:"account_age_days"`

	// Confidence7Day and Confidence30Day are the per-window confidence values.
	Confidence7Day  float64 `koanf:"confidence_7_day"`
	Confidence30Day float64 `koanf:"confidence_30_day"`

	// Accuracy7Day, Accuracy30Day and TargetAccuracy are reported by the batch summary.
	Accuracy7Day   float64 `koanf:"accuracy_7_day"`
	Accuracy30Day  float64 `koanf:"accuracy_30_day"`
	TargetAccuracy float64 `koanf:"target_accuracy"`

	// CORSAllowedOrigins is a comma separated origin list, "*" allows any.
	CORSAllowedOrigins string `koanf:"cors_allowed_origins"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":8000",
		ModelPath:          "models/risk_models.yaml",
		ModelVersion:       "1.0.0",
		DemoData:           true,
		StoreDriver:        "memory",
		SQLitePath:         "riskwatch.db",
		QueueSize:          10_000,
		WorkerCount:        runtime.NumCPU() * 2,
		DedupeSize:         10_000,
		MaxBatchSize:       1_000,
		MaxHistoryLimit:    100,
		AccountAgeDays:     14,
		Confidence7Day:     0.85,
		Confidence30Day:    0.75,
		Accuracy7Day:       72.7,
		Accuracy30Day:      64.5,
		TargetAccuracy:     70.0,
		CORSAllowedOrigins: "*",
	}
}

// AllowedOrigins splits CORSAllowedOrigins into trimmed, non-empty entries.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Validate reports every invalid field, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []string
	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Addr != "", "addr must not be empty")
	check(c.LogFormat == "text" || c.LogFormat == "json", "log_format must be text or json")
	check(c.StoreDriver == "memory" || c.StoreDriver == "sqlite", "store_driver must be memory or sqlite")
	check(c.StoreDriver != "sqlite" || c.SQLitePath != "", "sqlite_path must be set for the sqlite driver")
	check(c.QueueSize > 0, "queue_size must be positive")
	check(c.DedupeSize > 0, "dedupe_size must be positive")
	check(c.MaxBatchSize > 0, "max_batch_size must be positive")
	check(c.MaxHistoryLimit > 0, "max_history_limit must be positive")
	check(c.AccountAgeDays > 0, "account_age_days must be positive")
	check(c.Confidence7Day >= 0 && c.Confidence7Day <= 1, "confidence_7_day must be within [0,1]")
	check(c.Confidence30Day >= 0 && c.Confidence30Day <= 1, "confidence_30_day must be within [0,1]")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
