package risk

import (
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithModelVersion overrides the version stamped into assessment metadata.
func WithModelVersion(version string) Option {
	return func(e *Engine) {
		if version != "" {
			e.modelVersion = version
		}
	}
}

// WithConfidence sets the reported confidence of both windows. Values outside
// (0,1] are ignored.
func WithConfidence(sevenDay, thirtyDay float64) Option {
	return func(e *Engine) {
		if sevenDay > 0 && sevenDay <= 1 {
			e.confidence[model.Window7Day] = sevenDay
		}
		if thirtyDay > 0 && thirtyDay <= 1 {
			e.confidence[model.Window30Day] = thirtyDay
		}
	}
}

// WithAccountAgeDays sets the account age reported on assessments.
func WithAccountAgeDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.accountAgeDays = days
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator replaces the assessment ID generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}
