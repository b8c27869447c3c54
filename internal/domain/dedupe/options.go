// Package dedupe tracks batch identifiers so resubmissions are not re-enqueued.
package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize sets the maximum number of IDs to remember.
// maxSize <= 0 disables eviction.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}
