package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidModel    = errors.New("invalid model")
	ErrFeatureMismatch = errors.New("feature count mismatch")
	ErrUnknownWindow   = errors.New("no model for window")
)
