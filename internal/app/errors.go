package service

import "errors"

// Sentinel error kinds returned by the service. Callers map them with errors.Is.
var (
	ErrNotStarted         = errors.New("service not started")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrUserNotFound       = errors.New("user not found")
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrUnknownDemoLevel   = errors.New("unknown demo risk level")
	ErrBatchTooLarge      = errors.New("batch too large")
	ErrQueueFull          = errors.New("batch queue full")
)
