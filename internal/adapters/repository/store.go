// Package repository stores behaviour profiles and assessment history.
package repository

import (
	"context"

	"github.com/okian/riskwatch/internal/domain/model"
)

// ProfileStore provides access to the behaviour summaries being assessed.
type ProfileStore interface {
	// Get returns the profile for userID or ErrNotFound.
	Get(ctx context.Context, userID int64) (model.Profile, error)
	// Put inserts or replaces a profile.
	Put(ctx context.Context, p model.Profile) error
	// Count returns the number of stored profiles.
	Count(ctx context.Context) int
}

// AssessmentStore persists completed assessments.
type AssessmentStore interface {
	// Save persists a. Saving an existing ID replaces it.
	Save(ctx context.Context, a model.Assessment) error
	// Get returns the assessment with id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Assessment, error)
	// List returns up to limit assessments, newest first.
	// Returns ErrInvalidLimit if limit < 1.
	List(ctx context.Context, limit int) ([]model.Assessment, error)
	// Latest returns the most recent record of every assessed user.
	Latest(ctx context.Context) ([]model.Record, error)
	// Count returns the number of stored assessments.
	Count(ctx context.Context) int
	// Close releases resources. Further calls return ErrClosed.
	Close() error
}
