package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/okian/riskwatch/internal/adapters/mq/worker"
	"github.com/okian/riskwatch/internal/adapters/repository"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/summary"
	"github.com/okian/riskwatch/pkg/logger"
	"github.com/okian/riskwatch/pkg/metrics"
)

// demoHint is appended to unknown-user errors.
const demoHint = "try demo users: 12345 (high risk), 23456 (medium risk), 34567 (low risk), 67890 (slow burn)"

// AssessRequest asks for one user's assessment. Behavior, when set, replaces
// the stored behaviour summary before the assessment runs.
type AssessRequest struct {
	UserID         int64           `json:"user_id"`
	AssessmentDate *time.Time      `json:"assessment_date,omitempty"`
	Behavior       *model.Behavior `json:"behavior,omitempty"`
}

// DemoOverview holds one assessment per demo pattern.
type DemoOverview struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Patterns    map[string]model.Assessment `json:"patterns"`
}

// demoOverviewUsers maps overview keys to demo accounts.
var demoOverviewUsers = []struct { //nolint:gochecknoglobals // fixed demo layout
	key    string
	userID int64
}{
	{"immediate_crisis", repository.DemoImmediateCrisis},
	{"slow_burn", repository.DemoSlowBurn},
	{"moderate_risk", repository.DemoModerateRisk},
	{"controlled", repository.DemoControlled},
}

// demoLevels maps the demo endpoint levels to demo accounts.
var demoLevels = map[string]int64{ //nolint:gochecknoglobals // fixed demo layout
	"HIGH":     repository.DemoImmediateCrisis,
	"MEDIUM":   repository.DemoModerateRisk,
	"LOW":      repository.DemoControlled,
	"SLOWBURN": repository.DemoSlowBurn,
}

// Assess runs and stores an assessment for req.UserID.
func (s *Service) Assess(ctx context.Context, req AssessRequest) (model.Assessment, error) {
	if req.UserID <= 0 {
		return model.Assessment{}, fmt.Errorf("%w: user_id must be positive", ErrInvalidRequest)
	}
	if req.Behavior != nil {
		if _, err := s.PutBehavior(ctx, req.UserID, *req.Behavior); err != nil {
			return model.Assessment{}, err
		}
	}
	var at time.Time
	if req.AssessmentDate != nil {
		at = *req.AssessmentDate
	}

	a, err := s.AssessUser(ctx, req.UserID, at)
	if err != nil {
		return model.Assessment{}, err
	}
	if err := s.assessments.Save(ctx, a); err != nil {
		metrics.RecordAssessmentError("store")
		return model.Assessment{}, fmt.Errorf("save assessment: %w", err)
	}
	return a, nil
}

// AssessUser assesses a known user without storing the result. It satisfies
// worker.Assessor; unknown users wrap both ErrUserNotFound and worker.ErrUnknownUser.
func (s *Service) AssessUser(ctx context.Context, userID int64, at time.Time) (model.Assessment, error) {
	start := time.Now()

	p, err := s.profiles.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAssessmentError("unknown_user")
		return model.Assessment{}, fmt.Errorf("%w: user %d (%s): %w", ErrUserNotFound, userID, demoHint, worker.ErrUnknownUser)
	}
	if err != nil {
		metrics.RecordAssessmentError("profile_store")
		return model.Assessment{}, fmt.Errorf("load profile %d: %w", userID, err)
	}

	if at.IsZero() {
		at = s.now()
	}
	a, err := s.engine.Assess(ctx, p, at)
	if err != nil {
		reason := "model"
		if errors.Is(err, model.ErrInvalidBehavior) {
			reason = "invalid_behavior"
			err = fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		metrics.RecordAssessmentError(reason)
		return model.Assessment{}, err
	}

	s.observe(ctx, a, time.Since(start))
	return a, nil
}

func (s *Service) observe(ctx context.Context, a model.Assessment, took time.Duration) {
	metrics.RecordAssessment(string(a.OverallRiskLevel), string(a.InterventionPolicy.Pattern))
	metrics.RecordAssessmentLatency(float64(took.Microseconds()) / 1000)
	for w, p := range a.RiskPredictions {
		metrics.RecordRiskScore(string(w), p.RiskScore)
	}
	for _, f := range a.RiskFactors {
		metrics.RecordRiskFactor(f)
	}
	s.logger.Debug(ctx, "assessment completed",
		logger.String("assessment_id", a.AssessmentID),
		logger.Int64("user_id", a.UserID),
		logger.String("level", string(a.OverallRiskLevel)),
		logger.String("pattern", string(a.InterventionPolicy.Pattern)),
		logger.Duration("took", took),
	)
}

// DemoOverview assesses all four demo accounts.
func (s *Service) DemoOverview(ctx context.Context) (DemoOverview, error) {
	out := DemoOverview{
		GeneratedAt: s.now(),
		Patterns:    make(map[string]model.Assessment, len(demoOverviewUsers)),
	}
	for _, d := range demoOverviewUsers {
		a, err := s.Assess(ctx, AssessRequest{UserID: d.userID})
		if err != nil {
			return DemoOverview{}, fmt.Errorf("demo %s: %w", d.key, err)
		}
		out.Patterns[d.key] = a
	}
	return out, nil
}

// Demo assesses the demo account for level (high, medium, low, slowburn; any case).
func (s *Service) Demo(ctx context.Context, level string) (model.Assessment, error) {
	userID, ok := demoLevels[strings.ToUpper(strings.TrimSpace(level))]
	if !ok {
		return model.Assessment{}, fmt.Errorf("%w: risk level must be one of: high, medium, low, slowburn", ErrUnknownDemoLevel)
	}
	return s.Assess(ctx, AssessRequest{UserID: userID})
}

// BatchSummary aggregates the latest stored assessment of every user.
func (s *Service) BatchSummary(ctx context.Context) (summary.Report, error) {
	records, err := s.assessments.Latest(ctx)
	if err != nil {
		return summary.Report{}, fmt.Errorf("load latest assessments: %w", err)
	}
	return summary.Summarize(records, s.performance, s.now()), nil
}

// Assessment returns a stored assessment by ID.
func (s *Service) Assessment(ctx context.Context, id string) (model.Assessment, error) {
	a, err := s.assessments.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Assessment{}, fmt.Errorf("%w: %s", ErrAssessmentNotFound, id)
	}
	if err != nil {
		return model.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}
	return a, nil
}

// Assessments lists stored assessments newest first. limit is capped by the
// configured maximum; values below 1 are invalid.
func (s *Service) Assessments(ctx context.Context, limit int) ([]model.Assessment, error) {
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidRequest)
	}
	if limit > s.maxHistoryLimit {
		limit = s.maxHistoryLimit
	}
	list, err := s.assessments.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return list, nil
}

// MaxHistoryLimit returns the cap applied by Assessments.
func (s *Service) MaxHistoryLimit() int {
	return s.maxHistoryLimit
}

// PutBehavior registers or replaces a user's behaviour summary. The label of
// an existing profile is kept; preset scores are dropped so the new behaviour
// is scored by the models. created reports whether the user was new.
func (s *Service) PutBehavior(ctx context.Context, userID int64, b model.Behavior) (created bool, err error) {
	if userID <= 0 {
		return false, fmt.Errorf("%w: user_id must be positive", ErrInvalidRequest)
	}
	if err := b.Validate(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	p := model.Profile{UserID: userID, Behavior: b}
	existing, err := s.profiles.Get(ctx, userID)
	switch {
	case err == nil:
		p.Label = existing.Label
	case errors.Is(err, repository.ErrNotFound):
		created = true
	default:
		return false, fmt.Errorf("load profile %d: %w", userID, err)
	}

	if err := s.profiles.Put(ctx, p); err != nil {
		return false, fmt.Errorf("store profile %d: %w", userID, err)
	}
	return created, nil
}
