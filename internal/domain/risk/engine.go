// Package risk turns behaviour summaries into dual-window risk assessments.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/okian/riskwatch/internal/domain/features"
	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/scoring"
)

// Level boundaries on the highest window score.
const (
	highLevelAbove   = 0.7
	mediumLevelAbove = 0.4
)

// Strategy boundaries.
const (
	crisisAbove        = 0.7
	slowBurnShortBelow = 0.4
	slowBurnLongAbove  = 0.6
	moderateLow        = 0.4
	moderateHigh       = 0.7
)

// Prediction hints.
const (
	shortBehaviorAbove = 0.5
	longBehaviorAbove  = 0.6
)

// Default model confidences and metadata.
const (
	DefaultConfidence7Day  = 0.85
	DefaultConfidence30Day = 0.75
	DefaultAccountAgeDays  = 14
	AssessmentType         = "new_user_14_day"
)

// Score sources recorded in assessment metadata.
const (
	SourceModel  = "model"
	SourcePreset = "preset"
)

// Engine evaluates behaviour against the loaded window models.
type Engine struct {
	models         *scoring.ModelSet
	modelVersion   string
	confidence     map[model.Window]float64
	accountAgeDays int
	now            func() time.Time
	newID          func() string
}

// New creates an engine over models.
func New(models *scoring.ModelSet, opts ...Option) *Engine {
	e := &Engine{
		models:       models,
		modelVersion: models.Version,
		confidence: map[model.Window]float64{
			model.Window7Day:  DefaultConfidence7Day,
			model.Window30Day: DefaultConfidence30Day,
		},
		accountAgeDays: DefaultAccountAgeDays,
		now:            time.Now,
		newID:          func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ModelsLoaded reports whether trained models (not the fallback) are active.
func (e *Engine) ModelsLoaded() bool {
	return e.models.Loaded
}

// ModelVersion returns the version stamped on assessments.
func (e *Engine) ModelVersion() string {
	return e.modelVersion
}

// Predict scores b with every window model.
func (e *Engine) Predict(ctx context.Context, b model.Behavior) (model.Scores, error) {
	scores, err := e.models.Score(ctx, features.Vector(b))
	if err != nil {
		return model.Scores{}, fmt.Errorf("predict: %w", err)
	}
	return scores, nil
}

// Factors lists the behavioural red flags present in b.
func Factors(b model.Behavior) []string {
	factors := make([]string, 0, 5)
	if b.MedianLossGapMinutes < 5 {
		factors = append(factors, "Immediate loss chasing behavior")
	}
	if b.TotalDeposits > 20 {
		factors = append(factors, "High deposit frequency")
	}
	if b.LateNightPercentage > 0.4 {
		factors = append(factors, "Excessive late-night gambling")
	}
	if b.SessionVariance > 2 {
		factors = append(factors, "Erratic session patterns")
	}
	if b.LossRate > 0.8 {
		factors = append(factors, "Very high loss rate")
	}
	return factors
}

// Level maps the highest window score to a risk level.
func Level(s model.Scores) model.RiskLevel {
	switch m := s.Max(); {
	case m > highLevelAbove:
		return model.RiskHigh
	case m > mediumLevelAbove:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

// Strategy picks the intervention for a pair of window scores. Rules are
// evaluated in order and the first match wins.
func Strategy(r7, r30 float64) model.Strategy {
	switch {
	case r7 > crisisAbove && r30 > crisisAbove:
		return model.Strategy{
			Pattern:     model.PatternImmediateCrisis,
			Urgency:     model.UrgencyUrgent,
			Description: "Both short and long-term risk indicators show immediate danger",
			Actions: []string{
				"Immediate deposit limit",
				"Mandatory cooling period",
				"Direct phone contact",
				"Emergency resources",
			},
		}
	case r7 < slowBurnShortBelow && r30 > slowBurnLongAbove:
		return model.Strategy{
			Pattern:     model.PatternSlowBurn,
			Urgency:     model.UrgencyPreventive,
			Description: "Current behavior seems controlled but shows escalation trajectory",
			Actions: []string{
				"Educational emails",
				"Voluntary limit suggestions",
				"Progress tracking tools",
				"Scheduled check-ins",
			},
		}
	case inRange(r7, moderateLow, moderateHigh) || inRange(r30, moderateLow, moderateHigh):
		return model.Strategy{
			Pattern:     model.PatternModerateRisk,
			Urgency:     model.UrgencyMonitor,
			Description: "Showing concerning patterns that need monitoring",
			Actions: []string{
				"In-app warnings",
				"Session reminders",
				"Self-assessment tools",
			},
		}
	default:
		return model.Strategy{
			Pattern:     model.PatternControlled,
			Urgency:     model.UrgencyStandard,
			Description: "Gambling behavior appears well-controlled",
			Actions: []string{
				"Continue monitoring",
				"Positive reinforcement",
			},
		}
	}
}

func inRange(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

// Predictions builds the per-window prediction blocks.
func (e *Engine) Predictions(s model.Scores) map[model.Window]model.Prediction {
	thresholds := e.models.Thresholds()
	out := make(map[model.Window]model.Prediction, 2)
	for _, w := range model.Windows() {
		score := s.Get(w)
		p := model.Prediction{
			WindowDays:         w.Days(),
			RiskScore:          round(score, 3),
			Confidence:         e.confidence[w],
			AboveThreshold:     score >= thresholds[w],
			PredictedBehaviors: []string{},
		}
		switch {
		case w == model.Window7Day && score > shortBehaviorAbove:
			p.PredictedBehaviors = append(p.PredictedBehaviors, "Frequency increase likely")
		case w == model.Window30Day && score > longBehaviorAbove:
			p.PredictedBehaviors = append(p.PredictedBehaviors, "Potential loss spiral")
		}
		out[w] = p
	}
	return out
}

// Assess produces a complete assessment for p. Preset scores take precedence
// over model output; risk factors always come from behaviour. A zero at is
// replaced by the current time.
func (e *Engine) Assess(ctx context.Context, p model.Profile, at time.Time) (model.Assessment, error) {
	if err := p.Behavior.Validate(); err != nil {
		return model.Assessment{}, err
	}

	source := SourceModel
	var scores model.Scores
	if p.Preset != nil {
		source = SourcePreset
		scores = *p.Preset
	} else {
		var err error
		if scores, err = e.Predict(ctx, p.Behavior); err != nil {
			return model.Assessment{}, err
		}
	}

	if at.IsZero() {
		at = e.now()
	}

	return model.Assessment{
		AssessmentID:       e.newID(),
		UserID:             p.UserID,
		AccountAgeDays:     e.accountAgeDays,
		AssessmentDate:     at,
		BehaviorSummary:    p.Behavior,
		RiskPredictions:    e.Predictions(scores),
		OverallRiskLevel:   Level(scores),
		RiskFactors:        Factors(p.Behavior),
		InterventionPolicy: Strategy(scores.SevenDay, scores.ThirtyDay),
		Metadata: map[string]string{
			"model_version":   e.modelVersion,
			"assessment_type": AssessmentType,
			"score_source":    source,
		},
	}, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
