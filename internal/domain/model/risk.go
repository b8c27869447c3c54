// Package model contains domain models passed between layers.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
)

// ErrInvalidBehavior is returned when a behaviour summary fails validation.
var ErrInvalidBehavior = errors.New("invalid behavior summary")

// RiskLevel is the overall risk band of an assessment.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskLevels lists every level in ascending severity.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskCritical}
}

// Window identifies a prediction horizon.
type Window string

const (
	Window7Day  Window = "7_day"
	Window30Day Window = "30_day"
)

// Windows lists the prediction horizons in a stable order.
func Windows() []Window {
	return []Window{Window7Day, Window30Day}
}

// Days returns the horizon length in days, 0 for unknown windows.
func (w Window) Days() int {
	switch w {
	case Window7Day:
		return 7
	case Window30Day:
		return 30
	default:
		return 0
	}
}

// Pattern classifies the combination of short- and long-term risk.
type Pattern string

const (
	PatternImmediateCrisis Pattern = "IMMEDIATE_CRISIS"
	PatternSlowBurn        Pattern = "SLOW_BURN"
	PatternModerateRisk    Pattern = "MODERATE_RISK"
	PatternControlled      Pattern = "CONTROLLED"
)

// Patterns lists every pattern from most to least urgent.
func Patterns() []Pattern {
	return []Pattern{PatternImmediateCrisis, PatternSlowBurn, PatternModerateRisk, PatternControlled}
}

// Urgency is the response priority attached to a pattern.
type Urgency string

const (
	UrgencyUrgent     Urgency = "URGENT"
	UrgencyPreventive Urgency = "PREVENTIVE"
	UrgencyMonitor    Urgency = "MONITOR"
	UrgencyStandard   Urgency = "STANDARD"
)

// Behavior summarises the first days of an account's gambling activity.
type Behavior struct {
	TotalBets            int     `json:"total_bets" yaml:"total_bets"`
	AvgBetAmount         float64 `json:"avg_bet_amount" yaml:"avg_bet_amount"`
	TotalDeposits        int     `json:"total_deposits" yaml:"total_deposits"`
	AvgDeposit           float64 `json:"avg_deposit" yaml:"avg_deposit"`
	LossRate             float64 `json:"loss_rate" yaml:"loss_rate"`
	MedianLossGapMinutes float64 `json:"median_loss_gap_minutes" yaml:"median_loss_gap_minutes"`
	LateNightPercentage  float64 `json:"late_night_percentage" yaml:"late_night_percentage"`
	SessionVariance      float64 `json:"session_variance" yaml:"session_variance"`
	TotalLossAmount      float64 `json:"total_loss_amount" yaml:"total_loss_amount"`
	BettingDays          int     `json:"betting_days" yaml:"betting_days"`
}

// behaviorFields are the JSON keys every behaviour summary must carry.
var behaviorFields = []string{ //nolint:gochecknoglobals // field list
	"total_bets",
	"avg_bet_amount",
	"total_deposits",
	"avg_deposit",
	"loss_rate",
	"median_loss_gap_minutes",
	"late_night_percentage",
	"session_variance",
	"total_loss_amount",
	"betting_days",
}

// UnmarshalJSON decodes a summary. Every field is required; missing or
// unknown keys are reported together as ErrInvalidBehavior.
func (b *Behavior) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var missing, unknown []string
	for _, k := range behaviorFields {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	for k := range raw {
		if !slices.Contains(behaviorFields, k) {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)

	var problems []string
	if len(missing) > 0 {
		problems = append(problems, "missing fields: "+strings.Join(missing, ", "))
	}
	if len(unknown) > 0 {
		problems = append(problems, "unknown fields: "+strings.Join(unknown, ", "))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBehavior, strings.Join(problems, "; "))
	}

	type plain Behavior
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Behavior(p)
	return nil
}

// Validate checks ranges: counts and amounts are non-negative, ratios are in [0,1].
func (b Behavior) Validate() error {
	var problems []string
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"total_bets", float64(b.TotalBets)},
		{"avg_bet_amount", b.AvgBetAmount},
		{"total_deposits", float64(b.TotalDeposits)},
		{"avg_deposit", b.AvgDeposit},
		{"median_loss_gap_minutes", b.MedianLossGapMinutes},
		{"session_variance", b.SessionVariance},
		{"total_loss_amount", b.TotalLossAmount},
		{"betting_days", float64(b.BettingDays)},
	} {
		if f.v < 0 {
			problems = append(problems, f.name+" must not be negative")
		}
	}
	if b.LossRate < 0 || b.LossRate > 1 {
		problems = append(problems, "loss_rate must be within [0,1]")
	}
	if b.LateNightPercentage < 0 || b.LateNightPercentage > 1 {
		problems = append(problems, "late_night_percentage must be within [0,1]")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBehavior, strings.Join(problems, "; "))
	}
	return nil
}

// Scores holds the predicted risk probability for each window.
type Scores struct {
	SevenDay  float64 `json:"7_day" yaml:"7_day"`
	ThirtyDay float64 `json:"30_day" yaml:"30_day"`
}

// Get returns the score for w.
func (s Scores) Get(w Window) float64 {
	if w == Window30Day {
		return s.ThirtyDay
	}
	return s.SevenDay
}

// Set stores the score for w.
func (s *Scores) Set(w Window, v float64) {
	if w == Window30Day {
		s.ThirtyDay = v
		return
	}
	s.SevenDay = v
}

// Max returns the highest score across windows.
func (s Scores) Max() float64 {
	if s.ThirtyDay > s.SevenDay {
		return s.ThirtyDay
	}
	return s.SevenDay
}

// Prediction is the per-window part of an assessment.
type Prediction struct {
	WindowDays         int      `json:"window_days"`
	RiskScore          float64  `json:"risk_score"`
	Confidence         float64  `json:"confidence"`
	AboveThreshold     bool     `json:"above_threshold"`
	PredictedBehaviors []string `json:"predicted_behaviors"`
}

// Strategy is the intervention chosen from both window scores.
type Strategy struct {
	Pattern     Pattern  `json:"pattern"`
	Urgency     Urgency  `json:"urgency"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// Profile is a known account together with its behaviour summary.
// Preset scores, when present, replace model output (demo accounts).
type Profile struct {
	UserID   int64    `json:"user_id" yaml:"user_id"`
	Label    string   `json:"label,omitempty" yaml:"label"`
	Behavior Behavior `json:"behavior" yaml:"behavior"`
	Preset   *Scores  `json:"preset_scores,omitempty" yaml:"preset_scores"`
}

// Assessment is the full result returned to callers and persisted.
type Assessment struct {
	AssessmentID       string                `json:"assessment_id"`
	UserID             int64                 `json:"user_id"`
	AccountAgeDays     int                   `json:"account_age_days"`
	AssessmentDate     time.Time             `json:"assessment_date"`
	BehaviorSummary    Behavior              `json:"behavior_summary"`
	RiskPredictions    map[Window]Prediction `json:"risk_predictions"`
	OverallRiskLevel   RiskLevel             `json:"overall_risk_level"`
	RiskFactors        []string              `json:"risk_factors"`
	InterventionPolicy Strategy              `json:"intervention_strategy"`
	Metadata           map[string]string     `json:"metadata"`
}

// Scores returns the rounded per-window scores carried by the assessment.
func (a *Assessment) Scores() Scores {
	var s Scores
	for w, p := range a.RiskPredictions {
		s.Set(w, p.RiskScore)
	}
	return s
}

// Record projects an assessment onto the fields used for aggregation.
func (a *Assessment) Record() Record {
	s := a.Scores()
	return Record{
		AssessmentID: a.AssessmentID,
		UserID:       a.UserID,
		Level:        a.OverallRiskLevel,
		Pattern:      a.InterventionPolicy.Pattern,
		Urgency:      a.InterventionPolicy.Urgency,
		Risk7Day:     s.SevenDay,
		Risk30Day:    s.ThirtyDay,
		AssessedAt:   a.AssessmentDate,
	}
}

// Record is the indexed projection of an assessment.
type Record struct {
	AssessmentID string
	UserID       int64
	Level        RiskLevel
	Pattern      Pattern
	Urgency      Urgency
	Risk7Day     float64
	Risk30Day    float64
	AssessedAt   time.Time
}
