// Package summary aggregates stored assessments into a monitoring report.
package summary

import (
	"math"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
)

// Performance carries the reported model accuracies, in percent.
type Performance struct {
	SevenDayAccuracy  float64 `json:"7_day_accuracy"`
	ThirtyDayAccuracy float64 `json:"30_day_accuracy"`
	TargetAccuracy    float64 `json:"target_accuracy"`
}

// Report is the batch monitoring summary.
type Report struct {
	AssessmentDate              string                      `json:"assessment_date"`
	TotalUsersAssessed          int                         `json:"total_users_assessed"`
	UsersProtected              int                         `json:"users_protected"`
	UsersAtRisk                 int                         `json:"users_at_risk"`
	ProtectionRate              float64                     `json:"protection_rate"`
	RiskDistribution            map[model.RiskLevel]int     `json:"risk_distribution"`
	RiskDistributionPercentages map[model.RiskLevel]float64 `json:"risk_distribution_percentages"`
	PatternDistribution         map[model.Pattern]int       `json:"pattern_distribution"`
	InterventionTriggered       int                         `json:"intervention_triggered"`
	ModelPerformance            Performance                 `json:"model_performance"`
}

// Summarize reduces records to the latest one per user and aggregates them.
// Ties on timestamp keep the record seen last.
func Summarize(records []model.Record, perf Performance, day time.Time) Report {
	latest := make(map[int64]model.Record, len(records))
	for _, r := range records {
		if cur, ok := latest[r.UserID]; ok && cur.AssessedAt.After(r.AssessedAt) {
			continue
		}
		latest[r.UserID] = r
	}

	rep := Report{
		AssessmentDate:              day.Format(time.DateOnly),
		TotalUsersAssessed:          len(latest),
		RiskDistribution:            make(map[model.RiskLevel]int, 4),
		RiskDistributionPercentages: make(map[model.RiskLevel]float64, 4),
		PatternDistribution:         make(map[model.Pattern]int, 4),
		ModelPerformance:            perf,
	}
	for _, l := range model.RiskLevels() {
		rep.RiskDistribution[l] = 0
	}
	for _, p := range model.Patterns() {
		rep.PatternDistribution[p] = 0
	}

	for _, r := range latest {
		rep.RiskDistribution[r.Level]++
		rep.PatternDistribution[r.Pattern]++
		if r.Level != model.RiskLow {
			rep.UsersAtRisk++
		}
		if r.Urgency == model.UrgencyUrgent || r.Urgency == model.UrgencyPreventive {
			rep.UsersProtected++
		}
	}
	rep.InterventionTriggered = rep.RiskDistribution[model.RiskHigh] + rep.RiskDistribution[model.RiskCritical]

	for l, n := range rep.RiskDistribution {
		rep.RiskDistributionPercentages[l] = percent(n, rep.TotalUsersAssessed)
	}
	rep.ProtectionRate = percent(rep.UsersProtected, rep.TotalUsersAssessed)
	return rep
}

// percent returns n/total as a percentage with one decimal, 0 when total is 0.
func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
