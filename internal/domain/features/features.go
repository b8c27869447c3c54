// Package features turns a behaviour summary into the model feature vector.
package features

import "github.com/okian/riskwatch/internal/domain/model"

// Derivation constants shared with the trained models.
const (
	stdBetRatio           = 0.5
	rebetGapScaleMinutes  = 5.0
	sessionsPerBettingDay = 2
	avgSessionMinutes     = 45.0
)

// names is the column order the models were trained on.
var names = []string{ //nolint:gochecknoglobals // fixed feature order
	"early_bet_count",
	"early_avg_bet",
	"early_std_bet",
	"early_loss_rate",
	"early_total_loss",
	"early_unique_days",
	"early_bets_per_day",
	"early_loss_gaps",
	"early_immediate_rebet_pct",
	"early_sessions_session_count",
	"early_sessions_avg_duration",
	"early_sessions_duration_cv",
	"early_deposits_deposit_count",
	"early_deposits_avg_deposit",
}

// Count is the length of every feature vector.
const Count = 14

// Names returns a copy of the feature names in vector order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Index returns the position of name in the vector, or -1.
func Index(name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// Vector derives the ordered feature vector from b.
func Vector(b model.Behavior) []float64 {
	days := b.BettingDays
	if days < 1 {
		days = 1
	}
	return []float64{
		float64(b.TotalBets),
		b.AvgBetAmount,
		b.AvgBetAmount * stdBetRatio,
		b.LossRate,
		b.TotalLossAmount,
		float64(b.BettingDays),
		float64(b.TotalBets) / float64(days),
		b.MedianLossGapMinutes,
		1 / (1 + b.MedianLossGapMinutes/rebetGapScaleMinutes),
		float64(b.BettingDays * sessionsPerBettingDay),
		avgSessionMinutes,
		b.SessionVariance,
		float64(b.TotalDeposits),
		b.AvgDeposit,
	}
}

// Map returns the features keyed by name, mostly for logging and debugging.
func Map(b model.Behavior) map[string]float64 {
	v := Vector(b)
	out := make(map[string]float64, len(v))
	for i, n := range names {
		out[n] = v[i]
	}
	return out
}
