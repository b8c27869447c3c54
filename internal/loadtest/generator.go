package loadtest

import (
	"math"
	"math/rand/v2"

	"github.com/okian/riskwatch/internal/domain/model"
)

// Behaviour archetypes, cycled so every run covers all four patterns.
const (
	kindCrisis = iota
	kindSlowBurn
	kindModerate
	kindControlled
	kindCount
)

// Generate returns n synthetic profiles with IDs starting at 1000000.
// The output depends only on n and seed.
func Generate(n int, seed uint64) []model.Profile {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // synthetic data
	out := make([]model.Profile, n)
	for i := range out {
		out[i] = model.Profile{
			UserID:   firstUserID + int64(i),
			Label:    "synthetic",
			Behavior: behavior(r, i%kindCount),
		}
	}
	return out
}

func behavior(r *rand.Rand, kind int) model.Behavior {
	between := func(lo, hi float64) float64 { return lo + r.Float64()*(hi-lo) }
	money := func(lo, hi float64) float64 { return math.Round(between(lo, hi)*100) / 100 }

	var b model.Behavior
	switch kind {
	case kindCrisis:
		b = model.Behavior{
			TotalBets:            150 + r.IntN(250),
			AvgBetAmount:         money(500, 2500),
			TotalDeposits:        15 + r.IntN(20),
			AvgDeposit:           money(1000, 4000),
			LossRate:             between(0.7, 0.95),
			MedianLossGapMinutes: between(0.5, 6),
			LateNightPercentage:  between(0.3, 0.7),
			SessionVariance:      between(2, 4.5),
			BettingDays:          10 + r.IntN(5),
		}
	case kindSlowBurn:
		b = model.Behavior{
			TotalBets:            30 + r.IntN(50),
			AvgBetAmount:         money(100, 400),
			TotalDeposits:        2 + r.IntN(4),
			AvgDeposit:           money(300, 900),
			LossRate:             between(0.5, 0.65),
			MedianLossGapMinutes: between(90, 300),
			LateNightPercentage:  between(0.05, 0.2),
			SessionVariance:      between(0.5, 1.2),
			BettingDays:          6 + r.IntN(6),
		}
	case kindModerate:
		b = model.Behavior{
			TotalBets:            40 + r.IntN(60),
			AvgBetAmount:         money(50, 200),
			TotalDeposits:        4 + r.IntN(6),
			AvgDeposit:           money(100, 400),
			LossRate:             between(0.4, 0.6),
			MedianLossGapMinutes: between(20, 90),
			LateNightPercentage:  between(0.1, 0.35),
			SessionVariance:      between(0.8, 2),
			BettingDays:          5 + r.IntN(8),
		}
	default:
		b = model.Behavior{
			TotalBets:            5 + r.IntN(30),
			AvgBetAmount:         money(5, 60),
			TotalDeposits:        1 + r.IntN(3),
			AvgDeposit:           money(20, 150),
			LossRate:             between(0.2, 0.5),
			MedianLossGapMinutes: between(120, 720),
			LateNightPercentage:  between(0, 0.15),
			SessionVariance:      between(0.1, 0.8),
			BettingDays:          2 + r.IntN(10),
		}
	}
	b.TotalLossAmount = math.Round(float64(b.TotalBets)*b.AvgBetAmount*b.LossRate*0.5*100) / 100
	return b
}
