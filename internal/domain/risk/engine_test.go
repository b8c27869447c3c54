package risk_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/risk"
	"github.com/okian/riskwatch/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

type constant float64

func (c constant) PredictProba(context.Context, []float64) (float64, error) { return float64(c), nil }

func fixedModels(r7, r30 float64) *scoring.ModelSet {
	return scoring.NewModelSet("test", true, map[model.Window]scoring.WindowModel{
		model.Window7Day:  {Predictor: constant(r7), Threshold: 0.6},
		model.Window30Day: {Predictor: constant(r30), Threshold: 0.5},
	})
}

func crisisBehavior() model.Behavior {
	return model.Behavior{
		TotalBets:            287,
		AvgBetAmount:         1543.25,
		TotalDeposits:        23,
		AvgDeposit:           2500,
		LossRate:             0.82,
		MedianLossGapMinutes: 2.3,
		LateNightPercentage:  0.45,
		SessionVariance:      3.2,
		TotalLossAmount:      45230.5,
		BettingDays:          14,
	}
}

func TestFactors(t *testing.T) {
	convey.Convey("Given the immediate-crisis behaviour", t, func() {
		convey.Convey("Then every factor fires in rule order", func() {
			convey.So(risk.Factors(crisisBehavior()), convey.ShouldResemble, []string{
				"Immediate loss chasing behavior",
				"High deposit frequency",
				"Excessive late-night gambling",
				"Erratic session patterns",
				"Very high loss rate",
			})
		})
	})

	convey.Convey("Given behaviour exactly on every boundary", t, func() {
		b := model.Behavior{
			MedianLossGapMinutes: 5,
			TotalDeposits:        20,
			LateNightPercentage:  0.4,
			SessionVariance:      2,
			LossRate:             0.8,
		}
		convey.Convey("Then no factor fires because every rule is strict", func() {
			convey.So(risk.Factors(b), convey.ShouldBeEmpty)
		})
	})
}

func TestLevel(t *testing.T) {
	convey.Convey("Given window scores", t, func() {
		convey.So(risk.Level(model.Scores{SevenDay: 0.847, ThirtyDay: 0.721}), convey.ShouldEqual, model.RiskHigh)
		convey.So(risk.Level(model.Scores{SevenDay: 0.235, ThirtyDay: 0.712}), convey.ShouldEqual, model.RiskHigh)
		convey.So(risk.Level(model.Scores{SevenDay: 0.432, ThirtyDay: 0.389}), convey.ShouldEqual, model.RiskMedium)
		convey.So(risk.Level(model.Scores{SevenDay: 0.125, ThirtyDay: 0.098}), convey.ShouldEqual, model.RiskLow)

		convey.Convey("Then boundaries belong to the lower level", func() {
			convey.So(risk.Level(model.Scores{SevenDay: 0.7}), convey.ShouldEqual, model.RiskMedium)
			convey.So(risk.Level(model.Scores{ThirtyDay: 0.4}), convey.ShouldEqual, model.RiskLow)
		})
	})
}

func TestStrategy(t *testing.T) {
	convey.Convey("Given the four demo score pairs", t, func() {
		convey.So(risk.Strategy(0.847, 0.721).Pattern, convey.ShouldEqual, model.PatternImmediateCrisis)
		convey.So(risk.Strategy(0.235, 0.712).Pattern, convey.ShouldEqual, model.PatternSlowBurn)
		convey.So(risk.Strategy(0.432, 0.389).Pattern, convey.ShouldEqual, model.PatternModerateRisk)
		convey.So(risk.Strategy(0.125, 0.098).Pattern, convey.ShouldEqual, model.PatternControlled)
	})

	convey.Convey("Given scores on rule boundaries", t, func() {
		convey.Convey("Then 0.7 on both is moderate, not crisis", func() {
			s := risk.Strategy(0.7, 0.7)
			convey.So(s.Pattern, convey.ShouldEqual, model.PatternModerateRisk)
			convey.So(s.Urgency, convey.ShouldEqual, model.UrgencyMonitor)
		})
		convey.Convey("Then a short score of 0.4 is not a slow burn", func() {
			convey.So(risk.Strategy(0.4, 0.9).Pattern, convey.ShouldEqual, model.PatternModerateRisk)
		})
		convey.Convey("Then a high short score with a low long score falls through to controlled", func() {
			convey.So(risk.Strategy(0.9, 0.2).Pattern, convey.ShouldEqual, model.PatternControlled)
		})
	})

	convey.Convey("Given the crisis strategy", t, func() {
		s := risk.Strategy(0.9, 0.9)
		convey.So(s.Urgency, convey.ShouldEqual, model.UrgencyUrgent)
		convey.So(s.Actions, convey.ShouldHaveLength, 4)
		convey.So(s.Actions[0], convey.ShouldEqual, "Immediate deposit limit")
	})
}

func TestPredictions(t *testing.T) {
	convey.Convey("Given an engine with custom confidences", t, func() {
		e := risk.New(fixedModels(0, 0), risk.WithConfidence(0.9, 0.8))

		convey.Convey("When both scores are above the hint thresholds", func() {
			p := e.Predictions(model.Scores{SevenDay: 0.84712, ThirtyDay: 0.72149})

			convey.Convey("Then scores are rounded and hints attached", func() {
				convey.So(p[model.Window7Day].RiskScore, convey.ShouldEqual, 0.847)
				convey.So(p[model.Window7Day].WindowDays, convey.ShouldEqual, 7)
				convey.So(p[model.Window7Day].Confidence, convey.ShouldEqual, 0.9)
				convey.So(p[model.Window7Day].AboveThreshold, convey.ShouldBeTrue)
				convey.So(p[model.Window7Day].PredictedBehaviors, convey.ShouldResemble, []string{"Frequency increase likely"})
				convey.So(p[model.Window30Day].RiskScore, convey.ShouldEqual, 0.721)
				convey.So(p[model.Window30Day].Confidence, convey.ShouldEqual, 0.8)
				convey.So(p[model.Window30Day].PredictedBehaviors, convey.ShouldResemble, []string{"Potential loss spiral"})
			})
		})

		convey.Convey("When scores sit exactly on the hint thresholds", func() {
			p := e.Predictions(model.Scores{SevenDay: 0.5, ThirtyDay: 0.6})

			convey.Convey("Then no behaviours are predicted", func() {
				convey.So(p[model.Window7Day].PredictedBehaviors, convey.ShouldBeEmpty)
				convey.So(p[model.Window7Day].AboveThreshold, convey.ShouldBeFalse)
				convey.So(p[model.Window30Day].PredictedBehaviors, convey.ShouldBeEmpty)
				convey.So(p[model.Window30Day].AboveThreshold, convey.ShouldBeTrue)
			})
		})
	})
}

func TestAssess(t *testing.T) {
	convey.Convey("Given an engine with fixed models", t, func() {
		at := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
		e := risk.New(fixedModels(0.432, 0.389),
			risk.WithModelVersion("1.0.0"),
			risk.WithClock(func() time.Time { return at }),
			risk.WithIDGenerator(func() string { return "fixed-id" }),
		)
		ctx := context.Background()

		convey.Convey("When assessing a profile without preset scores", func() {
			a, err := e.Assess(ctx, model.Profile{UserID: 555, Behavior: crisisBehavior()}, time.Time{})

			convey.Convey("Then model scores drive the result", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.AssessmentID, convey.ShouldEqual, "fixed-id")
				convey.So(a.UserID, convey.ShouldEqual, 555)
				convey.So(a.AccountAgeDays, convey.ShouldEqual, 14)
				convey.So(a.AssessmentDate, convey.ShouldEqual, at)
				convey.So(a.OverallRiskLevel, convey.ShouldEqual, model.RiskMedium)
				convey.So(a.InterventionPolicy.Pattern, convey.ShouldEqual, model.PatternModerateRisk)
				convey.So(a.RiskFactors, convey.ShouldHaveLength, 5)
				convey.So(a.Metadata["model_version"], convey.ShouldEqual, "1.0.0")
				convey.So(a.Metadata["assessment_type"], convey.ShouldEqual, "new_user_14_day")
				convey.So(a.Metadata["score_source"], convey.ShouldEqual, risk.SourceModel)
			})
		})

		convey.Convey("When assessing a profile with preset scores", func() {
			requested := at.Add(-48 * time.Hour)
			a, err := e.Assess(ctx, model.Profile{
				UserID:   12345,
				Behavior: crisisBehavior(),
				Preset:   &model.Scores{SevenDay: 0.847, ThirtyDay: 0.721},
			}, requested)

			convey.Convey("Then the preset wins and the requested date is kept", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(a.AssessmentDate, convey.ShouldEqual, requested)
				convey.So(a.OverallRiskLevel, convey.ShouldEqual, model.RiskHigh)
				convey.So(a.InterventionPolicy.Pattern, convey.ShouldEqual, model.PatternImmediateCrisis)
				convey.So(a.Scores(), convey.ShouldResemble, model.Scores{SevenDay: 0.847, ThirtyDay: 0.721})
				convey.So(a.Metadata["score_source"], convey.ShouldEqual, risk.SourcePreset)
			})
		})

		convey.Convey("When the behaviour is invalid", func() {
			b := crisisBehavior()
			b.LossRate = 3
			_, err := e.Assess(ctx, model.Profile{UserID: 1, Behavior: b}, time.Time{})
			convey.So(errors.Is(err, model.ErrInvalidBehavior), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given an engine over the fallback models", t, func() {
		e := risk.New(scoring.Fallback())

		convey.Convey("Then repeated assessments of the same behaviour agree", func() {
			ctx := context.Background()
			a, err := e.Assess(ctx, model.Profile{UserID: 9, Behavior: crisisBehavior()}, time.Time{})
			convey.So(err, convey.ShouldBeNil)
			b, _ := e.Assess(ctx, model.Profile{UserID: 9, Behavior: crisisBehavior()}, time.Time{})
			convey.So(a.Scores(), convey.ShouldResemble, b.Scores())
			convey.So(a.AssessmentID, convey.ShouldNotEqual, b.AssessmentID)
			convey.So(e.ModelsLoaded(), convey.ShouldBeFalse)
		})
	})
}
