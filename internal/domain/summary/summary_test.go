package summary_test

import (
	"testing"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
	"github.com/okian/riskwatch/internal/domain/summary"
	"github.com/smartystreets/goconvey/convey"
)

func TestSummarize(t *testing.T) {
	perf := summary.Performance{SevenDayAccuracy: 72.7, ThirtyDayAccuracy: 64.5, TargetAccuracy: 70}
	day := time.Date(2025, 2, 1, 18, 30, 0, 0, time.UTC)

	convey.Convey("Given no records", t, func() {
		rep := summary.Summarize(nil, perf, day)

		convey.Convey("Then every bucket is present and zero", func() {
			convey.So(rep.AssessmentDate, convey.ShouldEqual, "2025-02-01")
			convey.So(rep.TotalUsersAssessed, convey.ShouldEqual, 0)
			convey.So(rep.ProtectionRate, convey.ShouldEqual, 0)
			convey.So(rep.RiskDistribution, convey.ShouldHaveLength, 4)
			convey.So(rep.RiskDistribution[model.RiskCritical], convey.ShouldEqual, 0)
			convey.So(rep.PatternDistribution, convey.ShouldHaveLength, 4)
			convey.So(rep.RiskDistributionPercentages[model.RiskLow], convey.ShouldEqual, 0)
			convey.So(rep.ModelPerformance, convey.ShouldResemble, perf)
		})
	})

	convey.Convey("Given the four demo patterns plus a re-assessment", t, func() {
		t0 := day.Add(-time.Hour)
		records := []model.Record{
			{UserID: 12345, Level: model.RiskHigh, Pattern: model.PatternImmediateCrisis, Urgency: model.UrgencyUrgent, AssessedAt: t0},
			{UserID: 67890, Level: model.RiskHigh, Pattern: model.PatternSlowBurn, Urgency: model.UrgencyPreventive, AssessedAt: t0},
			{UserID: 23456, Level: model.RiskMedium, Pattern: model.PatternModerateRisk, Urgency: model.UrgencyMonitor, AssessedAt: t0},
			{UserID: 34567, Level: model.RiskLow, Pattern: model.PatternControlled, Urgency: model.UrgencyStandard, AssessedAt: t0},
			// older assessment of 34567 must not count
			{UserID: 34567, Level: model.RiskHigh, Pattern: model.PatternImmediateCrisis, Urgency: model.UrgencyUrgent, AssessedAt: t0.Add(-24 * time.Hour)},
		}
		rep := summary.Summarize(records, perf, day)

		convey.Convey("Then only the latest record per user counts", func() {
			convey.So(rep.TotalUsersAssessed, convey.ShouldEqual, 4)
			convey.So(rep.RiskDistribution[model.RiskHigh], convey.ShouldEqual, 2)
			convey.So(rep.RiskDistribution[model.RiskMedium], convey.ShouldEqual, 1)
			convey.So(rep.RiskDistribution[model.RiskLow], convey.ShouldEqual, 1)
			convey.So(rep.PatternDistribution[model.PatternControlled], convey.ShouldEqual, 1)
		})

		convey.Convey("Then derived counters follow their definitions", func() {
			convey.So(rep.InterventionTriggered, convey.ShouldEqual, 2)
			convey.So(rep.UsersAtRisk, convey.ShouldEqual, 3)
			convey.So(rep.UsersProtected, convey.ShouldEqual, 2)
			convey.So(rep.ProtectionRate, convey.ShouldEqual, 50)
			convey.So(rep.RiskDistributionPercentages[model.RiskHigh], convey.ShouldEqual, 50)
			convey.So(rep.RiskDistributionPercentages[model.RiskMedium], convey.ShouldEqual, 25)
		})
	})

	convey.Convey("Given three users", t, func() {
		records := []model.Record{
			{UserID: 1, Level: model.RiskLow, Urgency: model.UrgencyStandard, Pattern: model.PatternControlled},
			{UserID: 2, Level: model.RiskLow, Urgency: model.UrgencyStandard, Pattern: model.PatternControlled},
			{UserID: 3, Level: model.RiskMedium, Urgency: model.UrgencyMonitor, Pattern: model.PatternModerateRisk},
		}
		rep := summary.Summarize(records, perf, day)

		convey.Convey("Then percentages are rounded to one decimal", func() {
			convey.So(rep.RiskDistributionPercentages[model.RiskLow], convey.ShouldEqual, 66.7)
			convey.So(rep.RiskDistributionPercentages[model.RiskMedium], convey.ShouldEqual, 33.3)
		})
	})
}
