package loadtest

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/okian/riskwatch/internal/domain/model"
)

// percentMultiplier converts ratios to percentages.
const percentMultiplier = 100

// demoOrder lists the overview patterns from most to least urgent.
var demoOrder = []string{"immediate_crisis", "slow_burn", "moderate_risk", "controlled"} //nolint:gochecknoglobals // fixed layout

// PrintReport writes a human-readable summary of stats to w.
func PrintReport(w io.Writer, stats *Stats) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var throughput, successRate float64
	if stats.Duration > 0 {
		throughput = float64(stats.JobsProcessed+stats.JobsFailed) / stats.Duration.Seconds()
	}
	if stats.JobsQueued > 0 {
		successRate = float64(stats.JobsProcessed) / float64(stats.JobsQueued) * percentMultiplier
	}

	fmt.Fprintf(tw, "run\t%s\n", stats.RunID)
	fmt.Fprintf(tw, "users generated\t%d\n", stats.UsersGenerated)
	fmt.Fprintf(tw, "users created / replaced / failed\t%d / %d / %d\n", stats.UsersCreated, stats.UsersReplaced, stats.RegisterFailed)
	fmt.Fprintf(tw, "batches accepted / duplicate / rejected\t%d / %d / %d\n", stats.BatchesAccepted, stats.BatchesDuplicate, stats.BatchesRejected)
	fmt.Fprintf(tw, "jobs queued / processed / failed\t%d / %d / %d\n", stats.JobsQueued, stats.JobsProcessed, stats.JobsFailed)
	fmt.Fprintf(tw, "complete\t%t\n", stats.Complete)
	fmt.Fprintf(tw, "duration\t%s\n", stats.Duration.Round(time.Millisecond))
	fmt.Fprintf(tw, "jobs per second\t%.1f\n", throughput)
	fmt.Fprintf(tw, "job success rate\t%.1f%%\n", successRate)

	if rep := stats.Summary; rep != nil {
		fmt.Fprintf(tw, "users assessed (all time)\t%d\n", rep.TotalUsersAssessed)
		for _, l := range model.RiskLevels() {
			fmt.Fprintf(tw, "  %s\t%d (%.1f%%)\n", l, rep.RiskDistribution[l], rep.RiskDistributionPercentages[l])
		}
		for _, p := range model.Patterns() {
			fmt.Fprintf(tw, "  %s\t%d\n", p, rep.PatternDistribution[p])
		}
		fmt.Fprintf(tw, "protection rate\t%.1f%%\n", rep.ProtectionRate)
	}
	return tw.Flush()
}

// Demo fetches the demo overview and writes one line per pattern to w.
func Demo(ctx context.Context, config *Config, w io.Writer) error {
	cfg := config.withDefaults()
	overview, err := NewClient(cfg.BaseURL, cfg.Timeout).DemoOverview(ctx)
	if err != nil {
		return fmt.Errorf("demo overview: %w", err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATTERN\tUSER\tLEVEL\t7 DAY\t30 DAY\tURGENCY\tFACTORS")
	for _, key := range demoOrder {
		a, ok := overview.Patterns[key]
		if !ok {
			continue
		}
		s := a.Scores()
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.3f\t%.3f\t%s\t%d\n",
			a.InterventionPolicy.Pattern, a.UserID, a.OverallRiskLevel,
			s.SevenDay, s.ThirtyDay, a.InterventionPolicy.Urgency, len(a.RiskFactors))
	}
	return tw.Flush()
}
