// Command riskload drives a running riskwatch service with synthetic users.
package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okian/riskwatch/internal/loadtest"
	"github.com/okian/riskwatch/pkg/logger"
)

// defaultWorkersPerCPU scales the default registration concurrency.
const defaultWorkersPerCPU = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree; flags shared by every subcommand are
// bound to one Config.
func newRootCmd() *cobra.Command {
	cfg := &loadtest.Config{}

	root := &cobra.Command{
		Use:   "riskload",
		Short: "Load and smoke test tool for the riskwatch API",
		Long: `riskload registers synthetic behaviour summaries, submits them as batches
and waits until the service has assessed every queued user. The demo
subcommand prints the four reference assessments.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithWriter(cmd.ErrOrStderr())); err != nil {
				return err
			}
			if cfg.Verbose {
				return logger.SetLevelString("debug")
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.BaseURL, "url", loadtest.DefaultBaseURL, "base URL of the service")
	flags.DurationVar(&cfg.Timeout, "timeout", loadtest.DefaultTimeout, "per-request HTTP timeout")
	flags.BoolVar(&cfg.Verbose, "verbose", false, "log every failed request")

	root.AddCommand(newRunCmd(cfg), newDemoCmd(cfg))
	return root
}

func newRunCmd(cfg *loadtest.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register synthetic users, submit batches and wait for processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := loadtest.Run(cmd.Context(), cfg)
			if stats != nil {
				if perr := loadtest.PrintReport(cmd.OutOrStdout(), stats); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().IntVar(&cfg.Users, "users", loadtest.DefaultUsers, "number of synthetic users")
	cmd.Flags().IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkersPerCPU, "concurrent registration requests")
	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", loadtest.DefaultBatchSize, "users per batch submission")
	cmd.Flags().DurationVar(&cfg.Wait, "wait", loadtest.DefaultWait, "how long to wait for batch processing")
	cmd.Flags().DurationVar(&cfg.PollInterval, "poll", loadtest.DefaultPollInterval, "delay between progress polls")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", loadtest.DefaultSeed, "generator seed")
	return cmd
}

func newDemoCmd(cfg *loadtest.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Print the demo overview",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return loadtest.Demo(cmd.Context(), cfg, cmd.OutOrStdout())
		},
	}
}
