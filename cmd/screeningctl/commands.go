package main

import (
	"context"
	"fmt"
	"log/slog"

	"screening-platform/internal/app"
	"screening-platform/internal/config"
	"screening-platform/internal/reporting"
	"screening-platform/pkg/logger"
	"screening-platform/pkg/utils"

	"github.com/spf13/cobra"
)

var migrationsDir string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir := migrationsDir
		if dir == "" {
			dir = cfg.App.MigrationsDir
		}
		if dir == "" {
			return fmt.Errorf("no migrations dir: pass --dir or set MIGRATIONS_DIR")
		}
		if err := utils.RunMigrations(cfg.PostgresURL(), dir); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
		return nil
	},
}

var sweepApplication string

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Reject stale scheduled and in-progress calls",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			var (
				n   int
				err error
			)
			if sweepApplication != "" {
				n, err = a.Reaper.SweepApplication(ctx, sweepApplication)
			} else {
				n, err = a.Reaper.Sweep(ctx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d call(s)\n", n)
			return err
		})
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <screening-call-id>",
	Short: "Retrieve, reconcile and finalize an ended call now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			status, err := a.Orchestrator.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary <job-id>",
	Short: "Print the screening summary of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			s, err := a.Reports.JobSummary(ctx, reporting.JobSummaryRequest{JobID: args[0]})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "job %s: %d calls, %d completed, %d rejected, %d active\n",
				s.JobID, s.TotalCalls, s.CompletedCalls, s.RejectedCalls, s.ActiveCalls)
			fmt.Fprintf(out, "completion rate %.0f%%, average duration %ds\n", s.CompletionRate*100, s.AverageDurationSeconds)
			for reason, n := range s.RejectionsByReason {
				fmt.Fprintf(out, "  %s: %d\n", reason, n)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.Flags().StringVar(&migrationsDir, "dir", "", "Migrations directory (defaults to MIGRATIONS_DIR)")
	sweepCmd.Flags().StringVar(&sweepApplication, "application", "", "Only sweep calls of this application")
	rootCmd.AddCommand(migrateCmd, sweepCmd, resolveCmd, summaryCmd)
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.App.Env, "screeningctl")
	slog.SetDefault(log)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
