package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/ecoledger/internal/simulator"
	"github.com/okian/ecoledger/pkg/logger"
)

const (
	defaultUsers   = 1000
	defaultActions = 10000
	defaultTopN    = 100
	defaultTimeout = 10 * time.Second
	runTimeout     = 10 * time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := &simulator.Config{}
	var logFormat string
	var multipliers map[string]string
	cmd := &cobra.Command{
		Use:   "action-sim",
		Short: "Load the rewards API with generated actions and verify the results",
		Long: `action-sim generates random sustainability actions for a set of users,
submits them concurrently to a running rewards service, replays a share of
action ids to exercise idempotency, and then checks every user's balance and
the global and regional leaderboards against a local recomputation.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			if cfg.Verbose {
				_ = logger.SetLevelString("debug")
			}
			parsed, err := parseMultipliers(multipliers)
			if err != nil {
				return err
			}
			cfg.Multipliers = parsed

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, runTimeout)
			defer cancel()

			report, err := simulator.Run(ctx, cfg)
			if err != nil {
				return err
			}
			for _, p := range report.Problems {
				fmt.Fprintln(cmd.ErrOrStderr(), p)
			}
			for _, m := range report.Mismatches {
				fmt.Fprintf(cmd.ErrOrStderr(), "user %s: expected %d points, got %d\n", m.UserID, m.Expected, m.Got)
			}
			if !report.OK() {
				return fmt.Errorf("verification failed: %d problems, %d balance mismatches, %d failed actions",
					len(report.Problems), len(report.Mismatches), report.Stats.ActionsFailed)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d actions, %d users verified in %s\n",
				report.Stats.ActionsSubmitted, report.Stats.UsersVerified, report.Stats.Duration.Round(time.Millisecond))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.BaseURL, "url", "u", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Users, "users", defaultUsers, "Number of distinct users")
	f.IntVarP(&cfg.Actions, "actions", "n", defaultActions, "Number of actions to generate")
	f.StringSliceVar(&cfg.Regions, "regions", []string{"Berlin", "Lisbon", "New York", "Nairobi"}, "Locations assigned to users")
	f.Float64Var(&cfg.DuplicateRate, "duplicates", 0.05, "Fraction of actions re-sent with the same action_id")
	f.IntVarP(&cfg.Workers, "workers", "w", runtime.NumCPU()*2, "Concurrent HTTP workers")
	f.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "Per-request timeout")
	f.IntVar(&cfg.TopN, "top", defaultTopN, "Leaderboard rows to fetch and verify")
	f.Uint64Var(&cfg.Seed, "seed", 0, "Random seed (0 picks one)")
	f.StringVarP(&cfg.OutputFile, "output", "o", "", "Write generated actions to this JSON file")
	f.StringToStringVar(&multipliers, "multiplier", nil, "Scoring override the server runs with, as kind=value (repeatable)")
	f.Float64Var(&cfg.DefaultMultiplier, "default-multiplier", 0, "Fallback multiplier the server runs with (0 keeps the built-in one)")
	f.StringVar(&logFormat, "log-format", "text", "Log format: text or json")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log individual failures")
	return cmd
}

func parseMultipliers(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for kind, v := range raw {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("multiplier %s: %w", kind, err)
		}
		out[kind] = m
	}
	return out, nil
}
