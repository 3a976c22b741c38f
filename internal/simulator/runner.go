// Package simulator drives the rewards API with generated sustainability
// actions and verifies balances and leaderboards against a local recomputation.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
	progressInterval    = time.Second
	percentage          = 100
)

// Run generates actions, submits them concurrently, then checks every
// generated user's balance and the global and regional leaderboards. A
// returned error means the run could not complete; failed checks are in the
// report.
func Run(ctx context.Context, cfg *Config) (*Report, error) {
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	log := logger.Get().Named("simulator")
	report := &Report{Stats: Stats{StartTime: time.Now()}}

	log.Info(ctx, "starting simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("actions", cfg.Actions),
		logger.Strings("regions", cfg.Regions),
		logger.Int("workers", cfg.Workers),
		logger.Int64("seed", int64(cfg.Seed)))

	c := newClient(cfg.BaseURL, cfg.Timeout)
	if err := c.health(ctx); err != nil {
		return nil, err
	}

	actions := Generate(ctx, cfg)
	report.Stats.ActionsGenerated = len(actions)
	if cfg.OutputFile != "" {
		if err := saveActions(cfg.OutputFile, actions); err != nil {
			log.Warn(ctx, "failed to save actions", logger.Error(err))
		}
	}

	submit(ctx, cfg, c, actions, &report.Stats)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submission interrupted: %w", err)
	}

	expected, regions := Expected(actions, cfg.table())
	verifyUsers(ctx, cfg, c, expected, regions, report)

	if err := verifyBoards(ctx, cfg, c, expected, regions, report); err != nil {
		return nil, err
	}

	report.Stats.EndTime = time.Now()
	report.Stats.Duration = report.Stats.EndTime.Sub(report.Stats.StartTime)
	logStats(ctx, log, report)
	return report, nil
}

func normalize(cfg *Config) error {
	switch {
	case cfg.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case cfg.Users < 1:
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	case cfg.Actions < cfg.Users:
		return fmt.Errorf("%w: actions (%d) must be at least users (%d)", ErrInvalidConfig, cfg.Actions, cfg.Users)
	case cfg.DuplicateRate < 0 || cfg.DuplicateRate > 1:
		return fmt.Errorf("%w: duplicate rate must be within [0,1]", ErrInvalidConfig)
	case cfg.DefaultMultiplier < 0:
		return fmt.Errorf("%w: default multiplier must not be negative", ErrInvalidConfig)
	}
	for name, m := range cfg.Multipliers {
		if m < 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			return fmt.Errorf("%w: multiplier for %q must be a finite non-negative number", ErrInvalidConfig, name)
		}
	}
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TopN < 1 {
		cfg.TopN = 100
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	return nil
}

// fanOut calls fn for 0..n-1 on cfg.Workers goroutines and stops feeding
// work once ctx is done.
func fanOut(ctx context.Context, workers, n int, fn func(i int)) {
	work := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				fn(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return
		case work <- i:
		}
	}
	close(work)
	wg.Wait()
}

func submit(ctx context.Context, cfg *Config, c *client, actions []Action, stats *Stats) {
	log := logger.Get().Named("simulator")
	var submitted, applied, duplicate, failed atomic.Int64
	var lastReport atomic.Int64

	fanOut(ctx, cfg.Workers, len(actions), func(i int) {
		res, err := c.track(ctx, actions[i].Request)
		submitted.Add(1)
		switch res {
		case outcomeApplied:
			applied.Add(1)
		case outcomeDuplicate:
			duplicate.Add(1)
		default:
			failed.Add(1)
			if cfg.Verbose {
				log.Warn(ctx, "action failed", logger.String("action_id", actions[i].Request.ActionID), logger.Error(err))
			}
		}

		now := time.Now().UnixNano()
		last := lastReport.Load()
		if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
			log.Info(ctx, "progress",
				logger.Int64("submitted", submitted.Load()),
				logger.Int("total", len(actions)),
				logger.Int64("applied", applied.Load()),
				logger.Int64("duplicate", duplicate.Load()),
				logger.Int64("failed", failed.Load()))
		}
	})

	stats.ActionsSubmitted = int(submitted.Load())
	stats.ActionsApplied = int(applied.Load())
	stats.ActionsDuplicate = int(duplicate.Load())
	stats.ActionsFailed = int(failed.Load())
}

func verifyUsers(ctx context.Context, cfg *Config, c *client, expected map[string]int64, regions map[string]string, report *Report) {
	log := logger.Get().Named("simulator")
	users := make([]string, 0, len(expected))
	for u := range expected {
		users = append(users, u)
	}
	sort.Strings(users)

	var (
		mu       sync.Mutex
		verified int
	)
	fanOut(ctx, cfg.Workers, len(users), func(i int) {
		id := users[i]
		got, err := c.user(ctx, id)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Problems = append(report.Problems, fmt.Sprintf("user %s: %v", id, err))
			return
		}
		verified++
		m, problems, ok := checkBalance(got, expected[id], regions[id])
		report.Problems = append(report.Problems, problems...)
		if !ok {
			report.Mismatches = append(report.Mismatches, m)
			if cfg.Verbose {
				log.Warn(ctx, "balance mismatch", logger.String("user_id", id),
					logger.Int64("expected", m.Expected), logger.Int64("got", m.Got))
			}
		}
	})

	sort.Slice(report.Mismatches, func(i, j int) bool { return report.Mismatches[i].UserID < report.Mismatches[j].UserID })
	report.Stats.UsersVerified = verified
	report.Stats.BalanceMismatches = len(report.Mismatches)
}

func verifyBoards(ctx context.Context, cfg *Config, c *client, expected map[string]int64, regions map[string]string, report *Report) error {
	scopes := []string{""}
	for _, region := range distinctRegions(cfg.Regions) {
		// A region no generated user landed in may not exist on the server.
		if hasUserIn(regions, region) {
			scopes = append(scopes, region)
		}
	}
	for _, region := range scopes {
		board, err := c.leaderboard(ctx, region, cfg.TopN)
		if err != nil {
			return fmt.Errorf("fetch leaderboard %q: %w", region, err)
		}
		report.Problems = append(report.Problems, checkLeaderboard(board, expected, regions, region)...)
		report.Stats.LeaderboardChecked++
	}
	return nil
}

func hasUserIn(regions map[string]string, region string) bool {
	want := model.NormalizeRegion(region)
	for _, r := range regions {
		if model.NormalizeRegion(r) == want {
			return true
		}
	}
	return false
}

func saveActions(path string, actions []Action) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(actions, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	if err := os.WriteFile(path, data, filePermission); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func logStats(ctx context.Context, log logger.Logger, report *Report) {
	s := report.Stats
	var successRate, perSecond float64
	if s.ActionsSubmitted > 0 {
		successRate = float64(s.ActionsApplied+s.ActionsDuplicate) / float64(s.ActionsSubmitted) * percentage
	}
	if s.Duration > 0 {
		perSecond = float64(s.ActionsSubmitted) / s.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("actionsGenerated", s.ActionsGenerated),
		logger.Int("actionsSubmitted", s.ActionsSubmitted),
		logger.Int("actionsApplied", s.ActionsApplied),
		logger.Int("actionsDuplicate", s.ActionsDuplicate),
		logger.Int("actionsFailed", s.ActionsFailed),
		logger.Int("usersVerified", s.UsersVerified),
		logger.Int("balanceMismatches", s.BalanceMismatches),
		logger.Int("leaderboardsChecked", s.LeaderboardChecked),
		logger.Int("problems", len(report.Problems)),
		logger.Duration("duration", s.Duration),
		logger.Float64("successRate", successRate),
		logger.Float64("actionsPerSecond", perSecond))
}
