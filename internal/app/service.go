// Package service is the reward engine: it validates actions, applies them to
// the ledger, composes the reward response and drives best-effort minting.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/okian/ecoledger/internal/adapters/journal"
	"github.com/okian/ecoledger/internal/adapters/mint"
	"github.com/okian/ecoledger/internal/adapters/mq/queue"
	"github.com/okian/ecoledger/internal/adapters/mq/worker"
	"github.com/okian/ecoledger/internal/adapters/repository"
	"github.com/okian/ecoledger/internal/domain/badges"
	"github.com/okian/ecoledger/internal/domain/dedupe"
	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/scoring"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
)

const (
	defaultDedupeSize       = 50_000
	defaultQueueSize        = 1024
	defaultMintTimeout      = 3 * time.Second
	defaultLeaderboardLimit = 100
	maxLeaderboardLimit     = 1000
	defaultRecentActions    = 10
)

// Journal is the persistence contract: every applied action is appended and
// replayed in order on Start.
type Journal interface {
	Append(ctx context.Context, r journal.Record) error
	Replay(ctx context.Context, fn func(journal.Record) error) (int, int64, error)
	Close() error
}

// Service implements the reward engine behind the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	ledger  repository.Ledger
	table   *scoring.Table
	rules   *badges.RuleSet
	deduper dedupe.Deduper
	journal Journal

	// Minting
	planner   *mint.Planner
	gateway   mint.Gateway
	mintQueue queue.Queue
	pool      *worker.Pool

	// Configuration
	shardCount    int
	dedupeSize    int
	workerCount   int
	queueSize     int
	mintTimeout   time.Duration
	defaultLimit  int
	maxLimit      int
	recentActions int
	now           func() time.Time

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Components not supplied through options are
// built with defaults.
func New(opts ...Option) *Service {
	s := &Service{
		shardCount:    16,
		dedupeSize:    defaultDedupeSize,
		workerCount:   runtime.NumCPU(),
		queueSize:     defaultQueueSize,
		mintTimeout:   defaultMintTimeout,
		defaultLimit:  defaultLeaderboardLimit,
		maxLimit:      maxLeaderboardLimit,
		recentActions: defaultRecentActions,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.table == nil {
		s.table = scoring.New()
	}
	if s.rules == nil {
		s.rules = badges.Default()
	}
	if s.ledger == nil {
		s.ledger = repository.NewLedgerStore(s.table, s.rules,
			repository.WithShardCount(s.shardCount),
			repository.WithClock(s.now),
			repository.WithGaugeRefresh(metrics.RefreshInterval()),
		)
	}
	if s.deduper == nil && s.dedupeSize > 0 {
		s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	}
	return s
}

// Start replays the journal and starts background components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting rewards service...")

	if s.journal != nil {
		if err := s.restore(ctx); err != nil {
			return err
		}
	}

	// Background work outlives the start context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if r, ok := s.ledger.(interface{ Run(context.Context) }); ok {
		go r.Run(runCtx)
	}

	if s.mintingEnabled() {
		if s.mintQueue == nil {
			s.mintQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
		}
		s.pool = worker.NewPool(s.workerCount, s.mintQueue, s.gateway)
		s.pool.Start(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "rewards service started",
		logger.Int("users", s.ledger.Count(ctx)),
		logger.Bool("minting", s.mintingEnabled()),
		logger.Int("workers", s.workerCount),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// restore rebuilds the ledger from the journal. Caller holds s.mu.
func (s *Service) restore(ctx context.Context) error {
	count, maxSeq, err := s.journal.Replay(ctx, func(r journal.Record) error {
		ids := make([]model.BadgeID, len(r.Badges))
		for i, b := range r.Badges {
			ids[i] = model.BadgeID(b)
		}
		cmd := repository.RestoreCommand{
			ApplyCommand: repository.ApplyCommand{
				UserID:    r.UserID,
				Action:    model.ParseActionType(r.Action),
				Magnitude: r.Magnitude,
				Location:  r.Location,
				Timestamp: r.Timestamp,
			},
			Points: r.Points,
			Badges: ids,
		}
		if err := s.ledger.Restore(ctx, cmd); err != nil {
			return fmt.Errorf("restore seq %d: %w", r.Seq, err)
		}
		if r.ActionID != "" && s.deduper != nil {
			s.deduper.SeenAndRecord(ctx, dedupeKey(r.UserID, r.ActionID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay journal: %w", err)
	}
	s.ledger.ResumeSeq(ctx, maxSeq)
	s.logger.Info(ctx, "ledger restored", logger.Int("records", count), logger.Int("users", s.ledger.Count(ctx)))
	return nil
}

// Stop drains mint jobs, stops background work and closes the journal.
// In-flight requests finish first.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping rewards service...")

	var firstErr error
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, "mint pool shutdown", logger.Error(err))
			firstErr = err
		}
		s.pool = nil
		s.mintQueue = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.journal != nil {
		if err := s.journal.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close journal: %w", err)
		}
	}

	s.started = false
	s.logger.Info(ctx, "rewards service stopped")
	return firstErr
}

func (s *Service) mintingEnabled() bool {
	return s.planner != nil && s.gateway != nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"minting":     s.mintingEnabled(),
		"journal":     s.journal != nil,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	users := s.ledger.Count(ctx)
	regions := len(s.ledger.Regions(ctx))
	stats["totalUsers"] = users
	stats["regions"] = regions
	metrics.UpdateUsersTotal(users)
	metrics.UpdateRegionsTotal(regions)

	if s.deduper != nil {
		stats["dedupeEntries"] = s.deduper.Size()
	}
	if s.mintQueue != nil {
		stats["queueLength"] = s.mintQueue.Len(ctx)
	}
	return stats
}

func dedupeKey(userID, actionID string) string {
	return userID + "\x1f" + actionID
}
