package service

import (
	"time"

	"github.com/okian/ecoledger/internal/adapters/mint"
	"github.com/okian/ecoledger/internal/adapters/mq/queue"
	"github.com/okian/ecoledger/internal/adapters/repository"
	"github.com/okian/ecoledger/internal/domain/badges"
	"github.com/okian/ecoledger/internal/domain/dedupe"
	"github.com/okian/ecoledger/internal/domain/scoring"
	"github.com/okian/ecoledger/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLedger sets the ledger store. By default one is built from the
// scoring table and rule set.
func WithLedger(l repository.Ledger) Option {
	return func(s *Service) {
		if l != nil {
			s.ledger = l
		}
	}
}

// WithScoringTable sets the scoring table used by the default ledger.
func WithScoringTable(t *scoring.Table) Option {
	return func(s *Service) {
		if t != nil {
			s.table = t
		}
	}
}

// WithRuleSet sets the badge catalogue.
func WithRuleSet(rs *badges.RuleSet) Option {
	return func(s *Service) {
		if rs != nil {
			s.rules = rs
		}
	}
}

// WithShardCount sets the shard count of the default ledger.
func WithShardCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithDeduper sets the action_id cache.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) {
		if d != nil {
			s.deduper = d
		}
	}
}

// WithDedupeSize bounds the default action_id cache. Zero disables
// idempotency checks.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithMinting enables NFT minting through gateway. Without it wallet
// addresses are ignored.
func WithMinting(planner *mint.Planner, gateway mint.Gateway) Option {
	return func(s *Service) {
		if planner != nil && gateway != nil {
			s.planner = planner
			s.gateway = gateway
		}
	}
}

// WithMintQueue sets the queue between the engine and the mint workers.
func WithMintQueue(q queue.Queue) Option {
	return func(s *Service) {
		if q != nil {
			s.mintQueue = q
		}
	}
}

// WithWorkerCount sets the number of mint workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the default mint queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithMintTimeout bounds how long an action waits for mint outcomes.
func WithMintTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mintTimeout = d
		}
	}
}

// WithJournal persists applied actions and replays them on Start.
func WithJournal(j Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithLeaderboardLimits sets the default and maximum leaderboard sizes.
func WithLeaderboardLimits(def, maxLimit int) Option {
	return func(s *Service) {
		if def > 0 && maxLimit >= def {
			s.defaultLimit = def
			s.maxLimit = maxLimit
		}
	}
}

// WithRecentActions sets how many history records a user query returns.
func WithRecentActions(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.recentActions = n
		}
	}
}

// WithClock overrides the time source for actions without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
