package repository

import "time"

const (
	defaultShardCount   = 16
	defaultGaugeRefresh = 5 * time.Second
)

// Option applies a configuration option to the LedgerStore.
type Option func(*LedgerStore)

// WithShardCount sets the number of user-id shards.
func WithShardCount(n int) Option {
	return func(s *LedgerStore) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithIndex shares an existing leaderboard index.
func WithIndex(ix *LeaderboardIndex) Option {
	return func(s *LedgerStore) {
		if ix != nil {
			s.index = ix
		}
	}
}

// WithClock overrides the time source used for new entries.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGaugeRefresh sets how often Run publishes size gauges.
func WithGaugeRefresh(interval time.Duration) Option {
	return func(s *LedgerStore) {
		if interval > 0 {
			s.gaugeRefresh = interval
		}
	}
}
