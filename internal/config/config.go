// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) to build a Config with defaults; Load layers file and env on top.
// - External errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ShardCount configures the number of user-id shards in the ledger store.
	ShardCount int `koanf:"shard_count"`

	// DedupeSize bounds the action_id idempotency cache. Zero disables it.
	DedupeSize int `koanf:"dedupe_size"`

	// DefaultLeaderboardLimit is used when a leaderboard query omits limit.
	DefaultLeaderboardLimit int `koanf:"default_leaderboard_limit"`

	// MaxLeaderboardLimit caps the leaderboard limit parameter.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ActionMultipliers overrides or extends the built-in scoring table.
	ActionMultipliers map[string]float64 `koanf:"action_multipliers"`

	// DefaultMultiplier scores kinds without an entry in the table.
	DefaultMultiplier float64 `koanf:"default_multiplier"`

	// JournalPath is the SQLite file backing the action journal. Empty keeps
	// the ledger purely in memory.
	JournalPath string `koanf:"journal_path"`

	Mint MintConfig `koanf:"mint"`
}

// MintConfig configures the external NFT mint gateway.
type MintConfig struct {
	// EngineURL is the base URL of the transaction engine. Empty disables minting.
	EngineURL         string  `koanf:"engine_url"`
	EnginePath        string  `koanf:"engine_path"`
	AccessToken       string  `koanf:"access_token"`
	ChainID           int64   `koanf:"chain_id"`
	EcoPointsContract string  `koanf:"ecopoints_contract"`
	BadgeContract     string  `koanf:"badge_contract"`
	TimeoutMS         int     `koanf:"timeout_ms"`
	QueueSize         int     `koanf:"queue_size"`
	WorkerCount       int     `koanf:"worker_count"`
	RateLimitPerSec   float64 `koanf:"rate_limit_per_sec"`
	PointsThreshold   int64   `koanf:"points_threshold"`
}

// New creates a Config populated with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:                "info",
		LogFormat:               "text",
		Addr:                    ":9080",
		ShardCount:              16,
		DedupeSize:              100_000,
		DefaultLeaderboardLimit: 100,
		MaxLeaderboardLimit:     1000,
		ActionMultipliers:       map[string]float64{},
		DefaultMultiplier:       10,
		Mint: MintConfig{
			EnginePath:      "/backend-wallet/send-transaction",
			ChainID:         31337,
			TimeoutMS:       3000,
			QueueSize:       1024,
			WorkerCount:     runtime.NumCPU(),
			RateLimitPerSec: 20,
			PointsThreshold: 100,
		},
	}
}
