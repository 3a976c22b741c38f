package simulator

import (
	"time"

	"github.com/okian/ecoledger/internal/domain/scoring"
	"github.com/okian/ecoledger/internal/domain/types"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL       string        // Base URL of the service
	Users         int           // Distinct users to generate
	Actions       int           // Actions to generate across all users
	Regions       []string      // Locations assigned to users; empty leaves users global only
	DuplicateRate float64       // Fraction of actions re-sent with the same action_id
	Workers       int           // Concurrent HTTP workers
	Timeout       time.Duration // Per-request timeout
	TopN          int           // Leaderboard rows to fetch and verify
	Seed          uint64        // Random seed; zero picks one from the clock
	OutputFile    string        // Optional JSON dump of the generated actions
	Verbose       bool

	// Multipliers and DefaultMultiplier mirror the server's scoring overrides
	// so the local recomputation scores actions the same way.
	Multipliers       map[string]float64
	DefaultMultiplier float64
}

// table is the scoring table balances are recomputed with.
func (c *Config) table() *scoring.Table {
	return scoring.New(
		scoring.WithMultipliers(c.Multipliers),
		scoring.WithDefaultMultiplier(c.DefaultMultiplier),
	)
}

// Action is one generated request. Replay marks a deliberate resend of an
// earlier action_id.
type Action struct {
	Request types.TrackActionRequest `json:"request"`
	Replay  bool                     `json:"replay,omitempty"`
}

// Stats summarizes a run.
type Stats struct {
	ActionsGenerated   int
	ActionsSubmitted   int
	ActionsApplied     int
	ActionsDuplicate   int
	ActionsFailed      int
	UsersVerified      int
	BalanceMismatches  int
	LeaderboardChecked int
	StartTime          time.Time
	EndTime            time.Time
	Duration           time.Duration
}

// Mismatch is a user whose reported balance differs from the recomputed one.
type Mismatch struct {
	UserID   string
	Expected int64
	Got      int64
}

// Report is the outcome of Run.
type Report struct {
	Stats      Stats
	Mismatches []Mismatch
	// Problems lists leaderboard violations, one line each.
	Problems []string
}

// OK reports whether every check passed.
func (r *Report) OK() bool {
	return len(r.Mismatches) == 0 && len(r.Problems) == 0 && r.Stats.ActionsFailed == 0
}
