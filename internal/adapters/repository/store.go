// Package repository holds the in-memory ledger and its leaderboard index.
package repository

import (
	"context"
	"time"

	"github.com/okian/ecoledger/internal/domain/model"
)

// ApplyCommand describes one action to fold into a user's entry.
type ApplyCommand struct {
	UserID    string
	Action    model.ActionType
	Magnitude float64
	Location  string
	Timestamp time.Time
}

// RestoreCommand replays a journaled action with its recorded outcome.
type RestoreCommand struct {
	ApplyCommand
	Points int64
	Badges []model.BadgeID
}

// ApplyResult reports what an Apply changed.
type ApplyResult struct {
	Seq           int64
	Points        int64
	NewBadges     []model.BadgeID
	OldPoints     int64
	OldGlobalRank int
	NewGlobalRank int
	// RegionalRank is zero when the user has no region.
	RegionalRank int
	TotalUsers   int
	Created      bool
	Snapshot     model.Snapshot
}

// UserView is a consistent read of one user.
type UserView struct {
	Snapshot     model.Snapshot
	Recent       []model.ActionRecord
	GlobalRank   int
	RegionalRank int
	TotalUsers   int
}

// Ledger is the authoritative per-user state plus leaderboards.
type Ledger interface {
	// Apply scores and records an action, unlocks badges and reindexes the
	// user as one atomic step.
	Apply(ctx context.Context, cmd ApplyCommand) (ApplyResult, error)

	// Restore replays a recorded action without re-scoring it.
	Restore(ctx context.Context, cmd RestoreCommand) error

	// View returns the user's state with up to recent history records.
	// Returns ErrNotFound for unknown users.
	View(ctx context.Context, userID string, recent int) (UserView, error)

	// TopN returns a leaderboard; an empty region means global.
	TopN(ctx context.Context, region string, n int) ([]Entry, error)

	// Count returns the number of users.
	Count(ctx context.Context) int

	// Regions lists known regional scopes.
	Regions(ctx context.Context) []string

	// ResumeSeq moves the write sequence past seq.
	ResumeSeq(ctx context.Context, seq int64)
}
