package repository

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/pkg/metrics"
)

// Scorer converts an action into points.
type Scorer interface {
	Score(action model.ActionType, magnitude float64) int64
}

// Evaluator returns badges newly earned by a snapshot.
type Evaluator interface {
	Evaluate(s model.Snapshot) []model.BadgeID
	Known(id model.BadgeID) bool
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*model.LedgerEntry
}

// LedgerStore is the in-memory Ledger. Users are spread over shards by
// FNV hash; a shard lock covers the whole apply-and-reindex sequence for its
// users. Lock order is shard, then index.
type LedgerStore struct {
	shards       []*shard
	shardCount   int
	index        *LeaderboardIndex
	scorer       Scorer
	rules        Evaluator
	now          func() time.Time
	gaugeRefresh time.Duration
}

// NewLedgerStore builds a store scoring with scorer and unlocking with rules.
func NewLedgerStore(scorer Scorer, rules Evaluator, opts ...Option) *LedgerStore {
	s := &LedgerStore{
		shardCount:   defaultShardCount,
		scorer:       scorer,
		rules:        rules,
		now:          time.Now,
		gaugeRefresh: defaultGaugeRefresh,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.index == nil {
		s.index = NewLeaderboardIndex()
	}
	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*model.LedgerEntry)}
	}
	return s
}

func (s *LedgerStore) shardFor(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// Apply implements Ledger.Apply.
func (s *LedgerStore) Apply(_ context.Context, cmd ApplyCommand) (ApplyResult, error) {
	if cmd.UserID == "" {
		return ApplyResult{}, fmt.Errorf("%w: empty user id", ErrInvalidCommand)
	}
	start := time.Now()
	defer func() {
		metrics.RecordApplyLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	sh := s.shardFor(cmd.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ts := cmd.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	e, created := sh.getOrCreate(cmd.UserID, ts)
	res := ApplyResult{
		Created:   created,
		OldPoints: e.EcoPoints(),
		Points:    s.scorer.Score(cmd.Action, cmd.Magnitude),
	}

	e.Record(model.ActionRecord{Action: cmd.Action, Magnitude: cmd.Magnitude, Points: res.Points, Timestamp: ts}, cmd.Location)
	res.NewBadges = s.rules.Evaluate(e.Snapshot())
	e.Unlock(res.NewBadges...)

	s.reindex(e, &res)
	return res, nil
}

// Restore implements Ledger.Restore.
func (s *LedgerStore) Restore(_ context.Context, cmd RestoreCommand) error {
	if cmd.UserID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidCommand)
	}
	sh := s.shardFor(cmd.UserID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	ts := cmd.Timestamp
	if ts.IsZero() {
		ts = s.now()
	}
	e, created := sh.getOrCreate(cmd.UserID, ts)
	e.Record(model.ActionRecord{Action: cmd.Action, Magnitude: cmd.Magnitude, Points: cmd.Points, Timestamp: ts}, cmd.Location)
	e.Unlock(s.knownBadges(cmd.Badges)...)

	res := ApplyResult{Created: created}
	s.reindex(e, &res)
	return nil
}

// knownBadges drops recorded ids the catalogue no longer defines, so held
// badges stay a subset of the rule set.
func (s *LedgerStore) knownBadges(ids []model.BadgeID) []model.BadgeID {
	out := make([]model.BadgeID, 0, len(ids))
	for _, id := range ids {
		if s.rules.Known(id) {
			out = append(out, id)
			continue
		}
		metrics.RecordErrorByComponent("ledger", "unknown_badge")
	}
	return out
}

// reindex refreshes the user's leaderboard projection. Caller holds the
// shard lock.
func (s *LedgerStore) reindex(e *model.LedgerEntry, res *ApplyResult) {
	start := time.Now()
	p := s.index.Upsert(Member{
		UserID:        e.UserID(),
		EcoPoints:     e.EcoPoints(),
		BadgeCount:    e.BadgeCount(),
		CO2OffsetTons: e.CO2OffsetTons(),
	}, e.Region())
	metrics.RecordReindexLatency(float64(time.Since(start).Microseconds()) / 1000)

	res.Seq = p.Seq
	res.OldGlobalRank = p.OldGlobalRank
	res.NewGlobalRank = p.GlobalRank
	res.RegionalRank = p.RegionalRank
	res.TotalUsers = p.GlobalSize
	res.Snapshot = e.Snapshot()
	if res.Created {
		metrics.UpdateUsersTotal(p.GlobalSize)
	}
}

// View implements Ledger.View.
func (s *LedgerStore) View(_ context.Context, userID string, recent int) (UserView, error) {
	sh := s.shardFor(userID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	e, ok := sh.entries[userID]
	if !ok {
		return UserView{}, ErrNotFound
	}
	v := UserView{
		Snapshot:   e.Snapshot(),
		Recent:     e.Recent(recent),
		GlobalRank: s.index.RankOf("", userID),
		TotalUsers: s.index.Size(""),
	}
	if r := e.Region(); r != "" {
		v.RegionalRank = s.index.RankOf(r, userID)
	}
	return v, nil
}

// TopN implements Ledger.TopN.
func (s *LedgerStore) TopN(_ context.Context, region string, n int) ([]Entry, error) {
	return s.index.TopN(region, n)
}

// Count implements Ledger.Count.
func (s *LedgerStore) Count(_ context.Context) int {
	return s.index.Size("")
}

// Regions implements Ledger.Regions.
func (s *LedgerStore) Regions(_ context.Context) []string {
	return s.index.Regions()
}

// ResumeSeq implements Ledger.ResumeSeq.
func (s *LedgerStore) ResumeSeq(_ context.Context, seq int64) {
	s.index.Resume(seq)
}

// Run publishes size gauges until ctx is done.
func (s *LedgerStore) Run(ctx context.Context) {
	ticker := time.NewTicker(s.gaugeRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateUsersTotal(s.index.Size(""))
			metrics.UpdateRegionsTotal(len(s.index.Regions()))
		}
	}
}

func (sh *shard) getOrCreate(userID string, now time.Time) (*model.LedgerEntry, bool) {
	if e, ok := sh.entries[userID]; ok {
		return e, false
	}
	e := model.NewLedgerEntry(userID, now)
	sh.entries[userID] = e
	return e, true
}
