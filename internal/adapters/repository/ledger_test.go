package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/okian/ecoledger/internal/domain/badges"
	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/scoring"
)

func newTestLedger(opts ...Option) *LedgerStore {
	return NewLedgerStore(scoring.New(), badges.Default(), opts...)
}

func apply(t *testing.T, s *LedgerStore, user, action string, magnitude float64, location string) ApplyResult {
	t.Helper()
	res, err := s.Apply(context.Background(), ApplyCommand{
		UserID:    user,
		Action:    model.ParseActionType(action),
		Magnitude: magnitude,
		Location:  location,
	})
	if err != nil {
		t.Fatalf("apply %s/%s: %v", user, action, err)
	}
	return res
}

func TestLedgerStore_FirstAction(t *testing.T) {
	s := newTestLedger()
	res := apply(t, s, "u1", "carbon_offset", 2.5, "France")

	if res.Points != 250 || res.Snapshot.EcoPoints != 250 {
		t.Errorf("expected 250 points, got %+v", res)
	}
	if !res.Created || res.OldPoints != 0 || res.OldGlobalRank != 1 {
		t.Errorf("expected fresh user unranked at size+1, got %+v", res)
	}
	if res.NewGlobalRank != 1 || res.RegionalRank != 1 || res.TotalUsers != 1 {
		t.Errorf("unexpected ranks %+v", res)
	}
	want := []model.BadgeID{"first_step", "carbon_saver"}
	if fmt.Sprint(res.NewBadges) != fmt.Sprint(want) {
		t.Errorf("expected %v, got %v", want, res.NewBadges)
	}
	if res.Seq != 1 {
		t.Errorf("expected seq 1, got %d", res.Seq)
	}
}

func TestLedgerStore_PointsEqualHistorySum(t *testing.T) {
	s := newTestLedger()
	table := scoring.New()
	actions := []struct {
		kind string
		mag  float64
	}{
		{"energy_saving", 12.3}, {"ai_eco_tool", 1}, {"water_saving", 45}, {"beach_cleanup", 3},
		{"recycling", -1}, {"tree_planting", 2}, {"carbon_offset", 0.5},
	}
	var sum int64
	for _, a := range actions {
		sum += table.Score(model.ParseActionType(a.kind), a.mag)
		apply(t, s, "u1", a.kind, a.mag, "")
	}
	v, err := s.View(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if v.Snapshot.EcoPoints != sum {
		t.Errorf("expected %d points, got %d", sum, v.Snapshot.EcoPoints)
	}
	if v.Snapshot.TotalActions != len(actions) || len(v.Recent) != len(actions) {
		t.Errorf("expected %d actions, got %d (history %d)", len(actions), v.Snapshot.TotalActions, len(v.Recent))
	}
	var hist int64
	for _, r := range v.Recent {
		hist += r.Points
	}
	if hist != sum {
		t.Errorf("history sum %d != points %d", hist, sum)
	}
	if v.Snapshot.TotalEnergySavedKwh != 12.3 || v.Snapshot.TotalCO2OffsetTons != 0.5 {
		t.Errorf("unexpected kind totals %+v", v.Snapshot)
	}
}

func TestLedgerStore_BadgesAreNeverRepeated(t *testing.T) {
	s := newTestLedger()
	seen := make(map[model.BadgeID]int)
	for i := 0; i < 120; i++ {
		res := apply(t, s, "u1", "carbon_offset", 1, "")
		for _, b := range res.NewBadges {
			seen[b]++
		}
		for _, held := range res.Snapshot.Badges {
			if seen[held] == 0 {
				t.Fatalf("held badge %s was never reported", held)
			}
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("badge %s reported %d times", id, n)
		}
	}
	for _, id := range []model.BadgeID{"carbon_master", "eco_legend", "carbon_warrior", "sustainability_guru"} {
		if seen[id] != 1 {
			t.Errorf("expected %s to be unlocked", id)
		}
	}
}

func TestLedgerStore_ViewUnknownUser(t *testing.T) {
	s := newTestLedger()
	if _, err := s.View(context.Background(), "ghost", 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Apply(context.Background(), ApplyCommand{Action: model.ParseActionType("recycling")}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("expected ErrInvalidCommand, got %v", err)
	}
	if s.Count(context.Background()) != 0 {
		t.Errorf("rejected command must not create users")
	}
}

func TestLedgerStore_ViewIsRepeatable(t *testing.T) {
	s := newTestLedger()
	apply(t, s, "u1", "recycling", 2, "Paris")
	apply(t, s, "u2", "recycling", 1, "Paris")

	a, _ := s.View(context.Background(), "u1", 10)
	b, _ := s.View(context.Background(), "u1", 10)
	if fmt.Sprintf("%+v", a) != fmt.Sprintf("%+v", b) {
		t.Errorf("views differ:\n%+v\n%+v", a, b)
	}
	if a.GlobalRank != 1 || a.RegionalRank != 1 || a.TotalUsers != 2 {
		t.Errorf("unexpected ranks %+v", a)
	}
}

func TestLedgerStore_StableTieBreak(t *testing.T) {
	for _, order := range [][]string{{"alice", "bob"}, {"bob", "alice"}} {
		s := newTestLedger()
		for _, u := range order {
			apply(t, s, u, "recycling", 4, "")
		}
		// Neither user changes score; refreshes must not swap them.
		apply(t, s, order[0], "recycling", 0, "")
		apply(t, s, order[1], "recycling", 0, "")

		top, _ := s.TopN(context.Background(), "", 10)
		sameOrder(t, idsOf(top), order)
	}
}

func TestLedgerStore_RegionIsolation(t *testing.T) {
	s := newTestLedger()
	apply(t, s, "de1", "recycling", 3, "Germany")
	apply(t, s, "de2", "recycling", 1, "Germany")
	before, _ := s.TopN(context.Background(), "germany", 10)

	res := apply(t, s, "fr1", "tree_planting", 1, "France")
	after, _ := s.TopN(context.Background(), "germany", 10)

	sameOrder(t, idsOf(after), idsOf(before))
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("germany row changed: %+v -> %+v", before[i], after[i])
		}
	}
	if res.RegionalRank != 1 || res.NewGlobalRank != 1 || res.OldGlobalRank != 3 {
		t.Errorf("unexpected placement %+v", res)
	}
	if got := s.Regions(context.Background()); len(got) != 2 {
		t.Errorf("expected two regions, got %v", got)
	}
}

func TestLedgerStore_Restore(t *testing.T) {
	s := newTestLedger(WithClock(func() time.Time { return time.Unix(100, 0) }))
	err := s.Restore(context.Background(), RestoreCommand{
		ApplyCommand: ApplyCommand{UserID: "u1", Action: model.ParseActionType("carbon_offset"), Magnitude: 1, Location: "Oslo"},
		Points:       999,
		Badges:       []model.BadgeID{"first_step"},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	v, _ := s.View(context.Background(), "u1", 1)
	if v.Snapshot.EcoPoints != 999 {
		t.Errorf("expected recorded points to be kept, got %d", v.Snapshot.EcoPoints)
	}
	if len(v.Snapshot.Badges) != 1 || v.Snapshot.Badges[0] != "first_step" {
		t.Errorf("expected only recorded badges, got %v", v.Snapshot.Badges)
	}
	if v.RegionalRank != 1 || !v.Snapshot.LastUpdated.Equal(time.Unix(100, 0)) {
		t.Errorf("unexpected view %+v", v)
	}
	if err := s.Restore(context.Background(), RestoreCommand{}); !errors.Is(err, ErrInvalidCommand) {
		t.Errorf("expected ErrInvalidCommand, got %v", err)
	}
}

func TestLedgerStore_RestoreDropsUnknownBadges(t *testing.T) {
	s := newTestLedger()
	err := s.Restore(context.Background(), RestoreCommand{
		ApplyCommand: ApplyCommand{UserID: "u1", Action: model.ParseActionType("recycling"), Magnitude: 1},
		Points:       25,
		Badges:       []model.BadgeID{"retired_badge", "first_step", ""},
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	v, _ := s.View(context.Background(), "u1", 0)
	if fmt.Sprint(v.Snapshot.Badges) != "[first_step]" {
		t.Errorf("expected only catalogue badges, got %v", v.Snapshot.Badges)
	}
	top, _ := s.TopN(context.Background(), "", 1)
	if top[0].BadgeCount != 1 {
		t.Errorf("expected leaderboard badge count 1, got %d", top[0].BadgeCount)
	}
}

func TestLedgerStore_ConcurrentSameUser(t *testing.T) {
	s := newTestLedger(WithShardCount(4))
	const (
		goroutines = 16
		perG       = 50
	)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perG; i++ {
				user := "shared"
				if i%2 == 1 {
					user = fmt.Sprintf("solo-%d", g)
				}
				_, _ = s.Apply(context.Background(), ApplyCommand{
					UserID: user, Action: model.ParseActionType("recycling"), Magnitude: 1,
					Location: []string{"north", "south"}[g%2],
				})
			}
		}(g)
	}
	wg.Wait()

	v, err := s.View(context.Background(), "shared", 0)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	wantActions := goroutines * perG / 2
	if v.Snapshot.TotalActions != wantActions || v.Snapshot.EcoPoints != int64(wantActions*25) {
		t.Errorf("lost updates: %+v", v.Snapshot)
	}
	top, _ := s.TopN(context.Background(), "", 1000)
	if len(top) != goroutines+1 || s.Count(context.Background()) != goroutines+1 {
		t.Errorf("expected %d users, got %d", goroutines+1, len(top))
	}
	for i := 1; i < len(top); i++ {
		if top[i].EcoPoints > top[i-1].EcoPoints {
			t.Fatalf("leaderboard out of order at %d", i)
		}
	}
	if s.index.Size("north")+s.index.Size("south") != goroutines+1 {
		t.Errorf("each user must belong to exactly one region")
	}
}

func TestLedgerStore_RankDeltaMatchesSerialOrder(t *testing.T) {
	s := newTestLedger(WithShardCount(8))
	const (
		users   = 24
		actions = 20
	)
	var (
		mu      sync.Mutex
		results []ApplyResult
		wg      sync.WaitGroup
	)
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			for i := 0; i < actions; i++ {
				res, err := s.Apply(context.Background(), ApplyCommand{
					UserID:    fmt.Sprintf("u%02d", u),
					Action:    model.ParseActionType("recycling"),
					Magnitude: float64((u*7+i*3)%5 + 1),
				})
				if err != nil {
					t.Errorf("apply: %v", err)
					return
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	replay := NewLeaderboardIndex()
	for _, res := range results {
		p := replay.Upsert(Member{UserID: res.Snapshot.UserID, EcoPoints: res.Snapshot.EcoPoints}, "")
		if p.Seq != res.Seq {
			t.Fatalf("seq gap: replay %d, ledger %d", p.Seq, res.Seq)
		}
		if p.OldGlobalRank != res.OldGlobalRank || p.GlobalRank != res.NewGlobalRank {
			t.Fatalf("seq %d user %s: ranks %d->%d, serial order gives %d->%d",
				res.Seq, res.Snapshot.UserID, res.OldGlobalRank, res.NewGlobalRank, p.OldGlobalRank, p.GlobalRank)
		}
	}
}

func TestLedgerStore_RunStopsOnCancel(t *testing.T) {
	s := newTestLedger(WithGaugeRefresh(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
