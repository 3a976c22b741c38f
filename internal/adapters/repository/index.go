package repository

import (
	"sort"
	"sync"
)

// Member is the leaderboard projection of a ledger entry.
type Member struct {
	UserID        string
	EcoPoints     int64
	BadgeCount    int
	CO2OffsetTons float64
}

// Entry is a ranked leaderboard row.
type Entry struct {
	Rank int
	Member
}

type scoped struct {
	key    key
	member Member
}

// scope is one ordered leaderboard.
type scope struct {
	root    *node
	members map[string]scoped
}

func newScope() *scope {
	return &scope{members: make(map[string]scoped)}
}

// put inserts or repositions m. Ties keep their previous relative order: a
// score increase queues the user behind existing ties, a decrease places it
// ahead of them, and an unchanged score keeps its slot.
func (s *scope) put(m Member, seq int64) {
	k := key{points: m.EcoPoints, tick: seq}
	if old, ok := s.members[m.UserID]; ok {
		switch {
		case m.EcoPoints == old.key.points:
			k.tick = old.key.tick
		case m.EcoPoints < old.key.points:
			k.tick = -seq
		}
		if k != old.key {
			s.root = remove(s.root, old.key)
			s.root = insert(s.root, m.UserID, k)
		}
	} else {
		s.root = insert(s.root, m.UserID, k)
	}
	s.members[m.UserID] = scoped{key: k, member: m}
}

func (s *scope) drop(userID string) {
	if old, ok := s.members[userID]; ok {
		s.root = remove(s.root, old.key)
		delete(s.members, userID)
	}
}

func (s *scope) rankOf(userID string) int {
	m, ok := s.members[userID]
	if !ok {
		return len(s.members) + 1
	}
	return position(s.root, m.key) + 1
}

func (s *scope) top(n int) []Entry {
	out := make([]Entry, 0, min(n, len(s.members)))
	walk(s.root, n, func(id string) {
		out = append(out, Entry{Rank: len(out) + 1, Member: s.members[id].member})
	})
	return out
}

// LeaderboardIndex keeps the global leaderboard and one per region. All
// writes go through a single lock; every write takes the next sequence
// number, which also orders ties.
type LeaderboardIndex struct {
	mu       sync.RWMutex
	global   *scope
	regions  map[string]*scope
	regionOf map[string]string
	seq      int64
}

// NewLeaderboardIndex returns an empty index.
func NewLeaderboardIndex() *LeaderboardIndex {
	return &LeaderboardIndex{
		global:   newScope(),
		regions:  make(map[string]*scope),
		regionOf: make(map[string]string),
	}
}

// Placement is where a member landed after Upsert.
type Placement struct {
	Seq int64
	// OldGlobalRank is the rank just before the write, size+1 for a new member.
	OldGlobalRank int
	GlobalRank    int
	// RegionalRank is zero when the member has no region.
	RegionalRank int
	GlobalSize   int
}

// Upsert refreshes m in the global scope and in region, moving the user out
// of any previous region. An empty region keeps the current regional
// membership. Ranks before and after are read under the same lock as the
// write.
func (ix *LeaderboardIndex) Upsert(m Member, region string) Placement {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	old := ix.global.rankOf(m.UserID)
	ix.seq++
	ix.global.put(m, ix.seq)
	p := Placement{
		Seq:           ix.seq,
		OldGlobalRank: old,
		GlobalRank:    ix.global.rankOf(m.UserID),
		GlobalSize:    len(ix.global.members),
	}

	prev, had := ix.regionOf[m.UserID]
	if region == "" {
		region = prev
	}
	if had && prev != region {
		if s := ix.regions[prev]; s != nil {
			s.drop(m.UserID)
			if len(s.members) == 0 {
				delete(ix.regions, prev)
			}
		}
	}
	if region != "" {
		s, ok := ix.regions[region]
		if !ok {
			s = newScope()
			ix.regions[region] = s
		}
		s.put(m, ix.seq)
		ix.regionOf[m.UserID] = region
		p.RegionalRank = s.rankOf(m.UserID)
	}
	return p
}

// RankOf returns the 1-based rank of userID in a region, or globally when
// region is empty. Non-members get size+1.
func (ix *LeaderboardIndex) RankOf(region, userID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := ix.lookup(region)
	if s == nil {
		return 1
	}
	return s.rankOf(userID)
}

// TopN returns up to n ranked entries of a region, or of the global
// leaderboard when region is empty.
func (ix *LeaderboardIndex) TopN(region string, n int) ([]Entry, error) {
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	s := ix.lookup(region)
	if s == nil {
		return nil, ErrRegionNotFound
	}
	return s.top(n), nil
}

// Size returns the number of members in a region, or globally when region
// is empty.
func (ix *LeaderboardIndex) Size(region string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if s := ix.lookup(region); s != nil {
		return len(s.members)
	}
	return 0
}

// Regions lists the regional scopes in lexical order.
func (ix *LeaderboardIndex) Regions() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]string, 0, len(ix.regions))
	for r := range ix.regions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Seq returns the last sequence number handed out.
func (ix *LeaderboardIndex) Seq() int64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.seq
}

// Resume makes later writes take sequence numbers above seq. Used after a
// journal replay so new records never reuse a journaled sequence.
func (ix *LeaderboardIndex) Resume(seq int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if seq > ix.seq {
		ix.seq = seq
	}
}

func (ix *LeaderboardIndex) lookup(region string) *scope {
	if region == "" {
		return ix.global
	}
	return ix.regions[region]
}
