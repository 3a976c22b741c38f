package model

import (
	"slices"
	"time"
)

// BadgeID identifies a badge in the rule set.
type BadgeID string

// LedgerEntry is the mutable per-user aggregate. It is owned by the ledger
// store; everything else sees it through Snapshot.
type LedgerEntry struct {
	userID      string
	ecoPoints   int64
	co2Tons     float64
	energyKwh   float64
	location    string
	region      string
	badges      []BadgeID
	history     []ActionRecord
	kindCounts  map[string]int
	createdAt   time.Time
	lastUpdated time.Time
}

// NewLedgerEntry returns a zeroed entry.
func NewLedgerEntry(userID string, now time.Time) *LedgerEntry {
	return &LedgerEntry{
		userID:      userID,
		kindCounts:  make(map[string]int),
		createdAt:   now,
		lastUpdated: now,
	}
}

// Record appends rec to the history and folds it into the totals. A non-empty
// location replaces the previous one.
func (e *LedgerEntry) Record(rec ActionRecord, location string) {
	e.history = append(e.history, rec)
	e.ecoPoints += rec.Points
	e.kindCounts[rec.Action.String()]++
	switch rec.Action.Kind {
	case ActionCarbonOffset:
		e.co2Tons += rec.Magnitude
	case ActionEnergySaving:
		e.energyKwh += rec.Magnitude
	}
	if region := NormalizeRegion(location); region != "" {
		e.location = location
		e.region = region
	}
	e.lastUpdated = rec.Timestamp
}

// Unlock appends badge ids the entry does not hold yet.
func (e *LedgerEntry) Unlock(ids ...BadgeID) {
	for _, id := range ids {
		if !slices.Contains(e.badges, id) {
			e.badges = append(e.badges, id)
		}
	}
}

// UserID returns the entry's key.
func (e *LedgerEntry) UserID() string { return e.userID }

// Region returns the normalized region, or "" when no location was recorded.
func (e *LedgerEntry) Region() string { return e.region }

// EcoPoints returns the current balance.
func (e *LedgerEntry) EcoPoints() int64 { return e.ecoPoints }

// BadgeCount returns the number of unlocked badges.
func (e *LedgerEntry) BadgeCount() int { return len(e.badges) }

// CO2OffsetTons returns the carbon offset running sum.
func (e *LedgerEntry) CO2OffsetTons() float64 { return e.co2Tons }

// Recent returns up to n of the latest history records, newest last.
func (e *LedgerEntry) Recent(n int) []ActionRecord {
	if n <= 0 || n > len(e.history) {
		n = len(e.history)
	}
	return slices.Clone(e.history[len(e.history)-n:])
}

// Snapshot copies the entry's state.
func (e *LedgerEntry) Snapshot() Snapshot {
	counts := make(map[string]int, len(e.kindCounts))
	for k, v := range e.kindCounts {
		counts[k] = v
	}
	return Snapshot{
		UserID:              e.userID,
		EcoPoints:           e.ecoPoints,
		TotalActions:        len(e.history),
		TotalCO2OffsetTons:  e.co2Tons,
		TotalEnergySavedKwh: e.energyKwh,
		Location:            e.location,
		Region:              e.region,
		Badges:              slices.Clone(e.badges),
		CreatedAt:           e.createdAt,
		LastUpdated:         e.lastUpdated,
		kindCounts:          counts,
	}
}

// Snapshot is an immutable copy of a ledger entry. Badge predicates and read
// paths work on snapshots only.
type Snapshot struct {
	UserID              string
	EcoPoints           int64
	TotalActions        int
	TotalCO2OffsetTons  float64
	TotalEnergySavedKwh float64
	Location            string
	Region              string
	Badges              []BadgeID
	CreatedAt           time.Time
	LastUpdated         time.Time

	kindCounts map[string]int
}

// CountOf returns how many history records carry the given action name.
func (s Snapshot) CountOf(action string) int {
	return s.kindCounts[action]
}

// HasBadge reports whether id is already unlocked.
func (s Snapshot) HasBadge(id BadgeID) bool {
	return slices.Contains(s.Badges, id)
}
