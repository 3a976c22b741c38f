// Package badges holds the achievement catalogue and its unlock predicates.
package badges

import (
	"github.com/okian/ecoledger/internal/domain/model"
)

// Rarity is an informational tier; higher values are rarer.
type Rarity uint8

const (
	Common Rarity = iota
	Rare
	Epic
	Legendary
)

func (r Rarity) String() string {
	switch r {
	case Common:
		return "common"
	case Rare:
		return "rare"
	case Epic:
		return "epic"
	case Legendary:
		return "legendary"
	default:
		return "unknown"
	}
}

// Predicate decides whether a badge is earned. It must be pure and monotonic
// under growing totals.
type Predicate func(model.Snapshot) bool

// Definition describes one badge.
type Definition struct {
	ID          model.BadgeID
	Name        string
	Description string
	Icon        string
	Rarity      Rarity
	Unlock      Predicate
}

// RuleSet is an ordered, immutable badge catalogue.
type RuleSet struct {
	defs  []Definition
	index map[model.BadgeID]int
}

// NewRuleSet builds a rule set; evaluation follows the given order. Later
// duplicates of an id are ignored.
func NewRuleSet(defs ...Definition) *RuleSet {
	rs := &RuleSet{index: make(map[model.BadgeID]int, len(defs))}
	for _, d := range defs {
		if _, dup := rs.index[d.ID]; dup || d.Unlock == nil {
			continue
		}
		rs.index[d.ID] = len(rs.defs)
		rs.defs = append(rs.defs, d)
	}
	return rs
}

// Evaluate returns, in catalogue order, ids not yet held by s whose
// predicate holds on s.
func (rs *RuleSet) Evaluate(s model.Snapshot) []model.BadgeID {
	var out []model.BadgeID
	for _, d := range rs.defs {
		if s.HasBadge(d.ID) {
			continue
		}
		if d.Unlock(s) {
			out = append(out, d.ID)
		}
	}
	return out
}

// Lookup returns the definition for id.
func (rs *RuleSet) Lookup(id model.BadgeID) (Definition, bool) {
	i, ok := rs.index[id]
	if !ok {
		return Definition{}, false
	}
	return rs.defs[i], true
}

// Known reports whether id is in the catalogue.
func (rs *RuleSet) Known(id model.BadgeID) bool {
	_, ok := rs.index[id]
	return ok
}

// All returns the catalogue in evaluation order.
func (rs *RuleSet) All() []Definition {
	out := make([]Definition, len(rs.defs))
	copy(out, rs.defs)
	return out
}

// Names maps ids to display names, skipping unknown ids.
func (rs *RuleSet) Names(ids []model.BadgeID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if d, ok := rs.Lookup(id); ok {
			names = append(names, d.Name)
		}
	}
	return names
}
