package service

import (
	"fmt"
	"strings"
)

const encouragement = "Great work! Keep up the sustainable actions!"

type threshold struct {
	points  int64
	label   string
	message string
}

// thresholds are checked in order; only the first one crossed is reported.
var thresholds = []threshold{ //nolint:gochecknoglobals // fixed table
	{1_000, "1000", "🌟 You've reached 1,000 EcoPoints! You're making a real impact!"},
	{5_000, "5000", "✨ Incredible! 5,000 EcoPoints achieved! You're a sustainability champion!"},
	{10_000, "10000", "🏆 Legendary! 10,000 EcoPoints! You're an Eco Legend!"},
}

func crossedThreshold(oldPoints, newPoints int64) (threshold, bool) {
	for _, t := range thresholds {
		if newPoints >= t.points && oldPoints < t.points {
			return t, true
		}
	}
	return threshold{}, false
}

// milestoneMessage joins the badge, rank and threshold clauses, or falls back
// to a generic encouragement.
func milestoneMessage(badgeNames []string, oldRank, newRank int, oldPoints, newPoints int64) string {
	var parts []string
	if len(badgeNames) > 0 {
		parts = append(parts, "🎉 Congratulations! You unlocked: "+strings.Join(badgeNames, ", ")+"!")
	}
	if delta := oldRank - newRank; delta > 0 {
		unit := "rank"
		if delta > 1 {
			unit = "ranks"
		}
		parts = append(parts, fmt.Sprintf("📈 Amazing progress! You moved up %d %s in the leaderboard!", delta, unit))
	}
	if t, ok := crossedThreshold(oldPoints, newPoints); ok {
		parts = append(parts, t.message)
	}
	if len(parts) == 0 {
		return encouragement
	}
	return strings.Join(parts, " ")
}
