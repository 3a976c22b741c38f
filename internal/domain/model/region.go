package model

import "strings"

// GlobalScope names the leaderboard that contains every user.
const GlobalScope = "global"

// NormalizeRegion turns a free-text location into a leaderboard scope key:
// trimmed, lowercased, whitespace runs replaced by "-". An empty result means
// no region.
func NormalizeRegion(location string) string {
	fields := strings.Fields(strings.ToLower(location))
	return strings.Join(fields, "-")
}
