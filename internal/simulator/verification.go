package simulator

import (
	"fmt"
	"sort"

	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/types"
)

// checkLeaderboard verifies that rows are numbered 1..n without gaps, points
// never increase down the board, and rows for generated users carry their
// expected balance. region is empty for the global board.
func checkLeaderboard(board *types.LeaderboardResponse, expected map[string]int64, regions map[string]string, region string) []string {
	var problems []string
	scope := "global"
	if region != "" {
		scope = "regional " + region
	}
	add := func(format string, args ...any) {
		problems = append(problems, scope+": "+fmt.Sprintf(format, args...))
	}

	want := model.NormalizeRegion(region)
	ours, best := 0, int64(0)
	first := true
	for user, pts := range expected {
		if region != "" && model.NormalizeRegion(regions[user]) != want {
			continue
		}
		ours++
		if first || pts > best {
			best, first = pts, false
		}
	}

	for i, row := range board.Leaderboard {
		if row.Rank != i+1 {
			add("row %d has rank %d", i, row.Rank)
		}
		if i > 0 && row.EcoPoints > board.Leaderboard[i-1].EcoPoints {
			add("rank %d (%d points) above rank %d (%d points)", row.Rank, row.EcoPoints, board.Leaderboard[i-1].Rank, board.Leaderboard[i-1].EcoPoints)
		}
		pts, ok := expected[row.UserID]
		if !ok {
			continue
		}
		if pts != row.EcoPoints {
			add("user %s listed with %d points, expected %d", row.UserID, row.EcoPoints, pts)
		}
		if region != "" && model.NormalizeRegion(regions[row.UserID]) != want {
			add("user %s listed outside its region %q", row.UserID, regions[row.UserID])
		}
	}

	if ours > 0 && len(board.Leaderboard) > 0 && board.Leaderboard[0].EcoPoints < best {
		add("top row has %d points but a generated user has %d", board.Leaderboard[0].EcoPoints, best)
	}
	if region == "" && board.TotalUsers < ours {
		add("total_users %d below %d generated users", board.TotalUsers, ours)
	}
	return problems
}

// checkBalance compares one user's reported state with the recomputed one.
func checkBalance(got *types.UserRewardsResponse, expected int64, region string) (Mismatch, []string, bool) {
	var problems []string
	if region != "" && model.NormalizeRegion(got.Location) != model.NormalizeRegion(region) {
		problems = append(problems, fmt.Sprintf("user %s: location %q, expected %q", got.UserID, got.Location, region))
	}
	if region != "" && got.Leaderboard.RegionalRank == nil {
		problems = append(problems, fmt.Sprintf("user %s: missing regional rank", got.UserID))
	}
	if got.EcoPoints != expected {
		return Mismatch{UserID: got.UserID, Expected: expected, Got: got.EcoPoints}, problems, false
	}
	return Mismatch{}, problems, true
}

// distinctRegions returns the configured regions deduplicated by their
// normalized key, keeping the first spelling.
func distinctRegions(regions []string) []string {
	seen := make(map[string]struct{}, len(regions))
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		key := model.NormalizeRegion(r)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
