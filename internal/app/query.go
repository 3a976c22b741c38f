package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/okian/ecoledger/internal/adapters/repository"
	"github.com/okian/ecoledger/internal/domain/badges"
	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/metrics"
)

// Leaderboard scope types accepted by Leaderboard.
const (
	ScopeGlobal   = "global"
	ScopeRegional = "regional"
)

// UserRewards returns a user's balance, badges, ranks and recent actions.
func (s *Service) UserRewards(ctx context.Context, userID string) (*types.UserRewardsResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrValidation)
	}

	v, err := s.ledger.View(ctx, userID, s.recentActions)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: user %q: %w", ErrNotFound, userID, err)
		}
		return nil, fmt.Errorf("view user: %w", err)
	}

	owned := make([]types.Badge, 0, len(v.Snapshot.Badges))
	for _, id := range v.Snapshot.Badges {
		if d, ok := s.rules.Lookup(id); ok {
			owned = append(owned, badgeView(&d))
		}
	}
	recent := make([]types.ActionEntry, len(v.Recent))
	for i, r := range v.Recent {
		recent[i] = types.ActionEntry{
			Action:        r.Action.String(),
			Value:         r.Magnitude,
			PointsAwarded: r.Points,
			Timestamp:     r.Timestamp,
		}
	}

	return &types.UserRewardsResponse{
		UserID:        v.Snapshot.UserID,
		EcoPoints:     v.Snapshot.EcoPoints,
		Location:      v.Snapshot.Location,
		Badges:        owned,
		Leaderboard:   position(v.GlobalRank, v.RegionalRank, v.TotalUsers),
		Stats:         userStats(&v.Snapshot),
		RecentActions: recent,
		LastUpdated:   v.Snapshot.LastUpdated,
	}, nil
}

// Leaderboard returns the top of the global board or of one region. A zero
// limit uses the default; larger limits are capped.
func (s *Service) Leaderboard(ctx context.Context, scopeType, location string, limit int) (*types.LeaderboardResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	switch {
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	case limit == 0:
		limit = s.defaultLimit
	case limit > s.maxLimit:
		limit = s.maxLimit
	}

	scopeType = strings.ToLower(strings.TrimSpace(scopeType))
	var region string
	switch scopeType {
	case "", ScopeGlobal:
		scopeType = ScopeGlobal
	case ScopeRegional:
		region = model.NormalizeRegion(location)
		if region == "" {
			return nil, fmt.Errorf("%w: location is required for regional leaderboards", ErrValidation)
		}
	default:
		return nil, fmt.Errorf("%w: unknown leaderboard type %q", ErrValidation, scopeType)
	}

	entries, err := s.ledger.TopN(ctx, region, limit)
	if err != nil {
		if errors.Is(err, repository.ErrRegionNotFound) {
			return nil, fmt.Errorf("%w: region %q: %w", ErrNotFound, region, err)
		}
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	metrics.RecordLeaderboardRead(scopeType)

	rows := make([]types.LeaderboardEntry, len(entries))
	for i, e := range entries {
		rows[i] = types.LeaderboardEntry{
			Rank:           e.Rank,
			UserID:         e.UserID,
			EcoPoints:      e.EcoPoints,
			Badges:         e.BadgeCount,
			TotalCO2Offset: e.CO2OffsetTons,
		}
	}
	resp := &types.LeaderboardResponse{
		Type:        scopeType,
		Leaderboard: rows,
		TotalUsers:  s.ledger.Count(ctx),
	}
	if region != "" {
		resp.Location = strings.TrimSpace(location)
	}
	return resp, nil
}

// Badges returns the badge catalogue in evaluation order.
func (s *Service) Badges() types.BadgesResponse {
	defs := s.rules.All()
	out := make([]types.Badge, len(defs))
	for i := range defs {
		out[i] = badgeView(&defs[i])
	}
	return types.BadgesResponse{Badges: out}
}

func badgeView(d *badges.Definition) types.Badge {
	return types.Badge{
		ID:          string(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Icon:        d.Icon,
		Rarity:      d.Rarity.String(),
	}
}
