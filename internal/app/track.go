package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/okian/ecoledger/internal/adapters/journal"
	"github.com/okian/ecoledger/internal/adapters/repository"
	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
)

// TrackAction applies one sustainability action and returns the reward.
// A repeated action_id for the same user returns ErrDuplicate and changes
// nothing. Mint failures never fail the action.
func (s *Service) TrackAction(ctx context.Context, req types.TrackActionRequest) (*types.TrackActionResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	cmd, err := s.command(req)
	if err != nil {
		metrics.RecordValidationError()
		return nil, err
	}

	var key string
	if req.ActionID != "" && s.deduper != nil {
		key = dedupeKey(cmd.UserID, req.ActionID)
		if s.deduper.SeenAndRecord(ctx, key) {
			metrics.RecordActionDuplicate()
			s.logger.Debug(ctx, "duplicate action", logger.String("user_id", cmd.UserID), logger.String("action_id", req.ActionID))
			return nil, fmt.Errorf("%w: %s", ErrDuplicate, req.ActionID)
		}
	}

	res, err := s.ledger.Apply(ctx, cmd)
	if err != nil {
		if key != "" {
			s.deduper.Unrecord(ctx, key)
		}
		if errors.Is(err, repository.ErrInvalidCommand) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return nil, fmt.Errorf("apply action: %w", err)
	}

	badgeIDs := make([]string, len(res.NewBadges))
	for i, id := range res.NewBadges {
		badgeIDs[i] = string(id)
		metrics.RecordBadgeUnlocked(badgeIDs[i])
	}
	metrics.RecordActionTracked(cmd.Action.Kind.String(), res.Points)
	s.appendJournal(ctx, &cmd, req.ActionID, &res, badgeIDs)

	resp := s.reward(&cmd, &res)
	if req.WalletAddress != "" && s.pool != nil {
		resp.WalletTx = s.mintRewards(ctx, req.WalletAddress, res.Points, badgeIDs)
	}
	return resp, nil
}

// command validates req and fills defaults.
func (s *Service) command(req types.TrackActionRequest) (repository.ApplyCommand, error) { //nolint:gocritic // request DTO is passed by value
	userID := strings.TrimSpace(req.UserID)
	action := strings.TrimSpace(req.Action)
	switch {
	case userID == "" && action == "":
		return repository.ApplyCommand{}, fmt.Errorf("%w: user_id and action are required", ErrValidation)
	case userID == "":
		return repository.ApplyCommand{}, fmt.Errorf("%w: user_id is required", ErrValidation)
	case action == "":
		return repository.ApplyCommand{}, fmt.Errorf("%w: action is required", ErrValidation)
	}

	magnitude := 1.0
	if req.ActionValue != nil {
		magnitude = *req.ActionValue
	}
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return repository.ApplyCommand{}, fmt.Errorf("%w: action_value must be finite", ErrValidation)
	}

	ts := s.now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
	}
	// UTC without a monotonic reading, as the journal will return it.
	ts = ts.UTC()
	return repository.ApplyCommand{
		UserID:    userID,
		Action:    model.ParseActionType(action),
		Magnitude: magnitude,
		Location:  strings.TrimSpace(req.Location),
		Timestamp: ts,
	}, nil
}

// appendJournal persists the applied action. Failures are logged; the
// in-memory ledger stays authoritative.
func (s *Service) appendJournal(ctx context.Context, cmd *repository.ApplyCommand, actionID string, res *repository.ApplyResult, badgeIDs []string) {
	if s.journal == nil {
		return
	}
	rec := journal.Record{
		Seq:       res.Seq,
		UserID:    cmd.UserID,
		ActionID:  actionID,
		Action:    cmd.Action.String(),
		Magnitude: cmd.Magnitude,
		Points:    res.Points,
		Location:  cmd.Location,
		Timestamp: cmd.Timestamp,
		Badges:    badgeIDs,
	}
	if err := s.journal.Append(context.WithoutCancel(ctx), rec); err != nil {
		metrics.RecordErrorByComponent("journal", "append_failed")
		s.logger.Error(ctx, "journal append failed",
			logger.String("user_id", cmd.UserID),
			logger.Int64("seq", res.Seq),
			logger.Error(err),
		)
	}
}

// reward builds the response for an applied action.
func (s *Service) reward(cmd *repository.ApplyCommand, res *repository.ApplyResult) *types.TrackActionResponse {
	names := s.rules.Names(res.NewBadges)
	newPoints := res.Snapshot.EcoPoints

	rankChange := 0
	if res.NewGlobalRank < res.OldGlobalRank {
		rankChange = res.OldGlobalRank - res.NewGlobalRank
	}
	if t, ok := crossedThreshold(res.OldPoints, newPoints); ok {
		metrics.RecordMilestone(t.label)
	}

	return &types.TrackActionResponse{
		Status:           "success",
		UserID:           cmd.UserID,
		EcoPoints:        newPoints,
		PointsEarned:     res.Points,
		NewBadges:        names,
		Leaderboard:      position(res.NewGlobalRank, res.RegionalRank, res.TotalUsers),
		MilestoneMessage: milestoneMessage(names, res.OldGlobalRank, res.NewGlobalRank, res.OldPoints, newPoints),
		Stats:            userStats(&res.Snapshot),
		AnimationData: types.AnimationData{
			PointsEarned: res.Points,
			LevelUp:      len(res.NewBadges) > 0,
			RankChange:   rankChange,
		},
	}
}

func position(global, regional, total int) types.LeaderboardPosition {
	p := types.LeaderboardPosition{GlobalRank: global, TotalUsers: total}
	if regional > 0 {
		p.RegionalRank = &regional
	}
	return p
}

func userStats(snap *model.Snapshot) types.UserStats {
	return types.UserStats{
		TotalActions:     snap.TotalActions,
		TotalCO2Offset:   snap.TotalCO2OffsetTons,
		TotalEnergySaved: snap.TotalEnergySavedKwh,
		Badges:           len(snap.Badges),
	}
}
