package service

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ecoledger/internal/adapters/mint"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/logger"
	"github.com/okian/ecoledger/pkg/metrics"
)

// mintRewards queues the mints for one action and waits at most the mint
// timeout. Only successful mints appear in the result; nil means none did.
func (s *Service) mintRewards(ctx context.Context, wallet string, points int64, badgeIDs []string) *types.WalletTx {
	reqs, err := s.planner.Plan(wallet, points, badgeIDs)
	if err != nil {
		metrics.RecordErrorByComponent("mint", "plan_failed")
		s.logger.Warn(ctx, "mint skipped", logger.String("wallet", wallet), logger.Error(err))
		return nil
	}
	if len(reqs) == 0 {
		return nil
	}

	deadline := time.Now().Add(s.mintTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	reply := make(chan mint.Outcome, len(reqs))
	sent := 0
	for i, req := range reqs {
		job := mint.Job{
			ID:       uuid.NewString(),
			Index:    i,
			Request:  req,
			Deadline: deadline,
			Reply:    reply,
		}
		if err := s.mintQueue.Enqueue(ctx, job); err != nil {
			metrics.RecordMintFailure(req.Kind.String(), "backpressure")
			s.logger.Warn(ctx, "mint job dropped", logger.String("kind", req.Kind.String()), logger.Error(err))
			continue
		}
		sent++
	}

	outcomes := collect(ctx, reply, sent, deadline)
	if len(outcomes) < sent {
		s.logger.Warn(ctx, "mint outcomes timed out", logger.Int("expected", sent), logger.Int("received", len(outcomes)))
	}

	var tx types.WalletTx
	for _, out := range outcomes {
		if out.Err != nil || out.TxID == "" {
			continue
		}
		switch out.Kind {
		case mint.KindEcoPoints:
			tx.EcoPointsNFT = out.TxID
		case mint.KindBadge:
			tx.BadgeNFTs = append(tx.BadgeNFTs, out.TxID)
		}
	}
	if tx.EcoPointsNFT == "" && len(tx.BadgeNFTs) == 0 {
		return nil
	}
	return &tx
}

// collect reads up to n outcomes before deadline and returns them in
// request order.
func collect(ctx context.Context, reply <-chan mint.Outcome, n int, deadline time.Time) []mint.Outcome {
	outcomes := make([]mint.Outcome, 0, n)
	if n == 0 {
		return outcomes
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

wait:
	for len(outcomes) < n {
		select {
		case out := <-reply:
			outcomes = append(outcomes, out)
		case <-timer.C:
			break wait
		case <-ctx.Done():
			break wait
		}
	}
	slices.SortFunc(outcomes, func(a, b mint.Outcome) int { return cmp.Compare(a.Index, b.Index) })
	return outcomes
}
