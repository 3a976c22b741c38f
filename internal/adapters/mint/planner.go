package mint

import "fmt"

// Planner turns reward outcomes into contract calls for the configured
// contracts.
type Planner struct {
	chainID   int64
	ecoPoints string
	badge     string
	threshold int64
}

// NewPlanner validates the contract addresses. An empty address disables
// that kind of mint.
func NewPlanner(chainID int64, ecoPointsContract, badgeContract string, pointsThreshold int64) (*Planner, error) {
	p := &Planner{chainID: chainID, threshold: pointsThreshold}
	var err error
	if ecoPointsContract != "" {
		if p.ecoPoints, err = NormalizeAddress(ecoPointsContract); err != nil {
			return nil, fmt.Errorf("ecopoints contract: %w", err)
		}
	}
	if badgeContract != "" {
		if p.badge, err = NormalizeAddress(badgeContract); err != nil {
			return nil, fmt.Errorf("badge contract: %w", err)
		}
	}
	return p, nil
}

// Plan returns the requests for one action: an EcoPoints mint when points
// reach the threshold, then one badge mint per new badge in order.
func (p *Planner) Plan(wallet string, points int64, badgeIDs []string) ([]Request, error) {
	to, err := NormalizeAddress(wallet)
	if err != nil {
		return nil, err
	}
	var out []Request
	if points >= p.threshold && p.ecoPoints != "" {
		out = append(out, Request{
			Kind:            KindEcoPoints,
			ChainID:         p.chainID,
			ContractAddress: p.ecoPoints,
			Method:          MethodMintTo,
			Params:          []any{to, points},
		})
	}
	if p.badge != "" {
		for _, id := range badgeIDs {
			out = append(out, Request{
				Kind:            KindBadge,
				ChainID:         p.chainID,
				ContractAddress: p.badge,
				Method:          MethodMintBadge,
				Params:          []any{to, id},
			})
		}
	}
	return out, nil
}
