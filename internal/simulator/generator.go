package simulator

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ecoledger/internal/domain/model"
	"github.com/okian/ecoledger/internal/domain/scoring"
	"github.com/okian/ecoledger/internal/domain/types"
	"github.com/okian/ecoledger/pkg/logger"
)

// otherAction exercises the default multiplier.
const otherAction = "community_cleanup"

// magnitudeRange is [min, min+span) per kind, in the kind's natural unit.
type magnitudeRange struct {
	min, span float64
}

var magnitudes = map[model.ActionKind]magnitudeRange{
	model.ActionCarbonOffset:         {0.1, 3},
	model.ActionEnergySaving:         {5, 200},
	model.ActionAIEcoTool:            {1, 4},
	model.ActionEventParticipation:   {1, 2},
	model.ActionWaterSaving:          {10, 500},
	model.ActionPlasticReduction:     {1, 20},
	model.ActionSustainableTransport: {1, 40},
	model.ActionRecycling:            {0.5, 10},
	model.ActionTreePlanting:         {1, 5},
	model.ActionRenewableEnergy:      {0.5, 8},
	model.ActionOther:                {1, 10},
}

// generator draws every random value from one seeded source so a seed
// reproduces the same users, actions and ids.
type generator struct {
	src   *rand.ChaCha8
	rng   *rand.Rand
	kinds []model.ActionKind
}

func newGenerator(seed uint64) *generator {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	src := rand.NewChaCha8(key)
	return &generator{
		src:   src,
		rng:   rand.New(src),
		kinds: append(model.KnownKinds(), model.ActionOther),
	}
}

func (g *generator) id() string {
	id, err := uuid.NewRandomFromReader(g.src)
	if err != nil {
		// ChaCha8 reads never fail.
		return uuid.NewString()
	}
	return id.String()
}

func (g *generator) action(userID, location string, ts time.Time) types.TrackActionRequest {
	kind := g.kinds[g.rng.IntN(len(g.kinds))]
	name := kind.String()
	if kind == model.ActionOther {
		name = otherAction
	}
	r := magnitudes[kind]
	value := math.Round((r.min+g.rng.Float64()*r.span)*100) / 100
	return types.TrackActionRequest{
		UserID:      userID,
		Action:      name,
		ActionValue: &value,
		Timestamp:   &ts,
		Location:    location,
		ActionID:    g.id(),
	}
}

// Generate builds cfg.Actions actions spread over cfg.Users users, every user
// getting at least one, followed by replays of earlier action ids in random
// order.
func Generate(ctx context.Context, cfg *Config) []Action {
	g := newGenerator(cfg.Seed)
	now := time.Now().UTC().Truncate(time.Millisecond)

	users := make([]string, cfg.Users)
	regions := make([]string, cfg.Users)
	for i := range users {
		users[i] = g.id()
		if len(cfg.Regions) > 0 {
			// One extra slot leaves the user without a region.
			if n := g.rng.IntN(len(cfg.Regions) + 1); n < len(cfg.Regions) {
				regions[i] = cfg.Regions[n]
			}
		}
	}

	actions := make([]Action, 0, cfg.Actions)
	for i := 0; i < cfg.Actions; i++ {
		u := i
		if i >= cfg.Users {
			u = g.rng.IntN(cfg.Users)
		}
		ts := now.Add(-time.Duration(g.rng.IntN(3600)) * time.Second)
		actions = append(actions, Action{Request: g.action(users[u], regions[u], ts)})
	}

	replays := int(float64(cfg.Actions) * cfg.DuplicateRate)
	for i := 0; i < replays; i++ {
		a := actions[g.rng.IntN(cfg.Actions)]
		a.Replay = true
		actions = append(actions, a)
	}
	g.rng.Shuffle(len(actions), func(i, j int) { actions[i], actions[j] = actions[j], actions[i] })

	logger.Get().Info(ctx, "generated actions",
		logger.Int("users", cfg.Users),
		logger.Int("actions", cfg.Actions),
		logger.Int("replays", replays))
	return actions
}

// Expected recomputes every user's balance and region from the generated
// actions, counting each action id once.
func Expected(actions []Action, table *scoring.Table) (map[string]int64, map[string]string) {
	balances := make(map[string]int64)
	regions := make(map[string]string)
	seen := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		req := a.Request
		key := req.UserID + "\x1f" + req.ActionID
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		value := 1.0
		if req.ActionValue != nil {
			value = *req.ActionValue
		}
		balances[req.UserID] += table.Score(model.ParseActionType(req.Action), value)
		if req.Location != "" {
			regions[req.UserID] = req.Location
		}
	}
	return balances, regions
}
