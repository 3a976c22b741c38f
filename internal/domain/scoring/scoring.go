// Package scoring converts sustainability actions into EcoPoints.
package scoring

import (
	"maps"
	"math"

	"github.com/okian/ecoledger/internal/domain/model"
)

// DefaultMultiplier scores kinds that have no entry in the table.
const DefaultMultiplier = 10.0

// Option applies a configuration option to the Table.
type Option func(*Table)

// WithMultipliers overrides or adds per-action multipliers. Names that are not
// built-in kinds score those "other" actions with the given multiplier.
func WithMultipliers(multipliers map[string]float64) Option {
	return func(t *Table) {
		for name, m := range multipliers {
			t.multipliers[name] = m
		}
	}
}

// WithDefaultMultiplier sets the fallback multiplier. Non-positive values are ignored.
func WithDefaultMultiplier(m float64) Option {
	return func(t *Table) {
		if m > 0 {
			t.defaultMultiplier = m
		}
	}
}

// Table is a pure lookup from action to points. It is immutable after New.
type Table struct {
	multipliers       map[string]float64
	defaultMultiplier float64
}

// New returns the built-in table with options applied.
func New(opts ...Option) *Table {
	t := &Table{
		multipliers: map[string]float64{
			model.ActionCarbonOffset.String():         100,
			model.ActionEnergySaving.String():         2,
			model.ActionAIEcoTool.String():            50,
			model.ActionEventParticipation.String():   200,
			model.ActionWaterSaving.String():          0.1,
			model.ActionPlasticReduction.String():     5,
			model.ActionSustainableTransport.String(): 10,
			model.ActionRecycling.String():            25,
			model.ActionTreePlanting.String():         150,
			model.ActionRenewableEnergy.String():      75,
		},
		defaultMultiplier: DefaultMultiplier,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Multiplier returns the factor applied to the action's magnitude.
func (t *Table) Multiplier(action model.ActionType) float64 {
	if m, ok := t.multipliers[action.String()]; ok {
		return m
	}
	return t.defaultMultiplier
}

// Score returns magnitude × multiplier rounded half away from zero. Negative
// magnitudes produce negative points.
func (t *Table) Score(action model.ActionType, magnitude float64) int64 {
	return int64(math.Round(magnitude * t.Multiplier(action)))
}

// Multipliers returns a copy of the configured table.
func (t *Table) Multipliers() map[string]float64 {
	return maps.Clone(t.multipliers)
}

// Default returns the fallback multiplier.
func (t *Table) Default() float64 { return t.defaultMultiplier }
