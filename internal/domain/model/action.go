// Package model contains the ledger's domain types shared between layers.
package model

import "time"

// ActionKind enumerates the sustainability actions the scoring table knows.
// ActionOther carries any unrecognized kind; its raw name lives in ActionType.
type ActionKind uint8

const (
	ActionOther ActionKind = iota
	ActionCarbonOffset
	ActionEnergySaving
	ActionAIEcoTool
	ActionEventParticipation
	ActionWaterSaving
	ActionPlasticReduction
	ActionSustainableTransport
	ActionRecycling
	ActionTreePlanting
	ActionRenewableEnergy
)

var kindNames = [...]string{
	ActionOther:                "",
	ActionCarbonOffset:         "carbon_offset",
	ActionEnergySaving:         "energy_saving",
	ActionAIEcoTool:            "ai_eco_tool",
	ActionEventParticipation:   "event_participation",
	ActionWaterSaving:          "water_saving",
	ActionPlasticReduction:     "plastic_reduction",
	ActionSustainableTransport: "sustainable_transport",
	ActionRecycling:            "recycling",
	ActionTreePlanting:         "tree_planting",
	ActionRenewableEnergy:      "renewable_energy",
}

var kindByName = func() map[string]ActionKind {
	m := make(map[string]ActionKind, len(kindNames))
	for k, name := range kindNames {
		if name != "" {
			m[name] = ActionKind(k)
		}
	}
	return m
}()

// String returns the wire name of a known kind, or "other".
func (k ActionKind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "other"
}

// KnownKinds returns every recognized kind in declaration order.
func KnownKinds() []ActionKind {
	out := make([]ActionKind, 0, len(kindNames)-1)
	for k := ActionCarbonOffset; int(k) < len(kindNames); k++ {
		out = append(out, k)
	}
	return out
}

// ActionType is a parsed action name: a known kind, or ActionOther with the
// caller's raw string.
type ActionType struct {
	Kind ActionKind
	Raw  string
}

// ParseActionType maps a wire name to its kind. Names are matched exactly.
func ParseActionType(name string) ActionType {
	if k, ok := kindByName[name]; ok {
		return ActionType{Kind: k, Raw: name}
	}
	return ActionType{Kind: ActionOther, Raw: name}
}

// String returns the wire name.
func (a ActionType) String() string {
	if a.Kind == ActionOther {
		return a.Raw
	}
	return a.Kind.String()
}

// Known reports whether the action maps to a built-in kind.
func (a ActionType) Known() bool { return a.Kind != ActionOther }

// ActionRecord is one accepted action in a user's history.
type ActionRecord struct {
	Action    ActionType
	Magnitude float64
	Points    int64
	Timestamp time.Time
}
