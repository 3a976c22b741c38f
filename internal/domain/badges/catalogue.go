package badges

import "github.com/okian/ecoledger/internal/domain/model"

func pointsAtLeast(n int64) Predicate {
	return func(s model.Snapshot) bool { return s.EcoPoints >= n }
}

func offsetAtLeast(tons float64) Predicate {
	return func(s model.Snapshot) bool { return s.TotalCO2OffsetTons >= tons }
}

func actionsAtLeast(n int) Predicate {
	return func(s model.Snapshot) bool { return s.TotalActions >= n }
}

func kindCountAtLeast(kind model.ActionKind, n int) Predicate {
	name := kind.String()
	return func(s model.Snapshot) bool { return s.CountOf(name) >= n }
}

// Default returns the standard catalogue.
func Default() *RuleSet {
	return NewRuleSet(
		Definition{ID: "first_step", Name: "First Step", Description: "Completed your first sustainability action!",
			Icon: "🌱", Rarity: Common, Unlock: actionsAtLeast(1)},
		Definition{ID: "carbon_saver", Name: "Carbon Saver", Description: "Offset 1 ton of CO2",
			Icon: "🌍", Rarity: Common, Unlock: offsetAtLeast(1)},
		Definition{ID: "energy_hero", Name: "Energy Hero", Description: "Saved 100 kWh of energy",
			Icon: "⚡", Rarity: Common, Unlock: func(s model.Snapshot) bool { return s.TotalEnergySavedKwh >= 100 }},
		Definition{ID: "green_champion", Name: "Green Champion", Description: "Reached 1000 EcoPoints",
			Icon: "🏆", Rarity: Rare, Unlock: pointsAtLeast(1000)},
		Definition{ID: "carbon_master", Name: "Carbon Master", Description: "Offset 10 tons of CO2",
			Icon: "🌳", Rarity: Rare, Unlock: offsetAtLeast(10)},
		Definition{ID: "ai_eco_explorer", Name: "AI Eco Explorer", Description: "Used AI eco tools 10 times",
			Icon: "🤖", Rarity: Rare, Unlock: kindCountAtLeast(model.ActionAIEcoTool, 10)},
		Definition{ID: "event_organizer", Name: "Event Organizer", Description: "Participated in 5 sustainable events",
			Icon: "📅", Rarity: Rare, Unlock: kindCountAtLeast(model.ActionEventParticipation, 5)},
		Definition{ID: "eco_legend", Name: "Eco Legend", Description: "Reached 10,000 EcoPoints",
			Icon: "👑", Rarity: Epic, Unlock: pointsAtLeast(10_000)},
		Definition{ID: "carbon_warrior", Name: "Carbon Warrior", Description: "Offset 100 tons of CO2",
			Icon: "🛡️", Rarity: Epic, Unlock: offsetAtLeast(100)},
		Definition{ID: "sustainability_guru", Name: "Sustainability Guru", Description: "Completed 100 sustainability actions",
			Icon: "🧙", Rarity: Epic, Unlock: actionsAtLeast(100)},
		Definition{ID: "planet_protector", Name: "Planet Protector", Description: "Reached 50,000 EcoPoints and offset 50 tons",
			Icon: "🌎", Rarity: Legendary, Unlock: func(s model.Snapshot) bool {
				return s.EcoPoints >= 50_000 && s.TotalCO2OffsetTons >= 50
			}},
	)
}
