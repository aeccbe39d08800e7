package warning

import "github.com/louisbranch/tremor/internal/chaos/trigger"

// clueSet holds the player-visible and GM-only text for one event type,
// indexed by phase.
type clueSet struct {
	visible [3][]string
	hidden  [3][]string
}

var clues = map[trigger.EventType]clueSet{
	trigger.EventEconomicCrisis: {
		visible: [3][]string{
			{"Merchants whisper about shortages in the market"},
			{"Prices climb sharply", "Moneylenders refuse new loans"},
			{"Banks shutter their doors", "Crowds gather outside the treasury"},
		},
		hidden: [3][]string{
			{"Grain reserves are quietly being moved out of the city"},
			{"The guild masters have stopped paying their suppliers"},
			{"The crown's coffers are nearly empty"},
		},
	},
	trigger.EventPoliticalUpheaval: {
		visible: [3][]string{
			{"Courtiers trade rumors of a falling-out among the council"},
			{"Guards are reassigned to the palace without explanation"},
			{"Heralds announce an emergency session of the council"},
		},
		hidden: [3][]string{
			{"A faction has begun counting sympathetic officers"},
			{"Sealed letters circulate among the noble houses"},
			{"Loyalist commanders have been recalled to the capital"},
		},
	},
	trigger.EventCivilUnrest: {
		visible: [3][]string{
			{"Graffiti against the authorities appears overnight"},
			{"Small crowds form in the squares and refuse to disperse"},
			{"Shopkeepers board their windows", "Streets empty after dark"},
		},
		hidden: [3][]string{
			{"Agitators have been seen meeting in taverns"},
			{"Weapons are being stockpiled in the lower districts"},
			{"Ward captains report their patrols are being followed"},
		},
	},
	trigger.EventNaturalDisaster: {
		visible: [3][]string{
			{"Animals behave strangely", "The air feels wrong"},
			{"Wells run muddy", "Tremors rattle crockery"},
			{"The sky darkens unnaturally", "Livestock flee the fields"},
		},
		hidden: [3][]string{
			{"River gauges read higher than any recorded season"},
			{"Fault lines near the region show fresh slippage"},
			{"Local druids have abandoned their groves"},
		},
	},
	trigger.EventDiplomaticCrisis: {
		visible: [3][]string{
			{"A foreign envoy departs abruptly"},
			{"Trade caravans from the neighboring realm stop arriving"},
			{"The embassy burns its papers through the night"},
		},
		hidden: [3][]string{
			{"Coded dispatches between capitals have tripled"},
			{"Border garrisons report unusual scouting parties"},
			{"An ultimatum has been drafted but not yet delivered"},
		},
	},
	trigger.EventWarOutbreak: {
		visible: [3][]string{
			{"Smiths take on unusual orders for arms"},
			{"Levies are called up in the border towns"},
			{"Columns of soldiers march toward the frontier"},
		},
		hidden: [3][]string{
			{"Supply depots are being stocked along the border roads"},
			{"Officers have been ordered to cancel all leave"},
			{"The vanguard has already crossed the river"},
		},
	},
}

// visibleClues returns the player-facing clue lines for the pair. Unknown
// event types get a generic rumor line so warnings are never silent.
func visibleClues(eventType trigger.EventType, phase Phase) []string {
	set, ok := clues[eventType]
	if !ok || phase < PhaseRumor || phase > PhaseImminent {
		return []string{"Unease spreads through the region"}
	}
	out := make([]string, len(set.visible[phase]))
	copy(out, set.visible[phase])
	return out
}

// hiddenIndicators returns the GM-only signals for the pair.
func hiddenIndicators(eventType trigger.EventType, phase Phase) []string {
	set, ok := clues[eventType]
	if !ok || phase < PhaseRumor || phase > PhaseImminent {
		return nil
	}
	out := make([]string, len(set.hidden[phase]))
	copy(out, set.hidden[phase])
	return out
}
