package trigger

import "github.com/louisbranch/tremor/internal/chaos/pressure"

// EventType identifies a category of narrative-disruption event.
type EventType string

const (
	EventEconomicCrisis    EventType = "economic_crisis"
	EventPoliticalUpheaval EventType = "political_upheaval"
	EventCivilUnrest       EventType = "civil_unrest"
	EventNaturalDisaster   EventType = "natural_disaster"
	EventDiplomaticCrisis  EventType = "diplomatic_crisis"
	EventLeadershipCoup    EventType = "leadership_coup"
	EventResourceScarcity  EventType = "resource_scarcity"
	EventMassMigration     EventType = "mass_migration"
	EventWarOutbreak       EventType = "war_outbreak"
)

// Severity orders event impact tiers.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityModerate
	SeverityMajor
	SeverityCatastrophic
)

// String returns the canonical lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityMinor:
		return "minor"
	case SeverityModerate:
		return "moderate"
	case SeverityMajor:
		return "major"
	case SeverityCatastrophic:
		return "catastrophic"
	default:
		return "unknown"
	}
}

// SeverityFor maps a chaos score to an impact tier.
func SeverityFor(score float64) Severity {
	switch {
	case score < 0.3:
		return SeverityMinor
	case score < 0.5:
		return SeverityModerate
	case score < 0.8:
		return SeverityMajor
	default:
		return SeverityCatastrophic
	}
}

// cooldownMultiplier stretches a type's base cooldown with impact.
func (s Severity) cooldownMultiplier() float64 {
	switch s {
	case SeverityMinor:
		return 0.5
	case SeverityModerate:
		return 1.0
	case SeverityMajor:
		return 1.5
	case SeverityCatastrophic:
		return 2.0
	default:
		return 1.0
	}
}

// MaxRegions bounds how many regions one event of this severity touches.
func (s Severity) MaxRegions() int {
	switch s {
	case SeverityMinor:
		return 1
	case SeverityModerate:
		return 2
	case SeverityMajor:
		return 3
	case SeverityCatastrophic:
		return 5
	default:
		return 1
	}
}

// Template fixes the static shape of one event type.
type Template struct {
	Name               string
	Source             pressure.Source
	AffectedSystems    []string
	CascadeChildren    []EventType
	CascadeProbability float64
	CooldownHours      float64
	DurationHours      float64
}

var templates = map[EventType]Template{
	EventEconomicCrisis: {
		Name:               "Economic Crisis",
		Source:             pressure.SourceEconomic,
		AffectedSystems:    []string{"economy", "population"},
		CascadeChildren:    []EventType{EventCivilUnrest, EventPoliticalUpheaval},
		CascadeProbability: 0.5,
		CooldownHours:      72,
		DurationHours:      168,
	},
	EventPoliticalUpheaval: {
		Name:               "Political Upheaval",
		Source:             pressure.SourcePolitical,
		AffectedSystems:    []string{"faction", "diplomacy"},
		CascadeChildren:    []EventType{EventCivilUnrest, EventLeadershipCoup},
		CascadeProbability: 0.3,
		CooldownHours:      48,
		DurationHours:      96,
	},
	EventCivilUnrest: {
		Name:               "Civil Unrest",
		Source:             pressure.SourceSocial,
		AffectedSystems:    []string{"population", "faction"},
		CascadeProbability: 0,
		CooldownHours:      36,
		DurationHours:      48,
	},
	EventNaturalDisaster: {
		Name:               "Natural Disaster",
		Source:             pressure.SourceEnvironmental,
		AffectedSystems:    []string{"environment", "population", "economy"},
		CascadeChildren:    []EventType{EventResourceScarcity, EventMassMigration},
		CascadeProbability: 0.4,
		CooldownHours:      24,
		DurationHours:      72,
	},
	EventDiplomaticCrisis: {
		Name:               "Diplomatic Crisis",
		Source:             pressure.SourceDiplomatic,
		AffectedSystems:    []string{"diplomacy", "faction"},
		CascadeChildren:    []EventType{EventWarOutbreak},
		CascadeProbability: 0.2,
		CooldownHours:      48,
		DurationHours:      120,
	},
	EventLeadershipCoup: {
		Name:               "Leadership Coup",
		Source:             pressure.SourcePolitical,
		AffectedSystems:    []string{"faction"},
		CascadeProbability: 0,
		CooldownHours:      96,
		DurationHours:      48,
	},
	EventResourceScarcity: {
		Name:               "Resource Scarcity",
		Source:             pressure.SourceEconomic,
		AffectedSystems:    []string{"economy", "population"},
		CascadeProbability: 0,
		CooldownHours:      60,
		DurationHours:      168,
	},
	EventMassMigration: {
		Name:               "Mass Migration",
		Source:             pressure.SourceSocial,
		AffectedSystems:    []string{"population", "economy"},
		CascadeProbability: 0,
		CooldownHours:      72,
		DurationHours:      240,
	},
	EventWarOutbreak: {
		Name:               "War Outbreak",
		Source:             pressure.SourceMilitary,
		AffectedSystems:    []string{"military", "faction", "diplomacy", "economy"},
		CascadeChildren:    []EventType{EventMassMigration, EventResourceScarcity},
		CascadeProbability: 0.6,
		CooldownHours:      168,
		DurationHours:      336,
	},
}

// TemplateFor looks up the static template for an event type.
func TemplateFor(t EventType) (Template, bool) {
	tmpl, ok := templates[t]
	return tmpl, ok
}

// EventTypes lists known event types in stable order.
func EventTypes() []EventType {
	return []EventType{
		EventEconomicCrisis,
		EventPoliticalUpheaval,
		EventCivilUnrest,
		EventNaturalDisaster,
		EventDiplomaticCrisis,
		EventLeadershipCoup,
		EventResourceScarcity,
		EventMassMigration,
		EventWarOutbreak,
	}
}

// sourceEvents maps each dominant pressure source to the event types it
// nominates.
var sourceEvents = map[pressure.Source][]EventType{
	pressure.SourceEconomic:      {EventEconomicCrisis, EventResourceScarcity},
	pressure.SourcePolitical:     {EventPoliticalUpheaval, EventLeadershipCoup},
	pressure.SourceSocial:        {EventCivilUnrest, EventMassMigration},
	pressure.SourceEnvironmental: {EventNaturalDisaster},
	pressure.SourceDiplomatic:    {EventDiplomaticCrisis},
	pressure.SourceMilitary:      {EventWarOutbreak},
}

// RecommendedEvents nominates candidate event types from the dominant
// pressure source, widened by severity tiers at high scores. The same type
// may be nominated twice by design; the list is de-duplicated.
func RecommendedEvents(dominant pressure.Source, chaosScore float64) []EventType {
	var out []EventType
	seen := make(map[EventType]bool)
	add := func(types ...EventType) {
		for _, t := range types {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	add(sourceEvents[dominant]...)
	if chaosScore > 0.8 {
		add(EventWarOutbreak, EventPoliticalUpheaval)
	}
	if chaosScore > 0.6 {
		add(EventCivilUnrest)
	}
	return out
}
