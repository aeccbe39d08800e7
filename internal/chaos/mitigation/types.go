package mitigation

import "github.com/louisbranch/tremor/internal/chaos/pressure"

// Type identifies a category of stabilizing intervention.
type Type string

const (
	TypeDiplomaticTreaty      Type = "diplomatic_treaty"
	TypeEconomicStimulus      Type = "economic_stimulus"
	TypeDisasterRelief        Type = "disaster_relief"
	TypeMilitaryDeterrent     Type = "military_deterrent"
	TypePublicFestival        Type = "public_festival"
	TypeIntelligenceOperation Type = "intelligence_operation"
)

// Profile fixes the tuning knobs for one mitigation type.
type Profile struct {
	// MaxEffectiveness caps the reduction a single factor of this type
	// can apply to any source.
	MaxEffectiveness float64

	// DurationScale multiplies the caller-requested duration.
	DurationScale float64

	// DefaultSources are affected when the caller names none.
	DefaultSources []pressure.Source

	// DecayRate is the linear effectiveness loss per day of age.
	DecayRate float64

	// MaxConcurrent bounds simultaneously active factors of this type.
	MaxConcurrent int

	// StackingPenalty multiplies effectiveness once per already-active
	// factor of the same type.
	StackingPenalty float64
}

var profiles = map[Type]Profile{
	TypeDiplomaticTreaty: {
		MaxEffectiveness: 0.5,
		DurationScale:    1.5,
		DefaultSources:   []pressure.Source{pressure.SourceDiplomatic, pressure.SourcePolitical},
		DecayRate:        0.05,
		MaxConcurrent:    3,
		StackingPenalty:  0.8,
	},
	TypeEconomicStimulus: {
		MaxEffectiveness: 0.5,
		DurationScale:    1.0,
		DefaultSources:   []pressure.Source{pressure.SourceEconomic},
		DecayRate:        0.1,
		MaxConcurrent:    2,
		StackingPenalty:  0.7,
	},
	TypeDisasterRelief: {
		MaxEffectiveness: 0.6,
		DurationScale:    0.5,
		DefaultSources:   []pressure.Source{pressure.SourceEnvironmental, pressure.SourceSocial},
		DecayRate:        0.2,
		MaxConcurrent:    4,
		StackingPenalty:  0.9,
	},
	TypeMilitaryDeterrent: {
		MaxEffectiveness: 0.45,
		DurationScale:    2.0,
		DefaultSources:   []pressure.Source{pressure.SourceMilitary, pressure.SourcePolitical},
		DecayRate:        0.05,
		MaxConcurrent:    2,
		StackingPenalty:  0.6,
	},
	TypePublicFestival: {
		MaxEffectiveness: 0.3,
		DurationScale:    0.25,
		DefaultSources:   []pressure.Source{pressure.SourceSocial},
		DecayRate:        0.3,
		MaxConcurrent:    5,
		StackingPenalty:  0.9,
	},
	TypeIntelligenceOperation: {
		MaxEffectiveness: 0.35,
		DurationScale:    1.0,
		DefaultSources:   []pressure.Source{pressure.SourcePolitical, pressure.SourceMilitary},
		DecayRate:        0.15,
		MaxConcurrent:    3,
		StackingPenalty:  0.7,
	},
}

// ProfileFor looks up the tuning profile for a mitigation type.
func ProfileFor(t Type) (Profile, bool) {
	p, ok := profiles[t]
	return p, ok
}

// Types lists known mitigation types in stable order.
func Types() []Type {
	return []Type{
		TypeDiplomaticTreaty,
		TypeEconomicStimulus,
		TypeDisasterRelief,
		TypeMilitaryDeterrent,
		TypePublicFestival,
		TypeIntelligenceOperation,
	}
}
