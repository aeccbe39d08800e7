// Package pressure stores and aggregates normalized stress signals reported
// by independent game subsystems.
package pressure

import (
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
)

// Source identifies the subsystem a pressure reading came from.
type Source string

const (
	SourceEconomic      Source = "economic"
	SourcePolitical     Source = "political"
	SourceSocial        Source = "social"
	SourceDiplomatic    Source = "diplomatic"
	SourceMilitary      Source = "military"
	SourceEnvironmental Source = "environmental"
)

// Sources lists every known source in stable order.
func Sources() []Source {
	return []Source{
		SourceEconomic,
		SourcePolitical,
		SourceSocial,
		SourceDiplomatic,
		SourceMilitary,
		SourceEnvironmental,
	}
}

// Valid reports whether the source is one of the known subsystems.
func (s Source) Valid() bool {
	switch s {
	case SourceEconomic, SourcePolitical, SourceSocial,
		SourceDiplomatic, SourceMilitary, SourceEnvironmental:
		return true
	}
	return false
}

// Reading is one timestamped pressure sample. Immutable once recorded.
type Reading struct {
	Source     Source
	Value      float64
	Confidence float64
	Region     string
	Timestamp  time.Time
}

// Normalize clamps the reading into valid ranges and defaults confidence
// to full when unset.
func (r Reading) Normalize(now time.Time) (Reading, error) {
	if !r.Source.Valid() {
		return Reading{}, errs.Validation("reading", "unknown pressure source %q", r.Source)
	}
	r.Value = clamp01(r.Value)
	if r.Confidence == 0 {
		r.Confidence = 1
	}
	r.Confidence = clamp01(r.Confidence)
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	return r, nil
}

// Metrics summarizes one region's recent readings.
type Metrics struct {
	WeightedPressure   float64
	PeakPressure       float64
	Trend              float64
	Velocity           float64
	TimeAboveThreshold time.Duration
	Breakdown          map[Source]float64
	UpdatedAt          time.Time
}

// GlobalFactors are world-level stability scalars in [0,1]. Higher means
// more stable; the scorer inverts them into pressure.
type GlobalFactors struct {
	EconomicHealth         float64
	InternationalStability float64
	ClimateStability       float64
	ResourceAbundance      float64
}

// DefaultGlobalFactors returns neutral stability values.
func DefaultGlobalFactors() GlobalFactors {
	return GlobalFactors{
		EconomicHealth:         0.5,
		InternationalStability: 0.5,
		ClimateStability:       0.5,
		ResourceAbundance:      0.5,
	}
}

// Snapshot is a consistent view of all regional metrics plus global state,
// taken once at the start of a tick.
type Snapshot struct {
	Regions map[string]Metrics
	Factors GlobalFactors
	History []float64
	TakenAt time.Time
}

// LatestUpdate returns the most recent metrics update across regions.
func (s Snapshot) LatestUpdate() time.Time {
	var latest time.Time
	for _, m := range s.Regions {
		if m.UpdatedAt.After(latest) {
			latest = m.UpdatedAt
		}
	}
	return latest
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
