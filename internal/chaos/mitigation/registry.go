// Package mitigation tracks time-bound factors that dampen specific
// pressure sources until they expire.
package mitigation

import (
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/tremor/internal/chaos/errs"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
)

// Factor is one active mitigation. Immutable once registered.
type Factor struct {
	ID              string
	Type            Type
	Effectiveness   float64
	SourceID        string
	Description     string
	AffectedSources []pressure.Source
	AffectedRegions []string
	AppliedAt       time.Time
	ExpiresAt       time.Time
}

// active reports whether the factor is live at the given instant.
func (f Factor) active(now time.Time) bool {
	return now.Before(f.ExpiresAt)
}

// matchesRegion reports whether the factor applies to the region. An empty
// region list means the factor is global.
func (f Factor) matchesRegion(region string) bool {
	if len(f.AffectedRegions) == 0 {
		return true
	}
	return slices.Contains(f.AffectedRegions, region)
}

// currentEffectiveness decays the registered effectiveness linearly with
// age, one decay-rate step per day.
func (f Factor) currentEffectiveness(now time.Time, decayRate float64) float64 {
	ageDays := now.Sub(f.AppliedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	remaining := 1 - decayRate*ageDays
	if remaining < 0 {
		remaining = 0
	}
	return f.Effectiveness * remaining
}

// ApplyParams describes a mitigation request from an external system.
type ApplyParams struct {
	Type            Type
	Effectiveness   float64
	DurationHours   float64
	SourceID        string
	Description     string
	AffectedSources []pressure.Source
	AffectedRegions []string
}

// Registry owns the active factor list. Safe for concurrent use; expired
// factors are purged lazily on every read.
type Registry struct {
	mu      sync.Mutex
	factors []Factor
	clock   func() time.Time

	applied int64
	expired int64
}

// RegistryOption adjusts registry construction.
type RegistryOption func(*Registry)

// WithRegistryClock injects the time source.
func WithRegistryClock(clock func() time.Time) RegistryOption {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewRegistry builds an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{clock: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply validates and registers a new factor. Effectiveness is clamped to
// the type maximum and penalized per already-active factor of the same
// type; duration is scaled by the type profile.
func (r *Registry) Apply(params ApplyParams) (Factor, error) {
	profile, ok := ProfileFor(params.Type)
	if !ok {
		return Factor{}, errs.Validation("mitigation", "unknown mitigation type %q", params.Type)
	}
	if params.Effectiveness <= 0 || params.Effectiveness > 1 {
		return Factor{}, errs.Validation("mitigation", "effectiveness %v outside (0, 1]", params.Effectiveness)
	}
	if params.DurationHours <= 0 {
		return Factor{}, errs.Validation("mitigation", "duration %v hours must be positive", params.DurationHours)
	}
	for _, src := range params.AffectedSources {
		if !src.Valid() {
			return Factor{}, errs.Validation("mitigation", "unknown pressure source %q", src)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.purgeLocked(now)

	sameType := 0
	for _, f := range r.factors {
		if f.Type == params.Type {
			sameType++
		}
	}
	if sameType >= profile.MaxConcurrent {
		return Factor{}, errs.Validation("mitigation", "type %q already has %d active factors", params.Type, sameType)
	}

	effectiveness := math.Min(params.Effectiveness, profile.MaxEffectiveness)
	effectiveness *= math.Pow(profile.StackingPenalty, float64(sameType))

	sources := params.AffectedSources
	if len(sources) == 0 {
		sources = slices.Clone(profile.DefaultSources)
	}

	duration := time.Duration(params.DurationHours * profile.DurationScale * float64(time.Hour))
	factor := Factor{
		ID:              uuid.NewString(),
		Type:            params.Type,
		Effectiveness:   effectiveness,
		SourceID:        params.SourceID,
		Description:     params.Description,
		AffectedSources: sources,
		AffectedRegions: slices.Clone(params.AffectedRegions),
		AppliedAt:       now,
		ExpiresAt:       now.Add(duration),
	}
	r.factors = append(r.factors, factor)
	r.applied++
	return factor, nil
}

// EffectivePressure reduces each affected source cumulatively, in
// registration order, floored at zero. The input map is not mutated.
func (r *Registry) EffectivePressure(sources map[pressure.Source]float64, region string) map[pressure.Source]float64 {
	out := make(map[pressure.Source]float64, len(sources))
	for src, v := range sources {
		out[src] = v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.purgeLocked(now)

	for _, f := range r.factors {
		if !f.matchesRegion(region) {
			continue
		}
		profile, ok := ProfileFor(f.Type)
		if !ok {
			continue
		}
		eff := f.currentEffectiveness(now, profile.DecayRate)
		if eff <= 0 {
			continue
		}
		for _, src := range f.AffectedSources {
			v, present := out[src]
			if !present {
				continue
			}
			reduced := v - v*eff
			if reduced < 0 {
				reduced = 0
			}
			out[src] = reduced
		}
	}
	return out
}

// Remove drops factors registered by sourceID. An empty typ matches any
// type. Returns the number removed.
func (r *Registry) Remove(sourceID string, typ Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	kept := r.factors[:0]
	for _, f := range r.factors {
		if f.SourceID == sourceID && (typ == "" || f.Type == typ) {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	r.factors = kept
	return removed
}

// Forecast lists active factors expiring within the window, soonest first.
func (r *Registry) Forecast(hoursAhead float64) []Factor {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock()
	r.purgeLocked(now)

	horizon := now.Add(time.Duration(hoursAhead * float64(time.Hour)))
	var out []Factor
	for _, f := range r.factors {
		if !f.ExpiresAt.After(horizon) {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b Factor) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	return out
}

// Active returns a copy of the live factor list in registration order.
func (r *Registry) Active() []Factor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(r.clock())
	return slices.Clone(r.factors)
}

// Counters reports lifetime applied and expired totals.
func (r *Registry) Counters() (applied, expired int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.purgeLocked(r.clock())
	return r.applied, r.expired
}

func (r *Registry) purgeLocked(now time.Time) {
	kept := r.factors[:0]
	for _, f := range r.factors {
		if f.active(now) {
			kept = append(kept, f)
		} else {
			r.expired++
		}
	}
	r.factors = kept
}
