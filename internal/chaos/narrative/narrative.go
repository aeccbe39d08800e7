// Package narrative adjusts chaos event probabilities using active story
// themes, beats, and the current tension/engagement read of the audience.
package narrative

import (
	"sync"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
)

// Priority orders how strongly a theme bends event weights.
type Priority int

const (
	PriorityBackground Priority = iota
	PrioritySupporting
	PriorityCentral
	PriorityCritical
)

// String returns the canonical lower-case priority name.
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PrioritySupporting:
		return "supporting"
	case PriorityCentral:
		return "central"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// scale is how much of a theme's weight modifier its priority tier lets
// through.
func (p Priority) scale() float64 {
	switch p {
	case PriorityBackground:
		return 0.5
	case PrioritySupporting:
		return 0.8
	case PriorityCentral:
		return 1.0
	case PriorityCritical:
		return 1.5
	default:
		return 0.5
	}
}

// Theme is an active storyline that favors or disfavors related events.
type Theme struct {
	ID             string
	Name           string
	Description    string
	Priority       Priority
	WeightModifier float64
	RelatedEvents  []string
	ExpiresAt      time.Time
}

// StoryBeat is a short-lived dramatic moment contributing to tension and
// engagement.
type StoryBeat struct {
	ID                 string
	Name               string
	Description        string
	DramaLevel         float64
	EngagementImpact   float64
	ChaosCompatibility float64
	ExpiresAt          time.Time
}

const (
	baseTension    = 0.5
	baseEngagement = 0.7

	highTension   = 0.8
	lowTension    = 0.3
	lowEngagement = 0.4
)

// Director owns narrative state and recomputes tension/engagement each
// tick. Safe for concurrent use.
type Director struct {
	mu         sync.Mutex
	themes     map[string]Theme
	beats      map[string]StoryBeat
	tension    float64
	engagement float64
	clock      func() time.Time

	weightCalcs    int64
	tensionAdjusts int64
	engageAdjusts  int64
}

// DirectorOption adjusts director construction.
type DirectorOption func(*Director)

// WithDirectorClock injects the time source.
func WithDirectorClock(clock func() time.Time) DirectorOption {
	return func(d *Director) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// NewDirector builds a director with neutral tension and engagement.
func NewDirector(opts ...DirectorOption) *Director {
	d := &Director{
		themes:     make(map[string]Theme),
		beats:      make(map[string]StoryBeat),
		tension:    baseTension,
		engagement: baseEngagement,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// AddTheme registers or replaces a theme. The weight modifier is clamped
// to [0, 2].
func (d *Director) AddTheme(theme Theme) error {
	if theme.ID == "" {
		return errs.Validation("theme", "id is required")
	}
	theme.WeightModifier = clamp(theme.WeightModifier, 0, 2)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.themes[theme.ID] = theme
	return nil
}

// RemoveTheme drops a theme by id.
func (d *Director) RemoveTheme(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.themes, id)
}

// AddBeat registers or replaces a story beat. Drama is clamped to [0,1],
// engagement impact floored at -0.5, compatibility clamped to [0,2].
func (d *Director) AddBeat(beat StoryBeat) error {
	if beat.ID == "" {
		return errs.Validation("story beat", "id is required")
	}
	beat.DramaLevel = clamp(beat.DramaLevel, 0, 1)
	if beat.EngagementImpact < -0.5 {
		beat.EngagementImpact = -0.5
	}
	beat.ChaosCompatibility = clamp(beat.ChaosCompatibility, 0, 2)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.beats[beat.ID] = beat
	return nil
}

// RemoveBeat drops a story beat by id.
func (d *Director) RemoveBeat(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.beats, id)
}

// Retune expires stale state and recomputes tension and engagement from
// the surviving beats layered on the rolling base values.
func (d *Director) Retune() {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.clock()
	for id, theme := range d.themes {
		if !theme.ExpiresAt.IsZero() && now.After(theme.ExpiresAt) {
			delete(d.themes, id)
		}
	}
	tension := baseTension
	engagement := baseEngagement
	for id, beat := range d.beats {
		if !beat.ExpiresAt.IsZero() && now.After(beat.ExpiresAt) {
			delete(d.beats, id)
			continue
		}
		tension += beat.DramaLevel * 0.2
		engagement += beat.EngagementImpact * 0.15
	}
	d.tension = clamp(tension, 0, 1)
	d.engagement = clamp(engagement, 0, 1)
}

// Tension returns the current audience tension in [0,1].
func (d *Director) Tension() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tension
}

// Engagement returns the current audience engagement in [0,1].
func (d *Director) Engagement() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.engagement
}

// EventWeights computes a trigger-probability multiplier per event type.
// Themes related to an event scale its weight by their modifier and
// priority tier; a single global modifier from tension/engagement applies
// to every event.
func (d *Director) EventWeights(eventTypes []string) map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.weightCalcs++
	now := d.clock()
	global := d.globalModifierLocked()

	weights := make(map[string]float64, len(eventTypes))
	for _, event := range eventTypes {
		w := 1.0
		for _, theme := range d.themes {
			if !theme.ExpiresAt.IsZero() && now.After(theme.ExpiresAt) {
				continue
			}
			if !relatesTo(theme, event) {
				continue
			}
			w *= 1 + (theme.WeightModifier-1)*theme.Priority.scale()
		}
		weights[event] = w * global
	}
	return weights
}

// GlobalModifier exposes the tension/engagement multiplier on its own for
// callers gating overall trigger probability.
func (d *Director) GlobalModifier() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.globalModifierLocked()
}

// globalModifierLocked derives the chaos multiplier: high tension cools
// things down, low engagement and low tension both heat them up.
func (d *Director) globalModifierLocked() float64 {
	modifier := 1.0
	if d.tension > highTension {
		modifier *= 1 - (d.tension - highTension)
		d.tensionAdjusts++
	} else if d.tension < lowTension {
		modifier *= 1 + (lowTension-d.tension)*0.5
		d.tensionAdjusts++
	}
	if d.engagement < lowEngagement {
		modifier *= 1 + (lowEngagement-d.engagement)*0.75
		d.engageAdjusts++
	}
	if comp := d.compatibilityLocked(); comp != 1 {
		modifier *= comp
	}
	return clamp(modifier, 0.5, 1.5)
}

// compatibilityLocked averages active beats' chaos compatibility, neutral
// when no beats are active.
func (d *Director) compatibilityLocked() float64 {
	if len(d.beats) == 0 {
		return 1
	}
	sum := 0.0
	for _, beat := range d.beats {
		sum += beat.ChaosCompatibility
	}
	return clamp(sum/float64(len(d.beats)), 0.5, 1.5)
}

// Status is a point-in-time report for the health surface.
type Status struct {
	Tension            float64
	Engagement         float64
	ActiveThemes       int
	ActiveBeats        int
	WeightCalculations int64
}

// Status snapshots the director's state.
func (d *Director) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Status{
		Tension:            d.tension,
		Engagement:         d.engagement,
		ActiveThemes:       len(d.themes),
		ActiveBeats:        len(d.beats),
		WeightCalculations: d.weightCalcs,
	}
}

func relatesTo(theme Theme, event string) bool {
	for _, related := range theme.RelatedEvents {
		if related == event {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
