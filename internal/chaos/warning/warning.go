// Package warning raises, escalates, and clears player-visible warnings
// through a forward-only three-phase state machine.
package warning

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
	"github.com/louisbranch/tremor/internal/chaos/trigger"
)

// Phase is the visibility tier of an impending chaos event.
type Phase int

const (
	PhaseRumor Phase = iota
	PhaseEarly
	PhaseImminent
)

// String returns the canonical lower-case phase name.
func (p Phase) String() string {
	switch p {
	case PhaseRumor:
		return "rumor"
	case PhaseEarly:
		return "early"
	case PhaseImminent:
		return "imminent"
	default:
		return "unknown"
	}
}

// Window is how long a warning of this phase stays active.
func (p Phase) Window() time.Duration {
	switch p {
	case PhaseRumor:
		return 8 * time.Hour
	case PhaseEarly:
		return 4 * time.Hour
	case PhaseImminent:
		return time.Hour
	default:
		return 8 * time.Hour
	}
}

// EscalationProbability is the chance a warning of this phase advances.
func (p Phase) EscalationProbability() float64 {
	switch p {
	case PhaseRumor:
		return 0.6
	case PhaseEarly:
		return 0.8
	case PhaseImminent:
		return 0.9
	default:
		return 0
	}
}

// Severity is the player-facing weight of this phase.
func (p Phase) Severity() float64 {
	switch p {
	case PhaseRumor:
		return 0.3
	case PhaseEarly:
		return 0.6
	case PhaseImminent:
		return 0.9
	default:
		return 0.3
	}
}

// Warning is one active player-visible warning. Replaced, never mutated,
// on escalation.
type Warning struct {
	ID                    string
	Region                string
	Phase                 Phase
	EventType             trigger.EventType
	Severity              float64
	TriggeredAt           time.Time
	ExpiresAt             time.Time
	VisibleClues          []string
	HiddenIndicators      []string
	EscalationProbability float64
}

const (
	// createThreshold is the chaos score that can seed a rumor.
	createThreshold = 0.4

	// escalateThreshold is the score required before a warning may jump
	// a phase on a score crossing.
	escalateThreshold = 0.7
)

// Counters are lifetime warning metrics.
type Counters struct {
	Triggered int64
	Escalated int64
	Expired   int64
	Cleared   int64
	Prevented int64
}

// Summary reports one region's warning state.
type Summary struct {
	Count        int
	HighestPhase Phase
	HasWarnings  bool
	Warnings     []Warning
}

// Escalator owns the active warning map. Safe for concurrent use.
type Escalator struct {
	mu       sync.Mutex
	active   map[string]Warning
	lastRoll map[string]time.Time
	rollGap  time.Duration
	clock    func() time.Time
	rng      *rand.Rand
	counters Counters
}

// EscalatorOption adjusts escalator construction.
type EscalatorOption func(*Escalator)

// WithEscalatorClock injects the time source.
func WithEscalatorClock(clock func() time.Time) EscalatorOption {
	return func(e *Escalator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithEscalatorRand injects a deterministic random source.
func WithEscalatorRand(rng *rand.Rand) EscalatorOption {
	return func(e *Escalator) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithRollGap sets the minimum time between early-escalation rolls for
// one warning. Ticks inside the gap skip the roll.
func WithRollGap(gap time.Duration) EscalatorOption {
	return func(e *Escalator) {
		if gap > 0 {
			e.rollGap = gap
		}
	}
}

// NewEscalator builds an empty escalator.
func NewEscalator(opts ...EscalatorOption) *Escalator {
	e := &Escalator{
		active:   make(map[string]Warning),
		lastRoll: make(map[string]time.Time),
		rollGap:  time.Hour,
		clock:    time.Now,
		rng:      rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CheckAndTrigger seeds or escalates a warning for the region's dominant
// event type based on the chaos score. Returns warnings created this call.
func (e *Escalator) CheckAndTrigger(region string, chaosScore float64, snapshot map[pressure.Source]float64) []Warning {
	if chaosScore < createThreshold {
		return nil
	}
	eventType := dominantEvent(snapshot)
	if eventType == "" {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	e.expireLocked(now)

	highest, exists := e.highestPhaseLocked(region, eventType)
	if !exists {
		w := e.createLocked(region, eventType, PhaseRumor, now)
		return []Warning{w}
	}
	if chaosScore >= escalateThreshold && highest < PhaseImminent {
		if e.rng.Float64() < highest.EscalationProbability() {
			w := e.createLocked(region, eventType, highest+1, now)
			e.counters.Escalated++
			return []Warning{w}
		}
	}
	return nil
}

// Tick expires warnings past their window and rolls each surviving
// warning's escalation probability at most once per roll gap to decide
// whether it advances a phase early.
func (e *Escalator) Tick() []Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	e.expireLocked(now)

	var advanced []Warning
	keys := make([]string, 0, len(e.active))
	for key := range e.active {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		w := e.active[key]
		if w.Phase >= PhaseImminent {
			continue
		}
		if last, ok := e.lastRoll[key]; ok && now.Sub(last) < e.rollGap {
			continue
		}
		e.lastRoll[key] = now

		if e.rng.Float64() >= w.EscalationProbability {
			continue
		}
		next := w.Phase + 1
		if _, exists := e.active[warningKey(w.Region, w.EventType, next)]; exists {
			continue
		}
		created := e.createLocked(w.Region, w.EventType, next, now)
		e.counters.Escalated++
		advanced = append(advanced, created)
	}
	return advanced
}

// Clear removes the region's warnings at the given phase. It is the only
// caller-triggered downgrade; cleared warnings count as prevented.
func (e *Escalator) Clear(region string, phase Phase) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	for key, w := range e.active {
		if w.Region == region && w.Phase == phase {
			delete(e.active, key)
			delete(e.lastRoll, key)
			removed++
		}
	}
	e.counters.Cleared += int64(removed)
	e.counters.Prevented += int64(removed)
	return removed
}

// RegionWarnings summarizes one region's active warnings.
func (e *Escalator) RegionWarnings(region string) Summary {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked(e.clock())

	summary := Summary{}
	for _, w := range e.active {
		if w.Region != region {
			continue
		}
		summary.Count++
		summary.Warnings = append(summary.Warnings, w)
		if w.Phase > summary.HighestPhase {
			summary.HighestPhase = w.Phase
		}
	}
	summary.HasWarnings = summary.Count > 0
	sort.Slice(summary.Warnings, func(i, j int) bool {
		if summary.Warnings[i].Phase != summary.Warnings[j].Phase {
			return summary.Warnings[i].Phase < summary.Warnings[j].Phase
		}
		return summary.Warnings[i].ID < summary.Warnings[j].ID
	})
	return summary
}

// ActiveCount reports the number of live warnings across regions.
func (e *Escalator) ActiveCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.expireLocked(e.clock())
	return len(e.active)
}

// Counters snapshots lifetime metrics.
func (e *Escalator) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// createLocked replaces any same-key warning with a fresh one; the prior
// phase's warning is left alone so both coexist until expiry.
func (e *Escalator) createLocked(region string, eventType trigger.EventType, phase Phase, now time.Time) Warning {
	w := Warning{
		ID:                    uuid.NewString(),
		Region:                region,
		Phase:                 phase,
		EventType:             eventType,
		Severity:              phase.Severity(),
		TriggeredAt:           now,
		ExpiresAt:             now.Add(phase.Window()),
		VisibleClues:          visibleClues(eventType, phase),
		HiddenIndicators:      hiddenIndicators(eventType, phase),
		EscalationProbability: phase.EscalationProbability(),
	}
	e.active[warningKey(region, eventType, phase)] = w
	e.counters.Triggered++
	return w
}

func (e *Escalator) expireLocked(now time.Time) {
	for key, w := range e.active {
		if now.After(w.ExpiresAt) {
			delete(e.active, key)
			delete(e.lastRoll, key)
			e.counters.Expired++
		}
	}
}

// highestPhaseLocked finds the most advanced active phase for the pair.
func (e *Escalator) highestPhaseLocked(region string, eventType trigger.EventType) (Phase, bool) {
	highest := PhaseRumor
	found := false
	for _, w := range e.active {
		if w.Region != region || w.EventType != eventType {
			continue
		}
		if !found || w.Phase > highest {
			highest = w.Phase
		}
		found = true
	}
	return highest, found
}

// dominantEvent maps the heaviest pressure source in the snapshot to its
// warning event type.
func dominantEvent(snapshot map[pressure.Source]float64) trigger.EventType {
	var dominant pressure.Source
	best := -1.0
	for _, src := range pressure.Sources() {
		if v, ok := snapshot[src]; ok && v > best {
			best = v
			dominant = src
		}
	}
	switch dominant {
	case pressure.SourceEconomic:
		return trigger.EventEconomicCrisis
	case pressure.SourcePolitical:
		return trigger.EventPoliticalUpheaval
	case pressure.SourceSocial:
		return trigger.EventCivilUnrest
	case pressure.SourceEnvironmental:
		return trigger.EventNaturalDisaster
	case pressure.SourceDiplomatic:
		return trigger.EventDiplomaticCrisis
	case pressure.SourceMilitary:
		return trigger.EventWarOutbreak
	default:
		return ""
	}
}

func warningKey(region string, eventType trigger.EventType, phase Phase) string {
	return region + "|" + string(eventType) + "|" + phase.String()
}
