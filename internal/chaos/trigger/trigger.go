// Package trigger selects, fires, cools down, and cascades chaos events
// from scored pressure.
package trigger

import (
	"context"
	"log"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/tremor/internal/chaos/errs"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
	"github.com/louisbranch/tremor/internal/chaos/score"
)

// Event is one fired chaos event. Immutable; referenced by cooldown
// bookkeeping and the recent-events buffer.
type Event struct {
	ID               string
	Type             EventType
	Region           string
	Severity         Severity
	TriggeredAt      time.Time
	Duration         time.Duration
	Score            float64
	PressureSnapshot map[pressure.Source]float64
	AffectedSystems  []string
	ParentID         string
	Forced           bool
}

// Active reports whether the event is still in effect at the instant.
func (e Event) Active(now time.Time) bool {
	return now.Before(e.TriggeredAt.Add(e.Duration))
}

// Dispatcher delivers a fired event to one affected subsystem. Delivery is
// best-effort per target.
type Dispatcher interface {
	Dispatch(ctx context.Context, system string, event Event) error
}

// WeightProvider supplies narrative multipliers for candidate selection.
type WeightProvider interface {
	EventWeights(eventTypes []string) map[string]float64
	GlobalModifier() float64
}

// Config tunes triggering behavior. Zero values fall back to defaults.
type Config struct {
	// Threshold is the minimum chaos score that can trigger events.
	Threshold float64

	// RegionCooldown blocks any trigger in a region after one fires.
	RegionCooldown time.Duration

	// MinEvalSpacing is the shortest allowed gap between evaluation
	// attempts for the same region.
	MinEvalSpacing time.Duration

	// MaxPerHour bounds events fired across all regions per hour.
	MaxPerHour int

	// MaxConcurrent bounds simultaneously active events.
	MaxConcurrent int

	// Stochastic gates each evaluation on the chaos level's base
	// probability with variance. When false, any score at or above the
	// threshold triggers.
	Stochastic bool

	// CascadeMinDelay and CascadeMaxDelay bound the random delay before
	// a cascading child event fires.
	CascadeMinDelay time.Duration
	CascadeMaxDelay time.Duration

	// CascadeScoreFactor scales the parent score for child events.
	CascadeScoreFactor float64
}

func (c Config) normalized() Config {
	if c.Threshold <= 0 {
		c.Threshold = 0.5
	}
	if c.RegionCooldown <= 0 {
		c.RegionCooldown = 6 * time.Hour
	}
	if c.MinEvalSpacing <= 0 {
		c.MinEvalSpacing = time.Minute
	}
	if c.MaxPerHour <= 0 {
		c.MaxPerHour = 3
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.CascadeMinDelay <= 0 {
		c.CascadeMinDelay = time.Hour
	}
	if c.CascadeMaxDelay <= c.CascadeMinDelay {
		c.CascadeMaxDelay = 8 * time.Hour
	}
	if c.CascadeScoreFactor <= 0 {
		c.CascadeScoreFactor = 0.7
	}
	return c
}

const recentBufferSize = 100

// Counters are lifetime trigger metrics.
type Counters struct {
	Evaluations       int64
	Triggered         int64
	CooldownBlocks    int64
	CascadesScheduled int64
	CascadesFired     int64
	DispatchErrors    int64
	SchedulingErrors  int64
}

// Engine owns cooldown state and cascade scheduling. Safe for concurrent
// use.
type Engine struct {
	cfg        Config
	dispatcher Dispatcher
	weights    WeightProvider
	sched      *Scheduler
	clock      func() time.Time
	logf       func(string, ...any)
	sink       func(Event)

	mu              sync.Mutex
	rng             *rand.Rand
	regionCooldowns map[string]time.Time
	eventCooldowns  map[string]time.Time
	lastEval        map[string]time.Time
	recent          []Event
	firedAt         []time.Time
	counters        Counters
}

// EngineOption adjusts engine construction.
type EngineOption func(*Engine)

// WithEngineClock injects the time source.
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRand injects a deterministic random source.
func WithRand(rng *rand.Rand) EngineOption {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// WithLogf overrides the log sink.
func WithLogf(logf func(string, ...any)) EngineOption {
	return func(e *Engine) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// WithEventSink registers a callback invoked once per fired event,
// including cascades.
func WithEventSink(sink func(Event)) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

// NewEngine builds a trigger engine. dispatcher and weights may be nil.
func NewEngine(ctx context.Context, cfg Config, dispatcher Dispatcher, weights WeightProvider, opts ...EngineOption) *Engine {
	e := &Engine{
		cfg:             cfg.normalized(),
		dispatcher:      dispatcher,
		weights:         weights,
		sched:           NewScheduler(ctx),
		clock:           time.Now,
		logf:            log.Printf,
		rng:             rand.New(rand.NewSource(1)),
		regionCooldowns: make(map[string]time.Time),
		eventCooldowns:  make(map[string]time.Time),
		lastEval:        make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate fires zero or more events for a region from one scoring result.
// A region under cooldown, below threshold, or rate-limited yields none.
func (e *Engine) Evaluate(ctx context.Context, result score.Result, region string) []Event {
	e.mu.Lock()
	now := e.clock()
	e.counters.Evaluations++

	if last, ok := e.lastEval[region]; ok && now.Sub(last) < e.cfg.MinEvalSpacing {
		e.mu.Unlock()
		return nil
	}
	e.lastEval[region] = now

	if result.Score < e.cfg.Threshold {
		e.mu.Unlock()
		return nil
	}
	if until, ok := e.regionCooldowns[region]; ok && now.Before(until) {
		e.counters.CooldownBlocks++
		e.mu.Unlock()
		return nil
	}
	if e.firedWithinHourLocked(now) >= e.cfg.MaxPerHour || e.activeCountLocked(now) >= e.cfg.MaxConcurrent {
		e.mu.Unlock()
		return nil
	}
	if e.cfg.Stochastic && !e.rollTriggerLocked(result.Level) {
		e.mu.Unlock()
		return nil
	}

	candidates := e.candidatesLocked(result, region, now)
	if len(candidates) == 0 {
		e.mu.Unlock()
		return nil
	}

	count := 1
	if result.Score > 0.9 && len(candidates) > 1 {
		count = 2
	}
	selected := e.selectLocked(candidates, count)

	events := make([]Event, 0, len(selected))
	for _, eventType := range selected {
		events = append(events, e.fireLocked(eventType, region, result.Score, result.SourceContributions, "", false, now))
	}
	e.regionCooldowns[region] = now.Add(e.cfg.RegionCooldown)
	e.mu.Unlock()

	for _, event := range events {
		e.dispatch(ctx, event)
		e.emit(event)
		e.scheduleCascades(event)
	}
	return events
}

// ForceTrigger fires an event bypassing threshold, probability, and
// cooldown gates. Regions beyond the severity's reach are dropped.
func (e *Engine) ForceTrigger(ctx context.Context, eventType EventType, severity Severity, regions []string) ([]Event, error) {
	tmpl, ok := TemplateFor(eventType)
	if !ok {
		return nil, errs.Validation("force trigger", "unknown event type %q", eventType)
	}
	if severity < SeverityMinor || severity > SeverityCatastrophic {
		return nil, errs.Validation("force trigger", "unknown severity %d", severity)
	}
	if len(regions) == 0 {
		return nil, errs.Validation("force trigger", "at least one region is required")
	}
	if limit := severity.MaxRegions(); len(regions) > limit {
		regions = regions[:limit]
	}

	e.mu.Lock()
	now := e.clock()
	events := make([]Event, 0, len(regions))
	for _, region := range regions {
		event := Event{
			ID:              uuid.NewString(),
			Type:            eventType,
			Region:          region,
			Severity:        severity,
			TriggeredAt:     now,
			Duration:        time.Duration(tmpl.DurationHours * float64(time.Hour)),
			AffectedSystems: slices.Clone(tmpl.AffectedSystems),
			Forced:          true,
		}
		e.recordLocked(event, now)
		events = append(events, event)
	}
	e.mu.Unlock()

	for _, event := range events {
		e.dispatch(ctx, event)
		e.emit(event)
	}
	return events, nil
}

// ActiveEvents lists events still in effect, newest first.
func (e *Engine) ActiveEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock()
	var out []Event
	for i := len(e.recent) - 1; i >= 0; i-- {
		if e.recent[i].Active(now) {
			out = append(out, e.recent[i])
		}
	}
	return out
}

// RecentEvents returns a copy of the ring buffer, oldest first.
func (e *Engine) RecentEvents() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.recent)
}

// PendingCascades counts scheduled child events not yet fired.
func (e *Engine) PendingCascades() int {
	return e.sched.Pending()
}

// Counters snapshots lifetime metrics.
func (e *Engine) Counters() Counters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.counters
}

// Shutdown cancels all pending cascades and waits for them to drain.
func (e *Engine) Shutdown() {
	e.sched.Shutdown()
}

// candidatesLocked filters recommended events to those off cooldown.
func (e *Engine) candidatesLocked(result score.Result, region string, now time.Time) []EventType {
	var out []EventType
	for _, eventType := range RecommendedEvents(result.DominantSource, result.Score) {
		if until, ok := e.eventCooldowns[cooldownKey(eventType, region)]; ok && now.Before(until) {
			e.counters.CooldownBlocks++
			continue
		}
		out = append(out, eventType)
	}
	return out
}

// selectLocked picks up to count candidates without replacement, weighted
// by narrative multipliers.
func (e *Engine) selectLocked(candidates []EventType, count int) []EventType {
	weights := make(map[string]float64, len(candidates))
	if e.weights != nil {
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = string(c)
		}
		weights = e.weights.EventWeights(names)
	}

	pool := slices.Clone(candidates)
	var out []EventType
	for len(out) < count && len(pool) > 0 {
		total := 0.0
		for _, c := range pool {
			total += weightOf(weights, c)
		}
		roll := e.rng.Float64() * total
		idx := len(pool) - 1
		acc := 0.0
		for i, c := range pool {
			acc += weightOf(weights, c)
			if roll < acc {
				idx = i
				break
			}
		}
		out = append(out, pool[idx])
		pool = slices.Delete(pool, idx, idx+1)
	}
	return out
}

// fireLocked builds an event and registers its cooldowns.
func (e *Engine) fireLocked(eventType EventType, region string, chaosScore float64, snapshot map[pressure.Source]float64, parentID string, forced bool, now time.Time) Event {
	tmpl, _ := TemplateFor(eventType)
	severity := SeverityFor(chaosScore)
	event := Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		Region:           region,
		Severity:         severity,
		TriggeredAt:      now,
		Duration:         time.Duration(tmpl.DurationHours * float64(time.Hour)),
		Score:            chaosScore,
		PressureSnapshot: cloneSnapshot(snapshot),
		AffectedSystems:  slices.Clone(tmpl.AffectedSystems),
		ParentID:         parentID,
		Forced:           forced,
	}
	cooldown := time.Duration(tmpl.CooldownHours * severity.cooldownMultiplier() * float64(time.Hour))
	e.eventCooldowns[cooldownKey(eventType, region)] = now.Add(cooldown)
	e.recordLocked(event, now)
	return event
}

func (e *Engine) recordLocked(event Event, now time.Time) {
	e.recent = append(e.recent, event)
	if len(e.recent) > recentBufferSize {
		e.recent = e.recent[len(e.recent)-recentBufferSize:]
	}
	e.firedAt = append(e.firedAt, now)
	e.counters.Triggered++
}

// dispatch delivers the event to each affected subsystem. One target's
// failure never blocks the others.
func (e *Engine) dispatch(ctx context.Context, event Event) {
	if e.dispatcher == nil {
		return
	}
	for _, system := range event.AffectedSystems {
		if err := e.dispatcher.Dispatch(ctx, system, event); err != nil {
			e.mu.Lock()
			e.counters.DispatchErrors++
			e.mu.Unlock()
			e.logf("dispatch %s to %s: %v", event.Type, system, errs.Dispatch(system, err))
		}
	}
}

func (e *Engine) emit(event Event) {
	if e.sink != nil {
		e.sink(event)
	}
}

// scheduleCascades queues each configured child event after an independent
// random delay at a reduced score. Child events do not cascade further.
func (e *Engine) scheduleCascades(parent Event) {
	tmpl, ok := TemplateFor(parent.Type)
	if !ok || len(tmpl.CascadeChildren) == 0 || tmpl.CascadeProbability <= 0 {
		return
	}
	childScore := parent.Score * e.cfg.CascadeScoreFactor

	for _, childType := range tmpl.CascadeChildren {
		e.mu.Lock()
		delayRange := e.cfg.CascadeMaxDelay - e.cfg.CascadeMinDelay
		delay := e.cfg.CascadeMinDelay + time.Duration(e.rng.Float64()*float64(delayRange))
		probability := tmpl.CascadeProbability * (1 + (e.rng.Float64()*2-1)*0.2)
		e.mu.Unlock()

		child := childType
		err := e.sched.After(string(child), delay, func(ctx context.Context) {
			e.fireCascade(ctx, child, parent, childScore, probability)
		})
		e.mu.Lock()
		if err != nil {
			e.counters.SchedulingErrors++
			e.logf("schedule cascade %s after %s: %v", child, parent.Type, err)
		} else {
			e.counters.CascadesScheduled++
		}
		e.mu.Unlock()
	}
}

func (e *Engine) fireCascade(ctx context.Context, childType EventType, parent Event, childScore, probability float64) {
	e.mu.Lock()
	now := e.clock()
	if e.rng.Float64() >= probability {
		e.mu.Unlock()
		return
	}
	if until, ok := e.eventCooldowns[cooldownKey(childType, parent.Region)]; ok && now.Before(until) {
		e.counters.CooldownBlocks++
		e.mu.Unlock()
		return
	}
	event := e.fireLocked(childType, parent.Region, childScore, parent.PressureSnapshot, parent.ID, false, now)
	e.counters.CascadesFired++
	e.mu.Unlock()

	e.dispatch(ctx, event)
	e.emit(event)
}

func (e *Engine) firedWithinHourLocked(now time.Time) int {
	cutoff := now.Add(-time.Hour)
	kept := e.firedAt[:0]
	for _, at := range e.firedAt {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	e.firedAt = kept
	return len(kept)
}

func (e *Engine) activeCountLocked(now time.Time) int {
	count := 0
	for _, event := range e.recent {
		if event.Active(now) {
			count++
		}
	}
	return count
}

// rollTriggerLocked gates on the level's base probability with a ±10%
// variance and the narrative global modifier.
func (e *Engine) rollTriggerLocked(level score.Level) bool {
	p := score.BaseTriggerProbability(level)
	p *= 1 + (e.rng.Float64()*2-1)*0.1
	if e.weights != nil {
		p *= e.weights.GlobalModifier()
	}
	if p <= 0 {
		return false
	}
	if p > 1 {
		p = 1
	}
	return e.rng.Float64() < p
}

func cooldownKey(t EventType, region string) string {
	return string(t) + "|" + region
}

func weightOf(weights map[string]float64, t EventType) float64 {
	if w, ok := weights[string(t)]; ok && w > 0 {
		return w
	}
	return 1
}

func cloneSnapshot(snapshot map[pressure.Source]float64) map[pressure.Source]float64 {
	if snapshot == nil {
		return nil
	}
	out := make(map[pressure.Source]float64, len(snapshot))
	for k, v := range snapshot {
		out[k] = v
	}
	return out
}
