// Package engine runs the chaos orchestration loop: collect pressure,
// aggregate, score, trigger events, escalate warnings, clean up.
package engine

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/collect"
	"github.com/louisbranch/tremor/internal/chaos/mitigation"
	"github.com/louisbranch/tremor/internal/chaos/narrative"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
	"github.com/louisbranch/tremor/internal/chaos/score"
	"github.com/louisbranch/tremor/internal/chaos/storage"
	"github.com/louisbranch/tremor/internal/chaos/trigger"
	"github.com/louisbranch/tremor/internal/chaos/warning"
	"github.com/louisbranch/tremor/internal/random"
)

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	// TickInterval is the period of the main loop.
	TickInterval time.Duration

	// RegionTypes maps region names to their strategic profile. Unknown
	// regions score as standard.
	RegionTypes map[string]score.RegionType

	// Score and Trigger pass through to the scoring and trigger layers.
	Score   score.Config
	Trigger trigger.Config

	// CollectTimeout and CollectConcurrency bound the collector fan-out.
	CollectTimeout     time.Duration
	CollectConcurrency int
}

func (c Config) normalized() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 15 * time.Second
	}
	return c
}

// Health is the operational snapshot served to admin surfaces.
type Health struct {
	Running         bool
	Paused          bool
	LastTick        time.Time
	Regions         int
	ActiveEvents    int
	ActiveWarnings  int
	PendingCascades int
}

// Metrics aggregates lifetime counters across all components.
type Metrics struct {
	Ticks              int64
	CollectionErrors   int64
	ReadingsRecorded   int64
	Trigger            trigger.Counters
	Warnings           warning.Counters
	MitigationsApplied int64
	MitigationsExpired int64
	Narrative          narrative.Status
}

// Engine owns every chaos component and drives them from one loop. Safe
// for concurrent use; the external interface methods may be called while
// the loop runs.
type Engine struct {
	cfg        Config
	store      *pressure.Store
	agg        *pressure.Aggregator
	registry   *mitigation.Registry
	scorer     *score.Scorer
	director   *narrative.Director
	trigger    *trigger.Engine
	escalator  *warning.Escalator
	gatherer   *collect.Gatherer
	collectors []collect.Collector
	history    storage.HistoryStore
	dispatcher trigger.Dispatcher
	clock      func() time.Time
	logf       func(string, ...any)
	seed       int64

	mu               sync.Mutex
	running          bool
	paused           bool
	lastTick         time.Time
	lastResult       score.Result
	ticks            int64
	collectionErrors int64
	readingsRecorded int64
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithCollectors registers the pressure collectors.
func WithCollectors(collectors ...collect.Collector) Option {
	return func(e *Engine) {
		e.collectors = append(e.collectors, collectors...)
	}
}

// WithHistory wires a durable history store. May be nil.
func WithHistory(history storage.HistoryStore) Option {
	return func(e *Engine) {
		e.history = history
	}
}

// WithDispatcher wires the event dispatch contract. May be nil.
func WithDispatcher(dispatcher trigger.Dispatcher) Option {
	return func(e *Engine) {
		e.dispatcher = dispatcher
	}
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogf overrides the log sink.
func WithLogf(logf func(string, ...any)) Option {
	return func(e *Engine) {
		if logf != nil {
			e.logf = logf
		}
	}
}

// WithSeed pins the random sources for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// New builds an engine. The context bounds cascade scheduling: cancelling
// it cancels every pending cascade.
func New(ctx context.Context, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:   cfg.normalized(),
		clock: time.Now,
		logf:  log.Printf,
		seed:  random.NewRand().Int63(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.store = pressure.NewStore(pressure.WithClock(e.clock))
	e.agg = pressure.NewAggregator(e.store, pressure.WithAggregatorClock(e.clock))
	e.registry = mitigation.NewRegistry(mitigation.WithRegistryClock(e.clock))
	e.scorer = score.New(e.cfg.Score, e.registry, score.WithScorerClock(e.clock))
	e.director = narrative.NewDirector(narrative.WithDirectorClock(e.clock))
	e.escalator = warning.NewEscalator(
		warning.WithEscalatorClock(e.clock),
		warning.WithEscalatorRand(rand.New(rand.NewSource(e.seed))),
	)
	e.gatherer = collect.NewGatherer(
		collect.WithTimeout(e.cfg.CollectTimeout),
		collect.WithConcurrency(e.cfg.CollectConcurrency),
	)
	e.trigger = trigger.NewEngine(ctx, e.cfg.Trigger, e.dispatcher, e.director,
		trigger.WithEngineClock(e.clock),
		trigger.WithRand(rand.New(rand.NewSource(e.seed+1))),
		trigger.WithLogf(e.logf),
		trigger.WithEventSink(e.persistEvent),
	)
	return e
}

// Run drives the loop until the context is cancelled, then cancels all
// pending cascades and drains them.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.trigger.Shutdown()
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.logf("chaos engine started interval=%s regions=%d collectors=%d",
		e.cfg.TickInterval, len(e.cfg.RegionTypes), len(e.collectors))

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.logf("chaos engine stopping: %v", ctx.Err())
			return nil
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick performs one full pass. Collection failures are logged and skipped;
// every downstream step works from whatever arrived.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	if e.paused {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	now := e.clock()
	results := e.gatherer.Gather(ctx, e.collectors)
	recorded := int64(0)
	errored := int64(0)
	for _, result := range results {
		if result.Err != nil {
			errored++
			e.logf("collect %s: %v", result.Collector, result.Err)
		}
	}
	for _, reading := range collect.Readings(results, now) {
		if err := e.agg.Record(reading); err != nil {
			e.logf("record %s/%s: %v", reading.Region, reading.Source, err)
			continue
		}
		recorded++
	}
	e.store.Prune()

	snap := e.agg.Snapshot()
	result := e.scorer.Score(snap, e.cfg.RegionTypes)
	e.store.RecordGlobalScore(result.Score)

	regions := make([]string, 0, len(snap.Regions))
	for region := range snap.Regions {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	for _, region := range regions {
		regionScore := result.RegionalScores[region]
		regionResult := result
		regionResult.Score = regionScore
		regionResult.Level = score.LevelFor(regionScore)

		e.trigger.Evaluate(ctx, regionResult, region)
		for _, w := range e.escalator.CheckAndTrigger(region, regionScore, snap.Regions[region].Breakdown) {
			e.persistWarning(ctx, w)
		}
		e.persistScore(ctx, region, regionScore)
	}
	for _, w := range e.escalator.Tick() {
		e.persistWarning(ctx, w)
	}
	e.director.Retune()

	e.mu.Lock()
	e.lastTick = now
	e.lastResult = result
	e.ticks++
	e.collectionErrors += errored
	e.readingsRecorded += recorded
	e.mu.Unlock()
}

// Pause suspends loop work without stopping the loop.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = true
}

// Resume lifts a pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = false
}

// CurrentState returns the most recent scoring result.
func (e *Engine) CurrentState() score.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastResult
}

// RegionScore returns a region's latest blended score and level.
func (e *Engine) RegionScore(region string) (float64, score.Level, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.lastResult.RegionalScores[region]
	if !ok {
		return 0, score.LevelDormant, false
	}
	return v, score.LevelFor(v), true
}

// ActiveEvents lists events still in effect.
func (e *Engine) ActiveEvents() []trigger.Event {
	return e.trigger.ActiveEvents()
}

// PressureSummary reports per-region aggregated metrics.
func (e *Engine) PressureSummary() map[string]pressure.Metrics {
	return e.agg.Summary()
}

// ApplyMitigation registers a mitigation factor against future scoring.
func (e *Engine) ApplyMitigation(params mitigation.ApplyParams) (mitigation.Factor, error) {
	factor, err := e.registry.Apply(params)
	if err != nil {
		return mitigation.Factor{}, err
	}
	e.logf("mitigation applied type=%s effectiveness=%.2f source=%s",
		factor.Type, factor.Effectiveness, factor.SourceID)
	e.persistMitigation(factor)
	return factor, nil
}

// ForceTrigger fires an event bypassing all gates.
func (e *Engine) ForceTrigger(ctx context.Context, eventType trigger.EventType, severity trigger.Severity, regions []string) ([]trigger.Event, error) {
	return e.trigger.ForceTrigger(ctx, eventType, severity, regions)
}

// RegionWarnings summarizes a region's active warnings.
func (e *Engine) RegionWarnings(region string) warning.Summary {
	return e.escalator.RegionWarnings(region)
}

// ClearWarnings removes a region's warnings at one phase.
func (e *Engine) ClearWarnings(region string, phase warning.Phase) int {
	return e.escalator.Clear(region, phase)
}

// AddTheme registers a narrative theme with the director.
func (e *Engine) AddTheme(theme narrative.Theme) error {
	return e.director.AddTheme(theme)
}

// AddStoryBeat registers a narrative story beat with the director.
func (e *Engine) AddStoryBeat(beat narrative.StoryBeat) error {
	return e.director.AddBeat(beat)
}

// Health reports the operational snapshot.
func (e *Engine) Health() Health {
	e.mu.Lock()
	running, paused, lastTick := e.running, e.paused, e.lastTick
	regions := len(e.lastResult.RegionalScores)
	e.mu.Unlock()

	return Health{
		Running:         running,
		Paused:          paused,
		LastTick:        lastTick,
		Regions:         regions,
		ActiveEvents:    len(e.trigger.ActiveEvents()),
		ActiveWarnings:  e.escalator.ActiveCount(),
		PendingCascades: e.trigger.PendingCascades(),
	}
}

// Metrics aggregates lifetime counters from every component.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	ticks, errored, recorded := e.ticks, e.collectionErrors, e.readingsRecorded
	e.mu.Unlock()

	applied, expired := e.registry.Counters()
	return Metrics{
		Ticks:              ticks,
		CollectionErrors:   errored,
		ReadingsRecorded:   recorded,
		Trigger:            e.trigger.Counters(),
		Warnings:           e.escalator.Counters(),
		MitigationsApplied: applied,
		MitigationsExpired: expired,
		Narrative:          e.director.Status(),
	}
}

// persistEvent is the trigger sink; it writes fired events to the history
// store. Persistence failures never block triggering.
func (e *Engine) persistEvent(event trigger.Event) {
	if e.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := storage.EventRecord{
		EventID:     event.ID,
		EventType:   string(event.Type),
		Region:      event.Region,
		Severity:    event.Severity.String(),
		Score:       event.Score,
		ParentID:    event.ParentID,
		Forced:      event.Forced,
		TriggeredAt: event.TriggeredAt,
		ExpiresAt:   event.TriggeredAt.Add(event.Duration),
	}
	if err := e.history.RecordEvent(ctx, record); err != nil {
		e.logf("persist event %s: %v", event.ID, err)
	}
}

// persistWarning writes a warning phase transition to the history store.
func (e *Engine) persistWarning(ctx context.Context, w warning.Warning) {
	if e.history == nil {
		return
	}
	record := storage.WarningRecord{
		WarningID:   w.ID,
		Region:      w.Region,
		EventType:   string(w.EventType),
		Phase:       w.Phase.String(),
		Severity:    w.Severity,
		TriggeredAt: w.TriggeredAt,
		ExpiresAt:   w.ExpiresAt,
	}
	if err := e.history.RecordWarning(ctx, record); err != nil {
		e.logf("persist warning %s: %v", w.ID, err)
	}
}

// persistMitigation writes an applied factor to the history store.
// Persistence failures never block the mitigation itself.
func (e *Engine) persistMitigation(factor mitigation.Factor) {
	if e.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record := storage.MitigationRecord{
		FactorID:      factor.ID,
		Type:          string(factor.Type),
		Effectiveness: factor.Effectiveness,
		SourceID:      factor.SourceID,
		AppliedAt:     factor.AppliedAt,
		ExpiresAt:     factor.ExpiresAt,
	}
	if err := e.history.RecordMitigation(ctx, record); err != nil {
		e.logf("persist mitigation %s: %v", factor.ID, err)
	}
}

func (e *Engine) persistScore(ctx context.Context, region string, value float64) {
	if e.history == nil {
		return
	}
	record := storage.ScoreRecord{
		Region:      region,
		Score:       value,
		Level:       score.LevelFor(value).String(),
		GeneratedAt: e.clock(),
	}
	if err := e.history.RecordScore(ctx, record); err != nil {
		e.logf("persist score %s: %v", region, err)
	}
}
