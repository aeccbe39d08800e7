package trigger

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
	"github.com/louisbranch/tremor/internal/chaos/score"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, system string, _ Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, system)
	if err, ok := d.failFor[system]; ok {
		return err
	}
	return nil
}

func (d *fakeDispatcher) systems() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func resultWith(chaosScore float64, dominant pressure.Source) score.Result {
	return score.Result{
		Score:          chaosScore,
		Level:          score.LevelFor(chaosScore),
		DominantSource: dominant,
		SourceContributions: map[pressure.Source]float64{
			dominant: 1,
		},
	}
}

func newTestEngine(t *testing.T, cfg Config, dispatcher Dispatcher) (*Engine, *time.Time) {
	t.Helper()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(context.Background(), cfg, dispatcher, nil,
		WithEngineClock(func() time.Time { return now }),
		WithRand(rand.New(rand.NewSource(7))),
		WithLogf(t.Logf),
	)
	t.Cleanup(e.Shutdown)
	return e, &now
}

func TestEvaluateBelowThresholdFiresNothing(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	events := e.Evaluate(context.Background(), resultWith(0.4, pressure.SourcePolitical), "valeria")
	if len(events) != 0 {
		t.Fatalf("len(events) = %d, want 0 below threshold", len(events))
	}
}

func TestEvaluateFiresOneEventAtModerateScore(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	events := e.Evaluate(context.Background(), resultWith(0.75, pressure.SourceEconomic), "valeria")
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1 for score <= 0.9", len(events))
	}
	ev := events[0]
	if ev.Region != "valeria" {
		t.Fatalf("region = %q, want valeria", ev.Region)
	}
	if ev.Severity != SeverityMajor {
		t.Fatalf("severity = %v, want major for 0.75", ev.Severity)
	}
	if ev.ID == "" {
		t.Fatal("expected event id")
	}
}

func TestEvaluateFiresUpToTwoEventsAtExtremeScore(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	events := e.Evaluate(context.Background(), resultWith(0.95, pressure.SourcePolitical), "valeria")
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2 for score > 0.9", len(events))
	}
	if events[0].Type == events[1].Type {
		t.Fatalf("selected %v twice, want without replacement", events[0].Type)
	}
}

// A second evaluation inside the spacing window must yield nothing even
// when the score stays above threshold.
func TestEvaluateEnforcesSpacingBetweenAttempts(t *testing.T) {
	e, now := newTestEngine(t, Config{}, nil)

	first := e.Evaluate(context.Background(), resultWith(0.95, pressure.SourcePolitical), "valeria")
	if len(first) == 0 {
		t.Fatal("expected first evaluation to fire")
	}

	*now = now.Add(30 * time.Second)
	second := e.Evaluate(context.Background(), resultWith(0.95, pressure.SourcePolitical), "valeria")
	if len(second) != 0 {
		t.Fatalf("len(second) = %d, want 0 within spacing window", len(second))
	}
}

func TestEvaluateEnforcesRegionCooldown(t *testing.T) {
	e, now := newTestEngine(t, Config{}, nil)

	if events := e.Evaluate(context.Background(), resultWith(0.75, pressure.SourceEconomic), "valeria"); len(events) == 0 {
		t.Fatal("expected first evaluation to fire")
	}

	// Past the spacing window but still inside the 6h region cooldown.
	*now = now.Add(2 * time.Hour)
	if events := e.Evaluate(context.Background(), resultWith(0.75, pressure.SourceEconomic), "valeria"); len(events) != 0 {
		t.Fatalf("len(events) = %d, want 0 inside region cooldown", len(events))
	}

	counters := e.Counters()
	if counters.CooldownBlocks == 0 {
		t.Fatal("expected cooldown block to be counted")
	}
}

func TestEventCooldownBlocksSameTypeInRegion(t *testing.T) {
	e, now := newTestEngine(t, Config{RegionCooldown: time.Minute}, nil)

	first := e.Evaluate(context.Background(), resultWith(0.55, pressure.SourceEnvironmental), "coast")
	if len(first) != 1 || first[0].Type != EventNaturalDisaster {
		t.Fatalf("first = %+v, want one natural disaster", first)
	}

	// Region cooldown has lapsed but the type cooldown (24h x 1.5) has not.
	*now = now.Add(3 * time.Hour)
	second := e.Evaluate(context.Background(), resultWith(0.55, pressure.SourceEnvironmental), "coast")
	for _, ev := range second {
		if ev.Type == EventNaturalDisaster {
			t.Fatalf("natural disaster fired again inside its cooldown")
		}
	}

	otherRegion := e.Evaluate(context.Background(), resultWith(0.55, pressure.SourceEnvironmental), "inland")
	if len(otherRegion) == 0 {
		t.Fatal("cooldown must be scoped per region")
	}
}

func TestDispatchIsBestEffortPerSystem(t *testing.T) {
	dispatcher := &fakeDispatcher{failFor: map[string]error{"economy": errors.New("unavailable")}}
	e, _ := newTestEngine(t, Config{}, dispatcher)

	events := e.Evaluate(context.Background(), resultWith(0.55, pressure.SourceEconomic), "valeria")
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1 despite dispatch failure", len(events))
	}

	systems := dispatcher.systems()
	if len(systems) != len(events[0].AffectedSystems) {
		t.Fatalf("dispatched to %v, want all of %v", systems, events[0].AffectedSystems)
	}
	if e.Counters().DispatchErrors != 1 {
		t.Fatalf("dispatch errors = %d, want 1", e.Counters().DispatchErrors)
	}
}

func TestEvaluateSchedulesCascades(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	// A 0.55 diplomatic result recommends exactly one candidate, which
	// carries one cascade child.
	events := e.Evaluate(context.Background(), resultWith(0.55, pressure.SourceDiplomatic), "valeria")
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].Type != EventDiplomaticCrisis {
		t.Fatalf("type = %v, want diplomatic crisis", events[0].Type)
	}
	if got := e.PendingCascades(); got != 1 {
		t.Fatalf("pending cascades = %d, want 1 child scheduled", got)
	}

	e.Shutdown()
	if got := e.PendingCascades(); got != 0 {
		t.Fatalf("pending cascades = %d, want 0 after shutdown", got)
	}
	if e.Counters().CascadesFired != 0 {
		t.Fatal("expected no cascade to fire before its delay")
	}
}

func TestCascadeFiresChildAtReducedScore(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	parent := Event{
		ID:     "parent",
		Type:   EventEconomicCrisis,
		Region: "valeria",
		Score:  0.9,
		PressureSnapshot: map[pressure.Source]float64{
			pressure.SourceEconomic: 0.9,
		},
	}
	e.fireCascade(context.Background(), EventCivilUnrest, parent, 0.63, 1.0)

	recent := e.RecentEvents()
	if len(recent) != 1 {
		t.Fatalf("len(recent) = %d, want 1", len(recent))
	}
	child := recent[0]
	if child.Type != EventCivilUnrest {
		t.Fatalf("type = %v, want civil unrest", child.Type)
	}
	if child.Score != 0.63 {
		t.Fatalf("score = %v, want parent score scaled to 0.63", child.Score)
	}
	if child.ParentID != "parent" {
		t.Fatalf("parent id = %q, want %q", child.ParentID, "parent")
	}
	if e.Counters().CascadesFired != 1 {
		t.Fatalf("cascades fired = %d, want 1", e.Counters().CascadesFired)
	}
}

func TestCascadeSkipsWhenProbabilityFails(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	parent := Event{ID: "parent", Type: EventEconomicCrisis, Region: "valeria", Score: 0.9}
	e.fireCascade(context.Background(), EventCivilUnrest, parent, 0.63, 0.0)

	if len(e.RecentEvents()) != 0 {
		t.Fatal("expected no child event at zero probability")
	}
}

func TestForceTriggerValidatesInput(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	if _, err := e.ForceTrigger(context.Background(), "comet", SeverityMinor, []string{"valeria"}); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
	if _, err := e.ForceTrigger(context.Background(), EventCivilUnrest, Severity(9), []string{"valeria"}); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for unknown severity, got %v", err)
	}
	if _, err := e.ForceTrigger(context.Background(), EventCivilUnrest, SeverityMinor, nil); !errs.IsValidation(err) {
		t.Fatalf("expected validation error for empty regions, got %v", err)
	}
}

func TestForceTriggerCapsRegionsBySeverity(t *testing.T) {
	e, _ := newTestEngine(t, Config{}, nil)

	events, err := e.ForceTrigger(context.Background(), EventCivilUnrest, SeverityMinor, []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("force trigger: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want minor severity capped to 1 region", len(events))
	}
	if !events[0].Forced {
		t.Fatal("expected forced flag")
	}
}

func TestActiveEventsExcludeExpired(t *testing.T) {
	e, now := newTestEngine(t, Config{}, nil)

	if _, err := e.ForceTrigger(context.Background(), EventCivilUnrest, SeverityModerate, []string{"valeria"}); err != nil {
		t.Fatalf("force trigger: %v", err)
	}
	if got := len(e.ActiveEvents()); got != 1 {
		t.Fatalf("len(active) = %d, want 1", got)
	}

	// Civil unrest lasts 48h.
	*now = now.Add(49 * time.Hour)
	if got := len(e.ActiveEvents()); got != 0 {
		t.Fatalf("len(active) = %d, want 0 after duration", got)
	}
}

func TestSeverityForMapsScores(t *testing.T) {
	cases := []struct {
		score float64
		want  Severity
	}{
		{0.1, SeverityMinor},
		{0.3, SeverityModerate},
		{0.5, SeverityMajor},
		{0.79, SeverityMajor},
		{0.8, SeverityCatastrophic},
	}
	for _, tc := range cases {
		if got := SeverityFor(tc.score); got != tc.want {
			t.Fatalf("SeverityFor(%v) = %v, want %v", tc.score, got, tc.want)
		}
	}
}

func TestRecommendedEventsDeduplicates(t *testing.T) {
	events := RecommendedEvents(pressure.SourcePolitical, 0.95)
	seen := make(map[EventType]bool)
	for _, ev := range events {
		if seen[ev] {
			t.Fatalf("event %v recommended twice", ev)
		}
		seen[ev] = true
	}
	if !seen[EventPoliticalUpheaval] || !seen[EventWarOutbreak] || !seen[EventCivilUnrest] {
		t.Fatalf("events = %v, want dominant and severity-tier nominations", events)
	}
}

func TestEventSinkSeesEveryFiredEvent(t *testing.T) {
	var mu sync.Mutex
	var seen []Event
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewEngine(context.Background(), Config{}, nil, nil,
		WithEngineClock(func() time.Time { return now }),
		WithRand(rand.New(rand.NewSource(7))),
		WithLogf(t.Logf),
		WithEventSink(func(ev Event) {
			mu.Lock()
			seen = append(seen, ev)
			mu.Unlock()
		}),
	)
	t.Cleanup(e.Shutdown)

	fired := e.Evaluate(context.Background(), resultWith(0.75, pressure.SourceSocial), "valeria")
	mu.Lock()
	got := len(seen)
	mu.Unlock()
	if got != len(fired) {
		t.Fatalf("sink saw %d events, want %d", got, len(fired))
	}
}
