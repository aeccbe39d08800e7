package pressure

import (
	"testing"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRecordRejectsUnknownSource(t *testing.T) {
	store := NewStore()
	err := store.Record(Reading{Source: "astrology", Value: 0.5})
	if err == nil {
		t.Fatal("expected error for unknown source")
	}
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRecordClampsAndDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(fixedClock(now)))

	if err := store.Record(Reading{Source: SourceEconomic, Value: 1.7, Region: "valeria"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	readings := store.Readings("valeria")
	if len(readings) != 1 {
		t.Fatalf("len(readings) = %d, want 1", len(readings))
	}
	r := readings[0]
	if r.Value != 1.0 {
		t.Fatalf("value = %v, want clamped 1.0", r.Value)
	}
	if r.Confidence != 1.0 {
		t.Fatalf("confidence = %v, want default 1.0", r.Confidence)
	}
	if !r.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want clock time %v", r.Timestamp, now)
	}
}

func TestPruneDropsOldReadings(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(fixedClock(now)))

	old := Reading{Source: SourcePolitical, Value: 0.4, Region: "valeria", Timestamp: now.Add(-25 * time.Hour)}
	fresh := Reading{Source: SourcePolitical, Value: 0.6, Region: "valeria", Timestamp: now.Add(-time.Hour)}
	if err := store.Record(old); err != nil {
		t.Fatalf("record old: %v", err)
	}
	if err := store.Record(fresh); err != nil {
		t.Fatalf("record fresh: %v", err)
	}

	if removed := store.Prune(); removed != 1 {
		t.Fatalf("Prune() = %d, want 1", removed)
	}
	readings := store.Readings("valeria")
	if len(readings) != 1 || readings[0].Value != 0.6 {
		t.Fatalf("expected only the fresh reading, got %+v", readings)
	}
}

func TestPruneRemovesEmptyRegions(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(fixedClock(now)))
	stale := Reading{Source: SourceSocial, Value: 0.3, Region: "ghost", Timestamp: now.Add(-48 * time.Hour)}
	if err := store.Record(stale); err != nil {
		t.Fatalf("record: %v", err)
	}

	store.Prune()

	if regions := store.Regions(); len(regions) != 0 {
		t.Fatalf("Regions() = %v, want empty", regions)
	}
}

func TestGlobalHistoryIsBounded(t *testing.T) {
	store := NewStore()
	for i := 0; i < 150; i++ {
		store.RecordGlobalScore(float64(i) / 150)
	}
	history := store.GlobalHistory()
	if len(history) != defaultMaxHistoryLen {
		t.Fatalf("len(history) = %d, want %d", len(history), defaultMaxHistoryLen)
	}
	if history[len(history)-1] != 149.0/150 {
		t.Fatalf("latest = %v, want most recent score retained", history[len(history)-1])
	}
}

func TestSetGlobalFactorsClamps(t *testing.T) {
	store := NewStore()
	store.SetGlobalFactors(GlobalFactors{EconomicHealth: 1.4, InternationalStability: -0.2, ClimateStability: 0.5, ResourceAbundance: 0.9})
	f := store.GlobalFactors()
	if f.EconomicHealth != 1.0 {
		t.Fatalf("economic health = %v, want clamped 1.0", f.EconomicHealth)
	}
	if f.InternationalStability != 0.0 {
		t.Fatalf("international stability = %v, want clamped 0.0", f.InternationalStability)
	}
}

func TestMaxReadingsPerRegion(t *testing.T) {
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	store := NewStore(WithClock(fixedClock(now)))
	for i := 0; i < defaultMaxPerRegion+20; i++ {
		r := Reading{Source: SourceMilitary, Value: 0.5, Region: "border", Timestamp: now.Add(time.Duration(i) * time.Minute)}
		if err := store.Record(r); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}
	if got := len(store.Readings("border")); got != defaultMaxPerRegion {
		t.Fatalf("len(readings) = %d, want %d", got, defaultMaxPerRegion)
	}
}
