package mitigation

import (
	"math"
	"testing"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/errs"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
)

func newTestRegistry(t *testing.T, at time.Time) (*Registry, *time.Time) {
	t.Helper()
	now := at
	reg := NewRegistry(WithRegistryClock(func() time.Time { return now }))
	return reg, &now
}

func TestApplyRejectsInvalidParams(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	cases := []struct {
		name   string
		params ApplyParams
	}{
		{"unknown type", ApplyParams{Type: "prayer", Effectiveness: 0.5, DurationHours: 24}},
		{"zero effectiveness", ApplyParams{Type: TypePublicFestival, Effectiveness: 0, DurationHours: 24}},
		{"effectiveness above one", ApplyParams{Type: TypePublicFestival, Effectiveness: 1.2, DurationHours: 24}},
		{"non-positive duration", ApplyParams{Type: TypePublicFestival, Effectiveness: 0.2, DurationHours: 0}},
		{"unknown source", ApplyParams{Type: TypePublicFestival, Effectiveness: 0.2, DurationHours: 24, AffectedSources: []pressure.Source{"astrology"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := reg.Apply(tc.params)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errs.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if got := len(reg.Active()); got != 0 {
				t.Fatalf("len(active) = %d, want no partial state", got)
			}
		})
	}
}

func TestApplyClampsToTypeMaximum(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	f, err := reg.Apply(ApplyParams{Type: TypePublicFestival, Effectiveness: 0.9, DurationHours: 24, SourceID: "crown"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if f.Effectiveness != 0.3 {
		t.Fatalf("effectiveness = %v, want clamped to 0.3", f.Effectiveness)
	}
}

func TestApplyScalesDurationAndDefaultsSources(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, _ := newTestRegistry(t, start)

	f, err := reg.Apply(ApplyParams{Type: TypeMilitaryDeterrent, Effectiveness: 0.4, DurationHours: 100, SourceID: "crown"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// Military deterrents last twice the requested duration.
	if want := start.Add(200 * time.Hour); !f.ExpiresAt.Equal(want) {
		t.Fatalf("expires at = %v, want %v", f.ExpiresAt, want)
	}
	if len(f.AffectedSources) != 2 {
		t.Fatalf("affected sources = %v, want type defaults", f.AffectedSources)
	}
}

func TestEffectivePressureReducesAffectedSources(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	_, err := reg.Apply(ApplyParams{
		Type:            TypeDiplomaticTreaty,
		Effectiveness:   0.5,
		DurationHours:   720,
		SourceID:        "embassy",
		AffectedSources: []pressure.Source{pressure.SourcePolitical},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	out := reg.EffectivePressure(map[pressure.Source]float64{
		pressure.SourcePolitical: 0.8,
		pressure.SourceEconomic:  0.6,
	}, "valeria")

	if math.Abs(out[pressure.SourcePolitical]-0.4) > 1e-9 {
		t.Fatalf("political = %v, want 0.4", out[pressure.SourcePolitical])
	}
	if out[pressure.SourceEconomic] != 0.6 {
		t.Fatalf("economic = %v, want untouched 0.6", out[pressure.SourceEconomic])
	}
}

func TestEffectivePressureNeverGoesNegative(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		_, err := reg.Apply(ApplyParams{
			Type:            TypeDiplomaticTreaty,
			Effectiveness:   0.5,
			DurationHours:   720,
			SourceID:        "embassy",
			AffectedSources: []pressure.Source{pressure.SourceDiplomatic},
		})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	out := reg.EffectivePressure(map[pressure.Source]float64{pressure.SourceDiplomatic: 0.1}, "")
	if out[pressure.SourceDiplomatic] < 0 {
		t.Fatalf("diplomatic = %v, want >= 0", out[pressure.SourceDiplomatic])
	}
}

func TestExpiredMitigationHasNoEffect(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, now := newTestRegistry(t, start)

	_, err := reg.Apply(ApplyParams{Type: TypeEconomicStimulus, Effectiveness: 0.5, DurationHours: 24, SourceID: "treasury"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	*now = start.Add(25 * time.Hour)
	input := map[pressure.Source]float64{pressure.SourceEconomic: 0.7}
	out := reg.EffectivePressure(input, "")
	if out[pressure.SourceEconomic] != 0.7 {
		t.Fatalf("economic = %v, want unmitigated 0.7", out[pressure.SourceEconomic])
	}
	if got := len(reg.Active()); got != 0 {
		t.Fatalf("len(active) = %d, want lazy purge to drop expired factor", got)
	}
}

func TestRegionScopedMitigationSkipsOtherRegions(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	_, err := reg.Apply(ApplyParams{
		Type:            TypeDisasterRelief,
		Effectiveness:   0.6,
		DurationHours:   168,
		SourceID:        "crown",
		AffectedRegions: []string{"coastlands"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	input := map[pressure.Source]float64{pressure.SourceEnvironmental: 0.9}
	if out := reg.EffectivePressure(input, "highlands"); out[pressure.SourceEnvironmental] != 0.9 {
		t.Fatalf("highlands environmental = %v, want untouched", out[pressure.SourceEnvironmental])
	}
	if out := reg.EffectivePressure(input, "coastlands"); out[pressure.SourceEnvironmental] >= 0.9 {
		t.Fatalf("coastlands environmental = %v, want reduced", out[pressure.SourceEnvironmental])
	}
}

func TestStackingPenaltyAppliesPerActiveFactor(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	first, err := reg.Apply(ApplyParams{Type: TypeEconomicStimulus, Effectiveness: 0.5, DurationHours: 100, SourceID: "a"})
	if err != nil {
		t.Fatalf("apply first: %v", err)
	}
	second, err := reg.Apply(ApplyParams{Type: TypeEconomicStimulus, Effectiveness: 0.5, DurationHours: 100, SourceID: "b"})
	if err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if first.Effectiveness != 0.5 {
		t.Fatalf("first effectiveness = %v, want full 0.5", first.Effectiveness)
	}
	if math.Abs(second.Effectiveness-0.35) > 1e-9 {
		t.Fatalf("second effectiveness = %v, want penalized 0.35", second.Effectiveness)
	}

	// Economic stimulus allows at most two concurrent factors.
	_, err = reg.Apply(ApplyParams{Type: TypeEconomicStimulus, Effectiveness: 0.5, DurationHours: 100, SourceID: "c"})
	if !errs.IsValidation(err) {
		t.Fatalf("expected validation error at concurrency limit, got %v", err)
	}
}

func TestRemoveBySourceAndType(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	mustApply(t, reg, ApplyParams{Type: TypePublicFestival, Effectiveness: 0.2, DurationHours: 12, SourceID: "crown"})
	mustApply(t, reg, ApplyParams{Type: TypeDisasterRelief, Effectiveness: 0.4, DurationHours: 48, SourceID: "crown"})
	mustApply(t, reg, ApplyParams{Type: TypePublicFestival, Effectiveness: 0.2, DurationHours: 12, SourceID: "guild"})

	if removed := reg.Remove("crown", TypePublicFestival); removed != 1 {
		t.Fatalf("Remove(crown, festival) = %d, want 1", removed)
	}
	if removed := reg.Remove("crown", ""); removed != 1 {
		t.Fatalf("Remove(crown, any) = %d, want 1", removed)
	}
	if got := len(reg.Active()); got != 1 {
		t.Fatalf("len(active) = %d, want 1", got)
	}
}

func TestForecastListsUpcomingExpiries(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, _ := newTestRegistry(t, start)

	mustApply(t, reg, ApplyParams{Type: TypePublicFestival, Effectiveness: 0.2, DurationHours: 8, SourceID: "soon"})
	mustApply(t, reg, ApplyParams{Type: TypeEconomicStimulus, Effectiveness: 0.3, DurationHours: 400, SourceID: "later"})

	// Festival duration is quartered: expires in 2h, inside a 6h window.
	upcoming := reg.Forecast(6)
	if len(upcoming) != 1 {
		t.Fatalf("len(forecast) = %d, want 1", len(upcoming))
	}
	if upcoming[0].SourceID != "soon" {
		t.Fatalf("forecast[0].SourceID = %q, want %q", upcoming[0].SourceID, "soon")
	}
}

func TestEffectivenessDecaysWithAge(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	reg, now := newTestRegistry(t, start)

	mustApply(t, reg, ApplyParams{
		Type:            TypeEconomicStimulus,
		Effectiveness:   0.5,
		DurationHours:   240,
		SourceID:        "treasury",
		AffectedSources: []pressure.Source{pressure.SourceEconomic},
	})

	// After two days a 0.1/day decay leaves 80% of the effectiveness.
	*now = start.Add(48 * time.Hour)
	out := reg.EffectivePressure(map[pressure.Source]float64{pressure.SourceEconomic: 1.0}, "")
	if math.Abs(out[pressure.SourceEconomic]-0.6) > 1e-9 {
		t.Fatalf("economic = %v, want 0.6 after decay", out[pressure.SourceEconomic])
	}
}

func mustApply(t *testing.T, reg *Registry, params ApplyParams) Factor {
	t.Helper()
	f, err := reg.Apply(params)
	if err != nil {
		t.Fatalf("apply %v: %v", params.Type, err)
	}
	return f
}
