package narrative

import (
	"math"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestDefaultsAreNeutral(t *testing.T) {
	d := NewDirector()
	if d.Tension() != 0.5 {
		t.Fatalf("tension = %v, want 0.5", d.Tension())
	}
	if d.Engagement() != 0.7 {
		t.Fatalf("engagement = %v, want 0.7", d.Engagement())
	}
	if mod := d.GlobalModifier(); mod != 1.0 {
		t.Fatalf("global modifier = %v, want neutral 1.0", mod)
	}
}

func TestAddThemeValidatesAndClamps(t *testing.T) {
	d := NewDirector()
	if err := d.AddTheme(Theme{Name: "no id"}); err == nil {
		t.Fatal("expected error for missing id")
	}
	if err := d.AddTheme(Theme{ID: "raid", WeightModifier: 5.0}); err != nil {
		t.Fatalf("add theme: %v", err)
	}
	status := d.Status()
	if status.ActiveThemes != 1 {
		t.Fatalf("active themes = %d, want 1", status.ActiveThemes)
	}
}

func TestBeatsRaiseTensionAndEngagement(t *testing.T) {
	d := NewDirector()
	if err := d.AddBeat(StoryBeat{ID: "duel", DramaLevel: 1.0, EngagementImpact: 1.0, ChaosCompatibility: 1.0}); err != nil {
		t.Fatalf("add beat: %v", err)
	}
	d.Retune()
	if math.Abs(d.Tension()-0.7) > 1e-9 {
		t.Fatalf("tension = %v, want 0.7", d.Tension())
	}
	if math.Abs(d.Engagement()-0.85) > 1e-9 {
		t.Fatalf("engagement = %v, want 0.85", d.Engagement())
	}
}

func TestExpiredBeatsDropOnRetune(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	d := NewDirector(WithDirectorClock(func() time.Time { return current }))

	if err := d.AddBeat(StoryBeat{ID: "festival", DramaLevel: 0.5, ExpiresAt: now.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("add beat: %v", err)
	}
	d.Retune()
	if d.Status().ActiveBeats != 1 {
		t.Fatal("expected beat active before expiry")
	}

	current = now.Add(3 * time.Hour)
	d.Retune()
	if d.Status().ActiveBeats != 0 {
		t.Fatal("expected beat removed after expiry")
	}
	if d.Tension() != 0.5 {
		t.Fatalf("tension = %v, want reset to base", d.Tension())
	}
}

func TestMatchingThemeBoostsEventWeight(t *testing.T) {
	d := NewDirector()
	if err := d.AddTheme(Theme{
		ID:             "succession",
		Priority:       PriorityCentral,
		WeightModifier: 1.5,
		RelatedEvents:  []string{"political_upheaval"},
	}); err != nil {
		t.Fatalf("add theme: %v", err)
	}

	weights := d.EventWeights([]string{"political_upheaval", "natural_disaster"})
	if weights["political_upheaval"] <= 1.0 {
		t.Fatalf("political weight = %v, want above 1.0", weights["political_upheaval"])
	}
	if weights["natural_disaster"] != 1.0 {
		t.Fatalf("unrelated weight = %v, want neutral 1.0", weights["natural_disaster"])
	}
}

func TestCriticalThemeBoostsHeavily(t *testing.T) {
	d := NewDirector()
	if err := d.AddTheme(Theme{
		ID:             "collapse",
		Priority:       PriorityCritical,
		WeightModifier: 2.0,
		RelatedEvents:  []string{"economic_crisis"},
	}); err != nil {
		t.Fatalf("add theme: %v", err)
	}

	weights := d.EventWeights([]string{"economic_crisis"})
	if weights["economic_crisis"] < 1.8 {
		t.Fatalf("critical theme weight = %v, want >= 1.8", weights["economic_crisis"])
	}
}

func TestHighTensionSuppressesChaos(t *testing.T) {
	d := NewDirector()
	for i := 0; i < 3; i++ {
		id := string(rune('a' + i))
		if err := d.AddBeat(StoryBeat{ID: id, DramaLevel: 1.0, ChaosCompatibility: 1.0}); err != nil {
			t.Fatalf("add beat: %v", err)
		}
	}
	d.Retune()
	if d.Tension() <= 0.8 {
		t.Fatalf("tension = %v, want above 0.8", d.Tension())
	}
	if mod := d.GlobalModifier(); mod >= 1.0 {
		t.Fatalf("global modifier = %v, want suppressed below 1.0", mod)
	}
}

func TestLowEngagementAmplifiesChaos(t *testing.T) {
	d := NewDirector()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		if err := d.AddBeat(StoryBeat{ID: id, DramaLevel: 0, EngagementImpact: -0.5, ChaosCompatibility: 1.0}); err != nil {
			t.Fatalf("add beat: %v", err)
		}
	}
	d.Retune()
	if d.Engagement() >= 0.4 {
		t.Fatalf("engagement = %v, want below 0.4", d.Engagement())
	}
	if mod := d.GlobalModifier(); mod <= 1.0 {
		t.Fatalf("global modifier = %v, want amplified above 1.0", mod)
	}
}

func TestLowTensionAmplifiesForExcitement(t *testing.T) {
	// No beats and a lowered base: simulate via a beat that keeps
	// engagement neutral while tension stays at base. Tension can only
	// fall below the low threshold through the rolling base, so assert
	// the branch directly with a hand-tuned director.
	d := NewDirector()
	d.tension = 0.2
	if mod := d.GlobalModifier(); mod <= 1.0 {
		t.Fatalf("global modifier = %v, want amplified above 1.0", mod)
	}
}

func TestEventWeightsCountsCalculations(t *testing.T) {
	d := NewDirector()
	d.EventWeights([]string{"civil_unrest"})
	d.EventWeights([]string{"civil_unrest"})
	if got := d.Status().WeightCalculations; got != 2 {
		t.Fatalf("weight calculations = %d, want 2", got)
	}
}
