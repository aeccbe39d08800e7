package random

import "testing"

func TestNewSeedProducesDistinctValues(t *testing.T) {
	a, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	b, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct seeds, got %d twice", a)
	}
}

func TestNewRandReturnsUsableGenerator(t *testing.T) {
	rng := NewRand()
	if rng == nil {
		t.Fatal("expected generator")
	}
	v := rng.Float64()
	if v < 0 || v >= 1 {
		t.Fatalf("Float64() = %v, want [0,1)", v)
	}
}
