package collect

import (
	"context"
	"math/rand"
	"sync"

	"github.com/louisbranch/tremor/internal/chaos/pressure"
)

// Simulated is a random-walk collector used when no real game system is
// wired in. Each call drifts the value a small step and clamps to [0,1].
type Simulated struct {
	mu     sync.Mutex
	name   string
	region string
	source pressure.Source
	value  float64
	step   float64
	rng    *rand.Rand
}

// NewSimulated builds a simulated collector starting at base.
func NewSimulated(name, region string, source pressure.Source, base float64, rng *rand.Rand) *Simulated {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Simulated{
		name:   name,
		region: region,
		source: source,
		value:  clamp01(base),
		step:   0.05,
		rng:    rng,
	}
}

func (s *Simulated) Name() string   { return s.name }
func (s *Simulated) Region() string { return s.region }

// Collect drifts and reports the current value.
func (s *Simulated) Collect(ctx context.Context) (map[pressure.Source]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = clamp01(s.value + (s.rng.Float64()*2-1)*s.step)
	return map[pressure.Source]float64{s.source: s.value}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
