// Package score converts aggregated pressure into a bounded chaos score
// with temporal momentum and regional propagation.
package score

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/tremor/internal/chaos/pressure"
)

// RegionType scales a region's local pressure by its strategic profile.
type RegionType string

const (
	RegionStandard   RegionType = "standard"
	RegionCapital    RegionType = "capital"
	RegionFrontier   RegionType = "frontier"
	RegionWilderness RegionType = "wilderness"
)

// Modifier returns the type's pressure multiplier.
func (rt RegionType) Modifier() float64 {
	switch rt {
	case RegionCapital:
		return 1.3
	case RegionFrontier:
		return 0.8
	case RegionWilderness:
		return 0.6
	default:
		return 1.0
	}
}

// TemporalFactors are the history-derived multipliers applied to a score.
type TemporalFactors struct {
	Buildup      float64
	Momentum     float64
	Acceleration float64
	Persistence  float64
}

// Result is one immutable scoring outcome.
type Result struct {
	Score               float64
	Level               Level
	RegionalScores      map[string]float64
	SourceContributions map[pressure.Source]float64
	Temporal            TemporalFactors
	DominantSource      pressure.Source
	GeneratedAt         time.Time
	CacheKey            string
}

// Mitigator reduces raw source pressures before weighting. A nil Mitigator
// leaves pressures untouched.
type Mitigator interface {
	EffectivePressure(sources map[pressure.Source]float64, region string) map[pressure.Source]float64
}

// Config tunes the scoring pipeline. Zero values fall back to defaults.
type Config struct {
	SourceWeights   pressure.Weights
	RegionalWeight  float64
	GlobalWeight    float64
	LocalShare      float64
	PropagatedShare float64
	BuildupCap      float64
	DecayRate       float64
	CacheTTL        time.Duration
}

func (c Config) normalized() Config {
	if len(c.SourceWeights) == 0 {
		c.SourceWeights = pressure.DefaultWeights()
	}
	c.SourceWeights = c.SourceWeights.Normalized()
	if c.RegionalWeight <= 0 {
		c.RegionalWeight = 0.7
	}
	if c.GlobalWeight <= 0 {
		c.GlobalWeight = 0.3
	}
	total := c.RegionalWeight + c.GlobalWeight
	c.RegionalWeight /= total
	c.GlobalWeight /= total
	if c.LocalShare <= 0 {
		c.LocalShare = 0.7
	}
	if c.PropagatedShare <= 0 {
		c.PropagatedShare = 0.3
	}
	shares := c.LocalShare + c.PropagatedShare
	c.LocalShare /= shares
	c.PropagatedShare /= shares
	if c.BuildupCap <= 0 {
		c.BuildupCap = 1.5
	}
	if c.DecayRate <= 0 {
		c.DecayRate = 0.1
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Second
	}
	return c
}

// propagationDecay damps how strongly other regions bleed pressure into a
// region.
const propagationDecay = 0.3

type cacheEntry struct {
	result    Result
	expiresAt time.Time
}

// Scorer computes chaos results from pressure snapshots. Safe for
// concurrent use.
type Scorer struct {
	cfg       Config
	mitigator Mitigator
	clock     func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// ScorerOption adjusts scorer construction.
type ScorerOption func(*Scorer)

// WithScorerClock injects the time source.
func WithScorerClock(clock func() time.Time) ScorerOption {
	return func(s *Scorer) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New builds a scorer. mitigator may be nil.
func New(cfg Config, mitigator Mitigator, opts ...ScorerOption) *Scorer {
	s := &Scorer{
		cfg:       cfg.normalized(),
		mitigator: mitigator,
		clock:     time.Now,
		cache:     make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score reduces one snapshot to a chaos result. Identical snapshots within
// the cache TTL return the cached result.
func (s *Scorer) Score(snap pressure.Snapshot, regionTypes map[string]RegionType) Result {
	key := cacheKey(snap)
	now := s.clock()

	s.mu.Lock()
	if entry, ok := s.cache[key]; ok && now.Before(entry.expiresAt) {
		s.mu.Unlock()
		return entry.result
	}
	s.mu.Unlock()

	result := s.compute(snap, regionTypes, now)
	result.CacheKey = key

	s.mu.Lock()
	for k, entry := range s.cache {
		if !now.Before(entry.expiresAt) {
			delete(s.cache, k)
		}
	}
	s.cache[key] = cacheEntry{result: result, expiresAt: now.Add(s.cfg.CacheTTL)}
	s.mu.Unlock()
	return result
}

func (s *Scorer) compute(snap pressure.Snapshot, regionTypes map[string]RegionType, now time.Time) Result {
	baseScores := make(map[string]float64, len(snap.Regions))
	contributions := make(map[pressure.Source]float64)
	for region, metrics := range snap.Regions {
		sources := metrics.Breakdown
		if s.mitigator != nil {
			sources = s.mitigator.EffectivePressure(sources, region)
		}
		baseScores[region] = weightedAverage(sources, s.cfg.SourceWeights)
		for src, v := range sources {
			contributions[src] += v * s.cfg.SourceWeights[src]
		}
	}
	normalizeContributions(contributions)

	regionalScores := make(map[string]float64, len(baseScores))
	regionalSum := 0.0
	for region, base := range baseScores {
		local := base * regionTypes[region].Modifier()
		propagated := propagatedPressure(region, baseScores)
		combined := local
		if propagated >= 0 {
			combined = s.cfg.LocalShare*local + s.cfg.PropagatedShare*propagated
		}
		combined = clamp01(combined)
		regionalScores[region] = combined
		regionalSum += combined
	}

	regionalComponent := 0.0
	if len(regionalScores) > 0 {
		regionalComponent = regionalSum / float64(len(regionalScores))
	}
	globalComponent := globalPressure(snap.Factors)

	raw := s.cfg.RegionalWeight*regionalComponent + s.cfg.GlobalWeight*globalComponent

	temporal := s.temporalFactors(snap.History)
	raw *= temporal.Buildup
	raw *= temporal.Momentum
	raw *= temporal.Acceleration
	raw *= temporal.Persistence

	// Chaos feeds on itself: higher scores accelerate their own growth.
	momentum := temporal.Momentum - 1
	if momentum < 0 {
		momentum = 0
	}
	raw *= 1 + raw*momentum*0.1

	final := clamp01(raw)
	return Result{
		Score:               final,
		Level:               LevelFor(final),
		RegionalScores:      regionalScores,
		SourceContributions: contributions,
		Temporal:            temporal,
		DominantSource:      dominantSource(contributions),
		GeneratedAt:         now,
	}
}

// temporalFactors derives multipliers from the global score history. An
// empty history yields neutral factors.
func (s *Scorer) temporalFactors(history []float64) TemporalFactors {
	t := TemporalFactors{Buildup: 1, Momentum: 1, Acceleration: 1, Persistence: 1}
	if len(history) < 2 {
		return t
	}

	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}

	overallAvg := mean(history)
	recentAvg := mean(recent)
	if overallAvg > 0 {
		t.Buildup = math.Min(recentAvg/overallAvg, s.cfg.BuildupCap)
	}

	// Momentum: fraction of consecutive deltas sharing the latest
	// direction, signed so falling pressure damps the score.
	deltas := make([]float64, 0, len(recent)-1)
	for i := 1; i < len(recent); i++ {
		deltas = append(deltas, recent[i]-recent[i-1])
	}
	last := deltas[len(deltas)-1]
	if last != 0 {
		consistent := 0
		for _, d := range deltas {
			if (d > 0) == (last > 0) && d != 0 {
				consistent++
			}
		}
		frac := float64(consistent) / float64(len(deltas))
		if last > 0 {
			t.Momentum = 1 + frac*0.1
		} else {
			t.Momentum = 1 - frac*0.1
		}
	}

	if len(deltas) >= 2 {
		accel := deltas[len(deltas)-1] - deltas[len(deltas)-2]
		if accel > 0 {
			t.Acceleration = 1 + math.Min(accel, 1)*0.1
		}
	}

	above := 0
	for _, v := range recent {
		if v > 0.5 {
			above++
		}
	}
	t.Persistence = 1 + float64(above)/float64(len(recent))*0.1
	return t
}

// Decay reduces a score exponentially over elapsed hours, for use between
// ticks when no new readings arrive.
func (s *Scorer) Decay(score float64, hours float64) float64 {
	if hours <= 0 {
		return clamp01(score)
	}
	return clamp01(score * math.Exp(-s.cfg.DecayRate*hours))
}

// propagatedPressure averages the other regions' base scores with distance
// decay. Returns -1 when the region has no neighbors.
func propagatedPressure(region string, baseScores map[string]float64) float64 {
	sum, n := 0.0, 0
	for other, score := range baseScores {
		if other == region {
			continue
		}
		sum += score * propagationDecay
		n++
	}
	if n == 0 {
		return -1
	}
	return sum / float64(n)
}

// globalPressure inverts the four stability factors into pressure.
func globalPressure(f pressure.GlobalFactors) float64 {
	inverted := []float64{
		1 - f.EconomicHealth,
		1 - f.InternationalStability,
		1 - f.ClimateStability,
		1 - f.ResourceAbundance,
	}
	sum := 0.0
	for _, v := range inverted {
		sum += clamp01(v)
	}
	return sum / float64(len(inverted))
}

func weightedAverage(sources map[pressure.Source]float64, weights pressure.Weights) float64 {
	sum, weightSum := 0.0, 0.0
	for src, v := range sources {
		w, ok := weights[src]
		if !ok {
			continue
		}
		sum += v * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp01(sum / weightSum)
}

func normalizeContributions(contributions map[pressure.Source]float64) {
	total := 0.0
	for _, v := range contributions {
		total += v
	}
	if total == 0 {
		return
	}
	for src := range contributions {
		contributions[src] /= total
	}
}

func dominantSource(contributions map[pressure.Source]float64) pressure.Source {
	var dominant pressure.Source
	best := -1.0
	sources := make([]pressure.Source, 0, len(contributions))
	for src := range contributions {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	for _, src := range sources {
		if contributions[src] > best {
			best = contributions[src]
			dominant = src
		}
	}
	return dominant
}

// cacheKey fingerprints a snapshot by its sorted region set and latest
// metrics update.
func cacheKey(snap pressure.Snapshot) string {
	regions := make([]string, 0, len(snap.Regions))
	for region := range snap.Regions {
		regions = append(regions, region)
	}
	sort.Strings(regions)
	return fmt.Sprintf("%s@%d", strings.Join(regions, ","), snap.LatestUpdate().UnixNano())
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
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
