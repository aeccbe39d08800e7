package pressure

import (
	"math"
	"time"
)

const (
	// criticalThreshold is the value above which a region counts as under
	// sustained critical pressure.
	criticalThreshold = 0.7

	trendWindow = 10
)

// Weights maps each source to its share of the weighted pressure average.
type Weights map[Source]float64

// DefaultWeights returns the tuned per-source weights. They sum to 1.
func DefaultWeights() Weights {
	return Weights{
		SourcePolitical:     0.25,
		SourceEconomic:      0.20,
		SourceSocial:        0.15,
		SourceDiplomatic:    0.15,
		SourceMilitary:      0.15,
		SourceEnvironmental: 0.10,
	}
}

// Normalized returns a copy scaled so the weights sum to 1. A nil or
// zero-sum set falls back to the defaults.
func (w Weights) Normalized() Weights {
	total := 0.0
	for _, v := range w {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return DefaultWeights()
	}
	out := make(Weights, len(w))
	for src, v := range w {
		if v > 0 {
			out[src] = v / total
		}
	}
	return out
}

// Aggregator reduces a store's readings into per-region metrics.
type Aggregator struct {
	store       *Store
	weights     Weights
	sensitivity float64
	clock       func() time.Time
}

// AggregatorOption adjusts aggregator construction.
type AggregatorOption func(*Aggregator)

// WithWeights overrides the per-source weights.
func WithWeights(w Weights) AggregatorOption {
	return func(a *Aggregator) {
		if len(w) > 0 {
			a.weights = w.Normalized()
		}
	}
}

// WithAnomalySensitivity sets the stddev multiplier for anomaly flagging.
func WithAnomalySensitivity(s float64) AggregatorOption {
	return func(a *Aggregator) {
		if s > 0 {
			a.sensitivity = s
		}
	}
}

// WithAggregatorClock injects the time source.
func WithAggregatorClock(clock func() time.Time) AggregatorOption {
	return func(a *Aggregator) {
		if clock != nil {
			a.clock = clock
		}
	}
}

// NewAggregator builds an aggregator over the given store.
func NewAggregator(store *Store, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		store:       store,
		weights:     DefaultWeights(),
		sensitivity: 2.0,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Record appends a reading through the backing store.
func (a *Aggregator) Record(r Reading) error {
	return a.store.Record(r)
}

// Recompute derives metrics for one region. A region with no readings
// yields zero-valued metrics, never an error.
func (a *Aggregator) Recompute(region string) Metrics {
	readings := a.store.Readings(region)
	if len(readings) == 0 {
		return Metrics{Breakdown: map[Source]float64{}}
	}
	now := a.clock()

	breakdown := latestPerSource(readings)
	m := Metrics{
		Breakdown: breakdown,
		UpdatedAt: readings[len(readings)-1].Timestamp,
	}
	m.WeightedPressure = weightedAverage(breakdown, a.weights)
	for _, r := range readings {
		if r.Value > m.PeakPressure {
			m.PeakPressure = r.Value
		}
	}
	m.Trend = trendSlope(readings)
	m.Velocity = velocity(readings)
	m.TimeAboveThreshold = timeAbove(readings, criticalThreshold, now)
	return m
}

// Summary recomputes metrics for every region with readings.
func (a *Aggregator) Summary() map[string]Metrics {
	out := make(map[string]Metrics)
	for _, region := range a.store.Regions() {
		out[region] = a.Recompute(region)
	}
	return out
}

// Snapshot captures all regional metrics plus global state for one tick.
func (a *Aggregator) Snapshot() Snapshot {
	return Snapshot{
		Regions: a.Summary(),
		Factors: a.store.GlobalFactors(),
		History: a.store.GlobalHistory(),
		TakenAt: a.clock(),
	}
}

// Anomalies flags recent readings further than sensitivity stddevs from
// the window mean.
func (a *Aggregator) Anomalies(region string) []Reading {
	readings := a.store.Readings(region)
	if len(readings) < 3 {
		return nil
	}
	window := readings
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	mean, stddev := meanStddev(window)
	if stddev == 0 {
		return nil
	}
	var out []Reading
	for _, r := range window {
		if math.Abs(r.Value-mean) > a.sensitivity*stddev {
			out = append(out, r)
		}
	}
	return out
}

// latestPerSource keeps the most recent reading per source, scaled by its
// confidence.
func latestPerSource(readings []Reading) map[Source]float64 {
	latest := make(map[Source]Reading)
	for _, r := range readings {
		prev, ok := latest[r.Source]
		if !ok || !r.Timestamp.Before(prev.Timestamp) {
			latest[r.Source] = r
		}
	}
	out := make(map[Source]float64, len(latest))
	for src, r := range latest {
		out[src] = r.Value * r.Confidence
	}
	return out
}

// weightedAverage divides by the sum of weights actually present so
// missing sources do not drag the average toward zero.
func weightedAverage(breakdown map[Source]float64, weights Weights) float64 {
	sum, weightSum := 0.0, 0.0
	for src, value := range breakdown {
		w, ok := weights[src]
		if !ok {
			continue
		}
		sum += value * w
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clamp01(sum / weightSum)
}

// trendSlope fits a least-squares line over the last readings, in pressure
// units per hour.
func trendSlope(readings []Reading) float64 {
	window := readings
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	if len(window) < 2 {
		return 0
	}
	origin := window[0].Timestamp
	n := float64(len(window))
	var sumX, sumY, sumXY, sumXX float64
	for _, r := range window {
		x := r.Timestamp.Sub(origin).Hours()
		y := r.Value
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func velocity(readings []Reading) float64 {
	if len(readings) < 2 {
		return 0
	}
	last := readings[len(readings)-1]
	prev := readings[len(readings)-2]
	hours := last.Timestamp.Sub(prev.Timestamp).Hours()
	if hours <= 0 {
		return 0
	}
	return (last.Value - prev.Value) / hours
}

// timeAbove sums contiguous intervals at or above the threshold, including
// an open interval from the last high reading to now.
func timeAbove(readings []Reading, threshold float64, now time.Time) time.Duration {
	var total time.Duration
	var start time.Time
	above := false
	for _, r := range readings {
		if r.Value >= threshold {
			if !above {
				above = true
				start = r.Timestamp
			}
			continue
		}
		if above {
			total += r.Timestamp.Sub(start)
			above = false
		}
	}
	if above && now.After(start) {
		total += now.Sub(start)
	}
	return total
}

func meanStddev(readings []Reading) (float64, float64) {
	n := float64(len(readings))
	sum := 0.0
	for _, r := range readings {
		sum += r.Value
	}
	mean := sum / n
	variance := 0.0
	for _, r := range readings {
		d := r.Value - mean
		variance += d * d
	}
	return mean, math.Sqrt(variance / n)
}
