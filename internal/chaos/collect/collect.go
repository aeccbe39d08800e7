// Package collect fans out to pressure collectors concurrently. A failing
// or slow collector never blocks the others and never fails the tick.
package collect

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/louisbranch/tremor/internal/chaos/errs"
	"github.com/louisbranch/tremor/internal/chaos/pressure"
)

// Collector reads pressure values for one external system in one region.
// Values outside [0,1] are clamped downstream.
type Collector interface {
	Name() string
	Region() string
	Collect(ctx context.Context) (map[pressure.Source]float64, error)
}

// Result is one collector's outcome for a single gather pass.
type Result struct {
	Collector string
	Region    string
	Values    map[pressure.Source]float64
	Err       error
}

const (
	defaultTimeout     = 5 * time.Second
	defaultConcurrency = 8
)

// Gatherer runs collectors with a bounded worker set and per-collector
// timeouts.
type Gatherer struct {
	timeout     time.Duration
	concurrency int
}

// GathererOption adjusts gatherer construction.
type GathererOption func(*Gatherer)

// WithTimeout sets the per-collector deadline.
func WithTimeout(timeout time.Duration) GathererOption {
	return func(g *Gatherer) {
		if timeout > 0 {
			g.timeout = timeout
		}
	}
}

// WithConcurrency bounds how many collectors run at once.
func WithConcurrency(n int) GathererOption {
	return func(g *Gatherer) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// NewGatherer builds a gatherer with default limits.
func NewGatherer(opts ...GathererOption) *Gatherer {
	g := &Gatherer{
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Gather runs every collector and returns one result per collector in
// input order. Errors are captured per result, never propagated; partial
// results are the expected mode when a system misbehaves.
func (g *Gatherer) Gather(ctx context.Context, collectors []Collector) []Result {
	results := make([]Result, len(collectors))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for i, c := range collectors {
		group.Go(func() error {
			results[i] = g.collectOne(ctx, c)
			return nil
		})
	}
	group.Wait()
	return results
}

func (g *Gatherer) collectOne(ctx context.Context, c Collector) Result {
	result := Result{Collector: c.Name(), Region: c.Region()}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	values, err := c.Collect(ctx)
	if err != nil {
		result.Err = errs.Collection(c.Name(), err)
		return result
	}
	result.Values = values
	return result
}

// Readings converts successful results into normalized pressure readings
// stamped at now. Failed results are skipped.
func Readings(results []Result, now time.Time) []pressure.Reading {
	var readings []pressure.Reading
	for _, result := range results {
		if result.Err != nil {
			continue
		}
		for source, value := range result.Values {
			r, err := pressure.Reading{
				Source:     source,
				Value:      value,
				Confidence: 1,
				Region:     result.Region,
				Timestamp:  now,
			}.Normalize(now)
			if err != nil {
				continue
			}
			readings = append(readings, r)
		}
	}
	return readings
}
