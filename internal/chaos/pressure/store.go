package pressure

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultRetention     = 24 * time.Hour
	defaultMaxPerRegion  = 100
	defaultMaxHistoryLen = 100
)

// Store holds timestamped readings per region plus global factors and a
// bounded history of past global scores. Safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	regions    map[string][]Reading
	factors    GlobalFactors
	history    []float64
	retention  time.Duration
	maxPerReg  int
	maxHistory int
	clock      func() time.Time
}

// StoreOption adjusts store construction.
type StoreOption func(*Store)

// WithRetention overrides the reading retention window.
func WithRetention(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock injects the time source.
func WithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewStore builds an empty store with neutral global factors.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		regions:    make(map[string][]Reading),
		factors:    DefaultGlobalFactors(),
		retention:  defaultRetention,
		maxPerReg:  defaultMaxPerRegion,
		maxHistory: defaultMaxHistoryLen,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record validates and appends a reading to its region's series.
func (s *Store) Record(r Reading) error {
	normalized, err := r.Normalize(s.clock())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	series := append(s.regions[normalized.Region], normalized)
	if len(series) > s.maxPerReg {
		series = series[len(series)-s.maxPerReg:]
	}
	s.regions[normalized.Region] = series
	return nil
}

// Readings returns a copy of one region's readings ordered by record time.
func (s *Store) Readings(region string) []Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.regions[region]
	out := make([]Reading, len(series))
	copy(out, series)
	return out
}

// Regions lists region identifiers with at least one reading, sorted.
func (s *Store) Regions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.regions))
	for name, series := range s.regions {
		if len(series) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Prune drops readings older than the retention window and returns the
// number removed.
func (s *Store) Prune() int {
	cutoff := s.clock().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for region, series := range s.regions {
		kept := series[:0]
		for _, r := range series {
			if r.Timestamp.After(cutoff) {
				kept = append(kept, r)
			} else {
				removed++
			}
		}
		if len(kept) == 0 {
			delete(s.regions, region)
			continue
		}
		s.regions[region] = kept
	}
	return removed
}

// SetGlobalFactors replaces the world-level stability scalars.
func (s *Store) SetGlobalFactors(f GlobalFactors) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.EconomicHealth = clamp01(f.EconomicHealth)
	f.InternationalStability = clamp01(f.InternationalStability)
	f.ClimateStability = clamp01(f.ClimateStability)
	f.ResourceAbundance = clamp01(f.ResourceAbundance)
	s.factors = f
}

// GlobalFactors returns the current stability scalars.
func (s *Store) GlobalFactors() GlobalFactors {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.factors
}

// RecordGlobalScore appends one global weighted score to the bounded
// history buffer.
func (s *Store) RecordGlobalScore(score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, clamp01(score))
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

// GlobalHistory returns a copy of the score history, oldest first.
func (s *Store) GlobalHistory() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.history))
	copy(out, s.history)
	return out
}
