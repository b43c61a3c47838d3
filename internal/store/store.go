package store

import (
	"sync"
	"time"

	"codeberg.org/mutker/mperf/internal/errors"
)

var errFactory = errors.New()

// Store is safe for concurrent use. Writes normally arrive from a single
// writer goroutine, so a store-wide lock keeps each batch and the global
// aggregation it triggers atomic with respect to readers.
type Store struct {
	mu       sync.RWMutex
	series   map[string]map[string][]Sample
	defaults map[string]float64
	closed   bool
}

// New builds an empty store. defaults supplies the global aggregate value
// for a metric when no app reported a positive sample.
func New(defaults map[string]float64) *Store {
	return &Store{
		series:   make(map[string]map[string][]Sample),
		defaults: defaults,
	}
}

// Append records one sample without touching the global aggregate.
// Timestamps within a series are clamped non-decreasing.
func (s *Store) Append(entity, metric string, sample Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrStoreClosed)
	}
	s.append(entity, metric, sample)

	return nil
}

// AppendBatch records all entries and then recomputes the global
// aggregate once for every metric the batch touched. Readers never
// observe the batch without its aggregation.
func (s *Store) AppendBatch(entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errFactory.New(ErrStoreClosed)
	}

	touched := make(map[string]time.Time)
	for _, e := range entries {
		s.append(e.Entity, e.Metric, e.Sample)
		if e.Entity != GlobalEntity && e.Sample.Timestamp.After(touched[e.Metric]) {
			touched[e.Metric] = e.Sample.Timestamp
		}
	}
	for metric, at := range touched {
		s.aggregate(metric, at)
	}

	return nil
}

func (s *Store) append(entity, metric string, sample Sample) {
	metrics, ok := s.series[entity]
	if !ok {
		metrics = make(map[string][]Sample)
		s.series[entity] = metrics
	}

	samples := metrics[metric]
	if n := len(samples); n > 0 && sample.Timestamp.Before(samples[n-1].Timestamp) {
		sample.Timestamp = samples[n-1].Timestamp
	}
	metrics[metric] = append(samples, sample)
}

// aggregate computes the global sample for one metric from the latest
// per-app samples. Only strictly positive values participate; when none
// exist the configured default is recorded with the degraded flag set.
func (s *Store) aggregate(metric string, at time.Time) {
	var (
		sum       float64
		n         int
		estimated bool
	)
	for entity, metrics := range s.series {
		if entity == GlobalEntity {
			continue
		}
		samples := metrics[metric]
		if len(samples) == 0 {
			continue
		}
		last := samples[len(samples)-1]
		if last.Value <= 0 {
			continue
		}
		sum += last.Value
		n++
		estimated = estimated || last.Estimated
	}

	sample := Sample{Timestamp: at, Estimated: estimated}
	if n > 0 {
		sample.Value = sum / float64(n)
	} else {
		sample.Value = s.defaults[metric]
		sample.Degraded = true
		sample.Estimated = false
	}
	s.append(GlobalEntity, metric, sample)
}

// Snapshot returns a deep copy of all series.
func (s *Store) Snapshot() Results {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(Results, len(s.series))
	for entity, metrics := range s.series {
		copied := make(map[string][]Sample, len(metrics))
		for metric, samples := range metrics {
			dup := make([]Sample, len(samples))
			copy(dup, samples)
			copied[metric] = dup
		}
		out[entity] = copied
	}

	return out
}

// Entities lists all app entities, excluding the global aggregate.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for entity := range s.series {
		if entity != GlobalEntity {
			out = append(out, entity)
		}
	}

	return out
}

// Close rejects further appends. Snapshots remain available.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
