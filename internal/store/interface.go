// Package store keeps the in-memory time series collected during a run
// and derives the cross-app aggregate after every batch of appends.
package store

import "time"

// GlobalEntity is the reserved entity holding cross-app aggregates.
// App entities are bundle or package identifiers and never collide with it.
const GlobalEntity = "global"

// Sample is one timestamped metric observation.
type Sample struct {
	Timestamp  time.Time `json:"timestamp"`
	Value      float64   `json:"value"`
	Strategy   string    `json:"strategy,omitempty"`
	Degraded   bool      `json:"degraded,omitempty"`
	Estimated  bool      `json:"estimated,omitempty"`
	Replicated bool      `json:"replicated,omitempty"`
}

// Entry addresses one sample for batch appends.
type Entry struct {
	Entity string
	Metric string
	Sample Sample
}

// Results is an entity -> metric -> ordered samples snapshot.
type Results map[string]map[string][]Sample

// Summary holds descriptive statistics for one metric series.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
	P90    float64 `json:"p90"`
}
