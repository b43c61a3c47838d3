// Package engine runs the fallback collection chains. Every collection
// attempt produces an Outcome; the engine never returns an error, so a
// sampling loop cannot die because a single metric became unreadable.
package engine

import (
	"context"
	"time"

	"codeberg.org/mutker/mperf/internal/command"
)

// Executor runs a device command with timeout and retry handling.
type Executor interface {
	Execute(ctx context.Context, spec command.Spec) (string, error)
}

// Outcome is the tagged result of one collection attempt. Degraded means
// every strategy in the chain failed and Value carries the configured
// default. Estimated marks heuristic values, Replicated marks device-level
// values served from the per-device cache instead of a fresh command.
type Outcome struct {
	Metric     string
	Value      float64
	Strategy   string
	At         time.Time
	Degraded   bool
	Estimated  bool
	Replicated bool
}

// Recorder receives collection events for self-metrics. Implementations
// must be safe for concurrent use.
type Recorder interface {
	SampleCollected(platform, metric, strategy string)
	SampleDegraded(platform, metric string)
	StrategyFailure(platform, metric, strategy, reason string)
}

type nopRecorder struct{}

func (nopRecorder) SampleCollected(_, _, _ string)    {}
func (nopRecorder) SampleDegraded(_, _ string)        {}
func (nopRecorder) StrategyFailure(_, _, _, _ string) {}
