// Package orchestrator runs one independent sampling loop per
// (device, app) pair and funnels completed batches to a single store
// writer.
package orchestrator

import (
	"context"
	"time"

	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/strategy"
)

// Pair is one monitored (device, app) combination.
type Pair struct {
	Device  device.Device
	Package string
}

// Prober verifies that a device still responds to a trivial command.
type Prober interface {
	Probe(ctx context.Context, dev device.Device) error
}

// Recorder receives loop-level events for self-metrics.
type Recorder interface {
	TickCompleted(deviceID, app string)
	PairRemoved(deviceID, app string)
}

type nopRecorder struct{}

func (nopRecorder) TickCompleted(_, _ string) {}
func (nopRecorder) PairRemoved(_, _ string)   {}

type Config struct {
	// Interval between sampling ticks of one loop. A slow tick delays
	// that loop's next tick; ticks are never skipped or batched.
	Interval time.Duration

	// Duration bounds the run; zero means run until the stop signal.
	Duration time.Duration

	// MaxWorkers bounds the total number of concurrently running
	// (device, app) loops across all devices.
	MaxWorkers int

	// HealthCheckEvery is the number of ticks between device probes.
	HealthCheckEvery int

	// Metrics sampled every tick. Empty means the standard monitor set.
	Metrics []string

	// MeasureStartup runs the lifecycle sequence before monitoring and
	// records a startup_time sample per pair.
	MeasureStartup bool

	// StartupOnly skips the monitoring loop entirely; each pair measures
	// startup time and exits.
	StartupOnly bool

	// AutoLifecycle additionally force-stops each app when the run ends.
	AutoLifecycle bool

	OutputDir string
}

func (c *Config) normalize() {
	if len(c.Metrics) == 0 {
		c.Metrics = strategy.MonitorMetrics
	}
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 1
	}
	if c.HealthCheckEvery <= 0 {
		c.HealthCheckEvery = 10
	}
}
