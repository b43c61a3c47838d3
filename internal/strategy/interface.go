package strategy

import (
	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/device"
)

// Metric names as they appear in stores, reports and config.
const (
	MetricCPU     = "cpu"
	MetricMemory  = "memory"
	MetricBattery = "battery"
	MetricNetwork = "network"
	MetricFPS     = "fps"
	MetricStartup = "startup_time"
)

// MonitorMetrics are the metrics sampled every tick during monitoring;
// startup time is measured by the lifecycle controller instead.
var MonitorMetrics = []string{MetricCPU, MetricMemory, MetricBattery, MetricNetwork, MetricFPS}

// Strategy is one concrete way to obtain a metric: a command plus a parser,
// gated by platform and an optional minimum OS version. Strategies are
// immutable and registered once.
type Strategy struct {
	Name     string
	Platform device.Platform
	Metric   string

	// MinVersion gates the strategy to devices at or above this OS
	// version; nil means version-agnostic.
	MinVersion *device.Version

	// DeviceLevel marks metrics measured once per device and replicated
	// to every monitored app entity.
	DeviceLevel bool

	// Estimated marks values derived from heuristics rather than
	// measurement; the flag is carried through to every sample.
	Estimated bool

	// Command builds the device invocation. nil together with Static
	// means this is the selector's always-default sentinel.
	Command func(dev device.Device, pkg string) command.Spec

	// Parse maps command output to a value; ok == false means no match.
	Parse func(out, pkg string) (float64, bool)

	// Static produces a value without running any command (model/version
	// estimates). Used when Command is nil.
	Static func(dev device.Device, pkg string) (float64, bool)
}

// IsDefault reports whether this is the sentinel returned by Select when
// no real strategy applies; the engine resolves it to the configured
// default value.
func (s Strategy) IsDefault() bool {
	return s.Command == nil && s.Static == nil
}

// Default returns the always-default sentinel for a (platform, metric).
func Default(platform device.Platform, metric string) Strategy {
	return Strategy{
		Name:     "default",
		Platform: platform,
		Metric:   metric,
	}
}

func minVersion(major, minor int) *device.Version {
	return &device.Version{Major: major, Minor: minor}
}
