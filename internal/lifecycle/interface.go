// Package lifecycle drives the stop, start, measure, settle sequence used
// for startup-time measurement and auto-lifecycle runs.
package lifecycle

import (
	"context"
	"time"

	"codeberg.org/mutker/mperf/internal/command"
)

// State identifies a step of the lifecycle sequence.
type State int

const (
	Idle State = iota
	Stopping
	Starting
	MeasuringLaunch
	Settling
	Monitoring
	StoppingFinal
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Stopping:
		return "stopping"
	case Starting:
		return "starting"
	case MeasuringLaunch:
		return "measuring_launch"
	case Settling:
		return "settling"
	case Monitoring:
		return "monitoring"
	case StoppingFinal:
		return "stopping_final"
	default:
		return "unknown"
	}
}

// Launch method names recorded in startup results.
const (
	MethodStartActivity = "start-activity"
	MethodDebugLaunch   = "debug-launch"
	MethodXcodeLaunch   = "xcode-launch"
	MethodManualLaunch  = "manual-launch"
)

// Result reports one completed startup sequence. Estimated marks startup
// values derived from bundle heuristics instead of a timed launch.
type Result struct {
	Entity    string
	DeviceID  string
	Startup   float64 // seconds
	Method    string
	Estimated bool
	At        time.Time
}

// Executor runs a device command with timeout and retry handling.
type Executor interface {
	Execute(ctx context.Context, spec command.Spec) (string, error)
}

type Config struct {
	AndroidSettle   time.Duration
	IOSSettle       time.Duration
	LaunchTimeout   time.Duration
	ManualCountdown int // seconds
}

func DefaultConfig() Config {
	return Config{
		AndroidSettle:   5 * time.Second,
		IOSSettle:       8 * time.Second,
		LaunchTimeout:   10 * time.Second,
		ManualCountdown: 5,
	}
}
