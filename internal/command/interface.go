package command

import (
	"context"
	"strings"
	"time"
)

// Spec describes one external device-inspection command invocation.
type Spec struct {
	Name string
	Args []string
}

// New builds a Spec from an executable name and its arguments.
func New(name string, args ...string) Spec {
	return Spec{Name: name, Args: args}
}

// Shell wraps a command line in `sh -c` so pipelines like
// `ideviceinfo | grep -A 5 Battery` run host-side.
func Shell(cmdline string) Spec {
	return Spec{Name: "sh", Args: []string{"-c", cmdline}}
}

func (s Spec) String() string {
	if len(s.Args) == 0 {
		return s.Name
	}

	return s.Name + " " + strings.Join(s.Args, " ")
}

func (s Spec) empty() bool {
	return s.Name == ""
}

// Runner abstracts process execution so executors can be tested without
// spawning real processes.
type Runner interface {
	// Run executes the spec and returns its combined output. The context
	// carries the per-attempt deadline.
	Run(ctx context.Context, spec Spec) (string, error)
}

// Recorder observes command execution for self-metrics.
type Recorder interface {
	CommandExecuted(tool string, success bool)
	CommandRetried(tool string)
}

type nopRecorder struct{}

func (nopRecorder) CommandExecuted(_ string, _ bool) {}
func (nopRecorder) CommandRetried(_ string)          {}

// RetryPolicy is a bounded exponential backoff description.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy mirrors the 3 attempts / 1s base / doubling backoff
// the device tools tolerate well.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
	}
}

// DelayFor returns the backoff delay preceding the given retry attempt.
// Attempt numbering starts at 1; the first attempt has no delay.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := float64(p.BaseDelay)
	for i := 2; i < attempt; i++ {
		delay *= p.Multiplier
	}

	return time.Duration(delay)
}
