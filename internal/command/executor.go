package command

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
)

// killGracePeriod bounds how long a timed-out child may linger between
// SIGKILL and reaping before Run gives up waiting on its output pipes.
const killGracePeriod = 2 * time.Second

// Executor runs external device commands with a hard per-invocation timeout
// and bounded exponential backoff on transient failures.
type Executor struct {
	runner   Runner
	timeout  time.Duration
	policy   RetryPolicy
	recorder Recorder
}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor(timeout time.Duration, policy RetryPolicy) *Executor {
	return NewExecutorWithRunner(&execRunner{}, timeout, policy)
}

// NewExecutorWithRunner injects a Runner; tests use this to fake the
// process layer.
func NewExecutorWithRunner(runner Runner, timeout time.Duration, policy RetryPolicy) *Executor {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	return &Executor{
		runner:   runner,
		timeout:  timeout,
		policy:   policy,
		recorder: nopRecorder{},
	}
}

// WithRecorder attaches a self-metrics recorder. Call before Execute.
func (e *Executor) WithRecorder(r Recorder) *Executor {
	if r != nil {
		e.recorder = r
	}

	return e
}

// Execute runs the spec, retrying transient failures per the retry policy.
// Non-transient failures (executable missing, permission denied) return
// immediately. On exhaustion the error code is command_timeout when the
// final attempt timed out, device_unreachable otherwise.
func (e *Executor) Execute(ctx context.Context, spec Spec) (string, error) {
	errFactory := errors.New()

	if spec.empty() {
		return "", errFactory.New(ErrEmptySpec)
	}

	var lastErr error
	timedOut := false

	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		if delay := e.policy.DelayFor(attempt); delay > 0 {
			if err := sleepCtx(ctx, delay); err != nil {
				return "", errFactory.Wrap(ErrCommandFailed, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		out, err := e.runner.Run(attemptCtx, spec)
		cancel()

		if err == nil {
			e.recorder.CommandExecuted(spec.Name, true)
			return strings.TrimSpace(out), nil
		}

		if !isTransient(err) {
			e.recorder.CommandExecuted(spec.Name, false)
			logger.Debug().
				Str("command", spec.String()).
				Err(err).
				Msg("command failed permanently")

			if errors.Is(err, exec.ErrNotFound) {
				return "", errFactory.Wrap(ErrToolMissing, err)
			}

			return "", errFactory.Wrap(ErrCommandFailed, err)
		}

		timedOut = attemptCtx.Err() == context.DeadlineExceeded
		lastErr = err

		if attempt < e.policy.MaxAttempts {
			e.recorder.CommandRetried(spec.Name)
		}

		logger.Warn().
			Str("command", spec.String()).
			Int("attempt", attempt).
			Int("max_attempts", e.policy.MaxAttempts).
			Err(err).
			Msg("command attempt failed")

		// A cancelled run context is a shutdown, not a device fault.
		if ctx.Err() != nil {
			return "", errFactory.Wrap(ErrCommandFailed, ctx.Err())
		}
	}

	e.recorder.CommandExecuted(spec.Name, false)
	if timedOut {
		return "", errFactory.Wrap(ErrCommandTimeout, lastErr)
	}

	return "", errFactory.Wrap(ErrDeviceUnreachable, lastErr)
}

// isTransient reports whether a failed attempt is worth retrying.
func isTransient(err error) bool {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrPermission) {
		return false
	}

	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// execRunner is the default Runner using os/exec.
type execRunner struct{}

func (*execRunner) Run(ctx context.Context, spec Spec) (string, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	// CommandContext kills the child at the deadline; WaitDelay abandons
	// its pipes shortly after so a wedged grandchild cannot block us.
	cmd.WaitDelay = killGracePeriod

	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}

	return string(out), nil
}
