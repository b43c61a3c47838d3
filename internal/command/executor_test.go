package command_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

type fakeRunner struct {
	calls   int
	results []fakeResult
}

type fakeResult struct {
	out string
	err error
}

// blockUntilDeadline makes the attempt run into its per-attempt timeout.
var blockUntilDeadline = fakeResult{err: context.DeadlineExceeded}

func (r *fakeRunner) Run(ctx context.Context, _ command.Spec) (string, error) {
	res := r.results[r.calls]
	r.calls++

	if res.err == context.DeadlineExceeded {
		<-ctx.Done()
		return "", context.DeadlineExceeded
	}

	return res.out, res.err
}

func fastPolicy(attempts int) command.RetryPolicy {
	return command.RetryPolicy{MaxAttempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestExecuteSuccess(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{out: "  level: 87\n"}}}
	exec := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	out, err := exec.Execute(context.Background(), command.New("dumpsys", "battery"))
	require.NoError(t, err)
	assert.Equal(t, "level: 87", out, "Output is trimmed")
	assert.Equal(t, 1, runner.calls)
}

func TestExecuteRetriesTransient(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: fmt.Errorf("device busy")},
		{err: fmt.Errorf("device busy")},
		{out: "ok"},
	}}
	exec := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	out, err := exec.Execute(context.Background(), command.New("adb", "devices"))
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, runner.calls, "Two transient failures then success")
}

func TestExecuteToolMissingNoRetry(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{err: exec.ErrNotFound}}}
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	_, err := e.Execute(context.Background(), command.New("idevice_id", "-l"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrToolMissing))
	assert.Equal(t, 1, runner.calls, "Missing executables are never retried")
}

func TestExecutePermissionDeniedNoRetry(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{{err: os.ErrPermission}}}
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	_, err := e.Execute(context.Background(), command.New("adb", "shell"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCommandFailed))
	assert.Equal(t, 1, runner.calls)
}

func TestExecuteExhaustionClassifiedUnreachable(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: fmt.Errorf("device busy")},
		{err: fmt.Errorf("device busy")},
		{err: fmt.Errorf("device busy")},
	}}
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	_, err := e.Execute(context.Background(), command.New("adb", "shell", "echo", "test"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrDeviceUnreachable))
	assert.Equal(t, 3, runner.calls)
}

func TestExecuteTimeoutClassifiedAndBounded(t *testing.T) {
	timeout := 50 * time.Millisecond
	runner := &fakeRunner{results: []fakeResult{blockUntilDeadline}}
	e := command.NewExecutorWithRunner(runner, timeout, fastPolicy(1))

	began := time.Now()
	_, err := e.Execute(context.Background(), command.New("adb", "shell", "dumpsys", "cpuinfo"))
	elapsed := time.Since(began)

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCommandTimeout))
	assert.Less(t, elapsed, timeout+200*time.Millisecond,
		"Caller is unblocked within timeout plus a bounded epsilon")
}

func TestExecuteEmptySpec(t *testing.T) {
	e := command.NewExecutorWithRunner(&fakeRunner{}, time.Second, fastPolicy(1))

	_, err := e.Execute(context.Background(), command.Spec{})
	require.Error(t, err)
}

func TestExecuteCancelledContext(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: fmt.Errorf("device busy")},
		{out: "never reached"},
	}}
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, command.New("adb", "devices"))
	require.Error(t, err)
	assert.Equal(t, 1, runner.calls, "Shutdown stops the retry loop")
}

type countingRecorder struct {
	executed map[string]int
	failed   map[string]int
	retried  map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		executed: make(map[string]int),
		failed:   make(map[string]int),
		retried:  make(map[string]int),
	}
}

func (c *countingRecorder) CommandExecuted(tool string, success bool) {
	if success {
		c.executed[tool]++
	} else {
		c.failed[tool]++
	}
}

func (c *countingRecorder) CommandRetried(tool string) {
	c.retried[tool]++
}

func TestExecuteRecordsOutcomes(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: fmt.Errorf("device busy")},
		{out: "ok"},
	}}
	rec := newCountingRecorder()
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(3)).WithRecorder(rec)

	_, err := e.Execute(context.Background(), command.New("adb", "devices"))
	require.NoError(t, err)
	assert.Equal(t, 1, rec.executed["adb"])
	assert.Equal(t, 1, rec.retried["adb"])
	assert.Zero(t, rec.failed["adb"])
}

func TestExecuteRecordsExhaustion(t *testing.T) {
	runner := &fakeRunner{results: []fakeResult{
		{err: fmt.Errorf("device busy")},
		{err: fmt.Errorf("device busy")},
	}}
	rec := newCountingRecorder()
	e := command.NewExecutorWithRunner(runner, time.Second, fastPolicy(2)).WithRecorder(rec)

	_, err := e.Execute(context.Background(), command.New("adb", "devices"))
	require.Error(t, err)
	assert.Equal(t, 1, rec.failed["adb"])
	assert.Equal(t, 1, rec.retried["adb"], "The final attempt is not a retry")
}

func TestRetryPolicyDelayFor(t *testing.T) {
	p := command.RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, Multiplier: 2}

	assert.Equal(t, time.Duration(0), p.DelayFor(1))
	assert.Equal(t, time.Second, p.DelayFor(2))
	assert.Equal(t, 2*time.Second, p.DelayFor(3))
	assert.Equal(t, 4*time.Second, p.DelayFor(4))
}

func TestShellSpec(t *testing.T) {
	spec := command.Shell("dumpsys cpuinfo | grep com.example.app")

	assert.Equal(t, "sh", spec.Name)
	require.Len(t, spec.Args, 2)
	assert.Equal(t, "-c", spec.Args[0])
	assert.Equal(t, "dumpsys cpuinfo | grep com.example.app", spec.Args[1])
}
