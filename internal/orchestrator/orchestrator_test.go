package orchestrator_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/mperf/internal/archive"
	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/engine"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/lifecycle"
	"codeberg.org/mutker/mperf/internal/logger"
	"codeberg.org/mutker/mperf/internal/orchestrator"
	"codeberg.org/mutker/mperf/internal/store"
	"codeberg.org/mutker/mperf/internal/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

// fakeExecutor scripts outputs by full command line and can delay
// individual commands to simulate a slow device.
type fakeExecutor struct {
	mu      sync.Mutex
	outputs map[string]string
	delays  map[string]time.Duration
}

func (f *fakeExecutor) Execute(_ context.Context, spec command.Spec) (string, error) {
	key := spec.String()

	f.mu.Lock()
	delay := f.delays[key]
	out, ok := f.outputs[key]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if !ok {
		return "", fmt.Errorf("unexpected command: %s", key)
	}

	return out, nil
}

// waitingExecutor honors context cancellation, like the real executor's
// per-attempt deadline handling.
type waitingExecutor struct {
	delay   time.Duration
	outputs map[string]string
}

func (w *waitingExecutor) Execute(ctx context.Context, spec command.Spec) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(w.delay):
	}

	out, ok := w.outputs[spec.String()]
	if !ok {
		return "", fmt.Errorf("unexpected command: %s", spec.String())
	}

	return out, nil
}

type recordingArchiver struct {
	mu      sync.Mutex
	records []archive.Record
}

func (r *recordingArchiver) Record(_ context.Context, records []archive.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)

	return nil
}

func (r *recordingArchiver) Close() error { return nil }

func (r *recordingArchiver) countByDevice() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[string]int)
	for _, rec := range r.records {
		counts[rec.DeviceID]++
	}

	return counts
}

type okProber struct{}

func (okProber) Probe(context.Context, device.Device) error { return nil }

type failProber struct{}

func (failProber) Probe(context.Context, device.Device) error {
	return fmt.Errorf("device gone")
}

type captureRecorder struct {
	mu      sync.Mutex
	ticks   int
	removed []string
}

func (c *captureRecorder) TickCompleted(_, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticks++
}

func (c *captureRecorder) PairRemoved(deviceID, app string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, deviceID+"/"+app)
}

type captureRenderer struct {
	mu   sync.Mutex
	dirs []string
}

func (c *captureRenderer) Render(results store.Results, _ map[string]map[string]store.Summary, dir string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := results[store.GlobalEntity]; !ok {
		return fmt.Errorf("snapshot missing global entity")
	}
	c.dirs = append(c.dirs, dir)

	return nil
}

func androidDevice(id string) device.Device {
	return device.Device{ID: id, Platform: device.Android, OSVersion: device.Version{Major: 14}}
}

func cpuCommand(deviceID string) string {
	return fmt.Sprintf("adb -s %s shell dumpsys cpuinfo --total", deviceID)
}

const cpuOutput = "Load: 1.2 / 1.0 / 0.9\n  5.2% 1234:com.example.app/ (pid 1234)"

func newEngine(exec engine.Executor, interval time.Duration) *engine.Engine {
	defaults := map[string]float64{"cpu": 0, "battery": 50}

	return engine.New(exec, strategy.DefaultTable(), defaults, interval)
}

func TestRunRequiresPairs(t *testing.T) {
	eng := newEngine(&fakeExecutor{}, time.Second)
	orch := orchestrator.New(orchestrator.Config{OutputDir: t.TempDir()}, eng, nil, okProber{}, &recordingArchiver{}, nil)

	err := orch.Run(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
}

func TestRunSamplesAndPersists(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		cpuCommand("dev-a"): cpuOutput,
	}}
	arch := &recordingArchiver{}
	rec := &captureRecorder{}
	outDir := t.TempDir()

	cfg := orchestrator.Config{
		Interval:  5 * time.Millisecond,
		Duration:  100 * time.Millisecond,
		Metrics:   []string{"cpu"},
		OutputDir: outDir,
	}
	renderer := &captureRenderer{}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), nil, okProber{}, arch, map[string]float64{"cpu": 0}).
		WithRecorder(rec).
		WithRenderers(renderer)

	pairs := []orchestrator.Pair{{Device: androidDevice("dev-a"), Package: "com.example.app"}}
	require.NoError(t, orch.Run(context.Background(), pairs))

	counts := arch.countByDevice()
	assert.GreaterOrEqual(t, counts["dev-a"], 3, "Several ticks fit in the run duration")
	assert.GreaterOrEqual(t, rec.ticks, 3)

	// Single device writes directly into the output directory.
	assert.FileExists(t, filepath.Join(outDir, "results.json"))
	assert.FileExists(t, filepath.Join(outDir, "summary.json"))
	assert.Equal(t, []string{outDir}, renderer.dirs)
}

// A slow device must not slow down the other device's loop.
func TestRunLoopIndependence(t *testing.T) {
	exec := &fakeExecutor{
		outputs: map[string]string{
			cpuCommand("dev-fast"): cpuOutput,
			cpuCommand("dev-slow"): cpuOutput,
		},
		delays: map[string]time.Duration{
			cpuCommand("dev-slow"): 60 * time.Millisecond,
		},
	}
	arch := &recordingArchiver{}
	outDir := t.TempDir()

	cfg := orchestrator.Config{
		Interval:   5 * time.Millisecond,
		Duration:   250 * time.Millisecond,
		MaxWorkers: 4,
		Metrics:    []string{"cpu"},
		OutputDir:  outDir,
	}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), nil, okProber{}, arch, map[string]float64{"cpu": 0})

	pairs := []orchestrator.Pair{
		{Device: androidDevice("dev-fast"), Package: "com.example.app"},
		{Device: androidDevice("dev-slow"), Package: "com.example.app"},
	}
	require.NoError(t, orch.Run(context.Background(), pairs))

	counts := arch.countByDevice()
	assert.GreaterOrEqual(t, counts["dev-slow"], 1)
	assert.Greater(t, counts["dev-fast"], 2*counts["dev-slow"],
		"The fast loop keeps its own cadence while the slow loop stretches")

	// Multi-device runs get per-device report subtrees.
	assert.FileExists(t, filepath.Join(outDir, "device_dev-fast", "results.json"))
	assert.FileExists(t, filepath.Join(outDir, "device_dev-slow", "results.json"))
}

func TestRunRemovesUnreachablePair(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		cpuCommand("dev-a"): cpuOutput,
	}}
	arch := &recordingArchiver{}
	rec := &captureRecorder{}

	cfg := orchestrator.Config{
		Interval:         5 * time.Millisecond,
		Duration:         100 * time.Millisecond,
		HealthCheckEvery: 1,
		Metrics:          []string{"cpu"},
		OutputDir:        t.TempDir(),
	}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), nil, failProber{}, arch, map[string]float64{"cpu": 0}).
		WithRecorder(rec)

	pairs := []orchestrator.Pair{{Device: androidDevice("dev-a"), Package: "com.example.app"}}
	require.NoError(t, orch.Run(context.Background(), pairs))

	assert.Empty(t, arch.countByDevice(), "The loop stops before its first tick")
	assert.Equal(t, []string{"dev-a/com.example.app"}, rec.removed)
}

func TestRunStartupOnly(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		"adb -s dev-a shell am force-stop com.example.app": "",
		"adb -s dev-a shell am start -W -n com.example.app/com.example.app.MainActivity": "TotalTime: 743",
	}}
	arch := &recordingArchiver{}
	ctrl := lifecycle.NewController(exec, lifecycle.Config{
		AndroidSettle: time.Millisecond,
		IOSSettle:     time.Millisecond,
		LaunchTimeout: 50 * time.Millisecond,
	})

	cfg := orchestrator.Config{
		Interval:       time.Second,
		Metrics:        []string{"cpu"},
		MeasureStartup: true,
		StartupOnly:    true,
		OutputDir:      t.TempDir(),
	}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), ctrl, okProber{}, arch, map[string]float64{"cpu": 0})

	pairs := []orchestrator.Pair{{Device: androidDevice("dev-a"), Package: "com.example.app"}}

	done := make(chan error, 1)
	go func() { done <- orch.Run(context.Background(), pairs) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Startup-only run did not finish")
	}

	require.Len(t, arch.records, 1)
	assert.Equal(t, strategy.MetricStartup, arch.records[0].Metric)
	assert.InDelta(t, 0.743, arch.records[0].Value, 0.0001)
	assert.Equal(t, lifecycle.MethodStartActivity, arch.records[0].Strategy)
}

// A stop arriving mid-tick lets the in-flight commands finish; the final
// tick records genuine samples, never degraded defaults.
func TestRunDrainsInflightTickOnStop(t *testing.T) {
	exec := &waitingExecutor{
		delay:   100 * time.Millisecond,
		outputs: map[string]string{cpuCommand("dev-a"): cpuOutput},
	}
	arch := &recordingArchiver{}

	cfg := orchestrator.Config{
		Interval:  5 * time.Millisecond,
		Duration:  30 * time.Millisecond,
		Metrics:   []string{"cpu"},
		OutputDir: t.TempDir(),
	}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), nil, okProber{}, arch, map[string]float64{"cpu": 0})

	pairs := []orchestrator.Pair{{Device: androidDevice("dev-a"), Package: "com.example.app"}}
	require.NoError(t, orch.Run(context.Background(), pairs))

	require.NotEmpty(t, arch.records, "The in-flight tick is drained, not dropped")
	for _, rec := range arch.records {
		assert.False(t, rec.Degraded, "A killed tick must not fabricate default samples")
		assert.Equal(t, "cpuinfo-total", rec.Strategy)
		assert.InDelta(t, 5.2, rec.Value, 0.0001)
	}
}

func TestRunCancelledStops(t *testing.T) {
	exec := &fakeExecutor{outputs: map[string]string{
		cpuCommand("dev-a"): cpuOutput,
	}}
	arch := &recordingArchiver{}

	cfg := orchestrator.Config{
		Interval:  5 * time.Millisecond,
		Metrics:   []string{"cpu"},
		OutputDir: t.TempDir(),
	}
	orch := orchestrator.New(cfg, newEngine(exec, cfg.Interval), nil, okProber{}, arch, map[string]float64{"cpu": 0})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	pairs := []orchestrator.Pair{{Device: androidDevice("dev-a"), Package: "com.example.app"}}

	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx, pairs) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}

	assert.Greater(t, arch.countByDevice()["dev-a"], 0)
}
