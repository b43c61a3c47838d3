package lifecycle_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/lifecycle"
	"codeberg.org/mutker/mperf/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

var errFactory = errors.New()

type scriptedExecutor struct {
	outputs map[string]string
	fail    map[string]error
	calls   []string
}

func (s *scriptedExecutor) Execute(_ context.Context, spec command.Spec) (string, error) {
	key := spec.String()
	s.calls = append(s.calls, key)

	if err, ok := s.fail[key]; ok {
		return "", err
	}
	if out, ok := s.outputs[key]; ok {
		return out, nil
	}

	return "", fmt.Errorf("unexpected command: %s", key)
}

func fastConfig() lifecycle.Config {
	return lifecycle.Config{
		AndroidSettle:   time.Millisecond,
		IOSSettle:       time.Millisecond,
		LaunchTimeout:   50 * time.Millisecond,
		ManualCountdown: 0,
	}
}

func androidDevice() device.Device {
	return device.Device{ID: "emulator-5554", Platform: device.Android, OSVersion: device.Version{Major: 14}}
}

func iosDevice() device.Device {
	return device.Device{ID: "00008110-000A", Platform: device.IOS, OSVersion: device.Version{Major: 16}}
}

func TestRestartAndroidMeasuresStartup(t *testing.T) {
	exec := &scriptedExecutor{outputs: map[string]string{
		"adb -s emulator-5554 shell am force-stop com.example.app": "",
		"adb -s emulator-5554 shell am start -W -n com.example.app/com.example.app.MainActivity": "Status: ok\nTotalTime: 743\nWaitTime: 801",
	}}
	ctrl := lifecycle.NewController(exec, fastConfig())

	res, err := ctrl.Restart(context.Background(), androidDevice(), "com.example.app")
	require.NoError(t, err)
	assert.InDelta(t, 0.743, res.Startup, 0.0001)
	assert.Equal(t, lifecycle.MethodStartActivity, res.Method)
	assert.False(t, res.Estimated)
	assert.Equal(t, "com.example.app", res.Entity)
}

func TestRestartProceedsPastStopFailure(t *testing.T) {
	exec := &scriptedExecutor{
		outputs: map[string]string{
			"adb -s emulator-5554 shell am start -W -n com.example.app/com.example.app.MainActivity": "TotalTime: 500",
		},
		fail: map[string]error{
			"adb -s emulator-5554 shell am force-stop com.example.app": errFactory.New(errors.ErrCommandFailed),
		},
	}
	ctrl := lifecycle.NewController(exec, fastConfig())

	res, err := ctrl.Restart(context.Background(), androidDevice(), "com.example.app")
	require.NoError(t, err, "A failed force-stop must not abort the sequence")
	assert.InDelta(t, 0.5, res.Startup, 0.0001)
}

func TestRestartIOSDebugTimeoutUsesEstimate(t *testing.T) {
	exec := &scriptedExecutor{
		outputs: map[string]string{
			"idevicedebug -u 00008110-000A -e kill com.example.gamestudio": "",
			"ideviceinstaller -u 00008110-000A -U com.example.gamestudio":  "",
		},
		fail: map[string]error{
			// The debug session holding until the launch timeout means the
			// app came up.
			"idevicedebug -u 00008110-000A run com.example.gamestudio": errFactory.New(errors.ErrCommandTimeout),
		},
	}
	ctrl := lifecycle.NewController(exec, fastConfig())

	res, err := ctrl.Restart(context.Background(), iosDevice(), "com.example.gamestudio")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.MethodDebugLaunch, res.Method)
	assert.True(t, res.Estimated)
	assert.Equal(t, 0.5, res.Startup, "Game bundles use the heavy-launch estimate")
}

func TestRestartIOSEscalatesToManual(t *testing.T) {
	exec := &scriptedExecutor{
		outputs: map[string]string{
			"idevicedebug -u 00008110-000A -e kill com.example.app": "",
			"ideviceinstaller -u 00008110-000A -U com.example.app":  "",
		},
		fail: map[string]error{
			"idevicedebug -u 00008110-000A run com.example.app": errFactory.New(errors.ErrCommandFailed),
		},
	}
	ctrl := lifecycle.NewController(exec, fastConfig())

	res, err := ctrl.Restart(context.Background(), iosDevice(), "com.example.app")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.MethodManualLaunch, res.Method)
	assert.True(t, res.Estimated)
	assert.Equal(t, 0.2, res.Startup)
}

func TestStopIOSDoubleGuarantee(t *testing.T) {
	exec := &scriptedExecutor{
		outputs: map[string]string{
			"ideviceinstaller -u 00008110-000A -U com.example.app": "",
		},
		fail: map[string]error{
			"idevicedebug -u 00008110-000A -e kill com.example.app": errFactory.New(errors.ErrCommandFailed),
		},
	}
	ctrl := lifecycle.NewController(exec, fastConfig())

	err := ctrl.Stop(context.Background(), iosDevice(), "com.example.app")
	assert.NoError(t, err, "One of the two stop paths succeeding is enough")
}

func TestStopIOSBothPathsFail(t *testing.T) {
	exec := &scriptedExecutor{
		fail: map[string]error{
			"idevicedebug -u 00008110-000A -e kill com.example.app": errFactory.New(errors.ErrCommandFailed),
			"ideviceinstaller -u 00008110-000A -U com.example.app":  errFactory.New(errors.ErrCommandFailed),
		},
	}
	ctrl := lifecycle.NewController(exec, fastConfig())

	err := ctrl.Stop(context.Background(), iosDevice(), "com.example.app")
	require.Error(t, err)
}

func TestRestartCancelledDuringSettle(t *testing.T) {
	exec := &scriptedExecutor{outputs: map[string]string{
		"adb -s emulator-5554 shell am force-stop com.example.app": "",
		"adb -s emulator-5554 shell am start -W -n com.example.app/com.example.app.MainActivity": "TotalTime: 100",
	}}
	cfg := fastConfig()
	cfg.AndroidSettle = time.Minute
	ctrl := lifecycle.NewController(exec, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := ctrl.Restart(ctx, androidDevice(), "com.example.app")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrLifecycleSequenceFailure))
}

func TestRestartRecordsCommandOrder(t *testing.T) {
	exec := &scriptedExecutor{outputs: map[string]string{
		"adb -s emulator-5554 shell am force-stop com.example.app": "",
		"adb -s emulator-5554 shell am start -W -n com.example.app/com.example.app.MainActivity": "TotalTime: 100",
	}}
	ctrl := lifecycle.NewController(exec, fastConfig())

	_, err := ctrl.Restart(context.Background(), androidDevice(), "com.example.app")
	require.NoError(t, err)

	require.Len(t, exec.calls, 2)
	assert.Contains(t, exec.calls[0], "force-stop", "Stop precedes start")
	assert.True(t, strings.Contains(exec.calls[1], "am start -W"))
}
