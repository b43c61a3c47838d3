package lifecycle

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
	"codeberg.org/mutker/mperf/internal/parser"
)

var errFactory = errors.New()

// Controller executes the lifecycle state machine for one (device, app)
// pair at a time. A step failure ends that pair's sequence but never
// affects other pairs.
type Controller struct {
	exec  Executor
	cfg   Config
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewController(exec Executor, cfg Config) *Controller {
	return &Controller{
		exec:  exec,
		cfg:   cfg,
		sleep: sleepCtx,
		now:   time.Now,
	}
}

// Restart drives Stopping through Settling and returns the measured
// startup result. Stop failures are logged and the sequence proceeds;
// stop tools do not reliably report idempotent success.
func (c *Controller) Restart(ctx context.Context, dev device.Device, pkg string) (Result, error) {
	c.transition(dev, pkg, Stopping)
	if err := c.Stop(ctx, dev, pkg); err != nil {
		logger.Warn().
			Str("device", dev.ID).
			Str("app", pkg).
			Err(err).
			Msg("Force-stop failed, continuing sequence")
	}

	c.transition(dev, pkg, Starting)
	var (
		res Result
		err error
	)
	switch dev.Platform {
	case device.Android:
		res, err = c.launchAndroid(ctx, dev, pkg)
	case device.IOS:
		res, err = c.launchIOS(ctx, dev, pkg)
	default:
		err = errFactory.New(errors.ErrPlatformUnknown)
	}
	if err != nil {
		return Result{}, errFactory.Wrap(ErrLifecycleSequenceFailure, err)
	}

	c.transition(dev, pkg, Settling)
	if err := c.sleep(ctx, c.settleFor(dev.Platform)); err != nil {
		return Result{}, errFactory.Wrap(ErrLifecycleSequenceFailure, err)
	}

	c.transition(dev, pkg, Monitoring)

	return res, nil
}

// Stop force-stops the app. On iOS both the debug kill and the
// uninstall-based stop are issued as a double guarantee.
func (c *Controller) Stop(ctx context.Context, dev device.Device, pkg string) error {
	switch dev.Platform {
	case device.Android:
		if _, err := c.exec.Execute(ctx, dev.Shell("am force-stop "+pkg)); err != nil {
			return errFactory.Wrap(ErrCommandFailed, err)
		}
	case device.IOS:
		_, killErr := c.exec.Execute(ctx, dev.Tool("idevicedebug", "-e", "kill", pkg))
		_, uninstallErr := c.exec.Execute(ctx, dev.Tool("ideviceinstaller", "-U", pkg))
		if killErr != nil && uninstallErr != nil {
			return errFactory.Wrap(ErrCommandFailed, killErr)
		}
	default:
		return errFactory.New(errors.ErrPlatformUnknown)
	}

	return nil
}

func (c *Controller) launchAndroid(ctx context.Context, dev device.Device, pkg string) (Result, error) {
	c.transition(dev, pkg, MeasuringLaunch)

	activity := fmt.Sprintf("%s/%s.MainActivity", pkg, pkg)
	began := c.now()
	out, err := c.exec.Execute(ctx, dev.Shell("am start -W -n "+activity))
	if err != nil {
		return Result{}, err
	}

	startup, ok := parser.AndroidStartup(out)
	if !ok {
		// am start -W reported no TotalTime, fall back to wall clock
		startup = c.now().Sub(began).Seconds()
	}

	return Result{
		Entity:   pkg,
		DeviceID: dev.ID,
		Startup:  startup,
		Method:   MethodStartActivity,
		At:       c.now(),
	}, nil
}

// launchIOS tries the escalating launch methods in order and records
// which one succeeded. The manual method always succeeds; its startup
// value is a bundle-class estimate.
func (c *Controller) launchIOS(ctx context.Context, dev device.Device, pkg string) (Result, error) {
	c.transition(dev, pkg, MeasuringLaunch)

	if res, ok := c.launchIOSDebug(ctx, dev, pkg); ok {
		return res, nil
	}
	if runtime.GOOS == "darwin" {
		if res, ok := c.launchIOSXcode(ctx, dev, pkg); ok {
			return res, nil
		}
	}

	return c.launchIOSManual(ctx, dev, pkg)
}

func (c *Controller) launchIOSDebug(ctx context.Context, dev device.Device, pkg string) (Result, bool) {
	launchCtx, cancel := context.WithTimeout(ctx, c.cfg.LaunchTimeout)
	defer cancel()

	began := c.now()
	_, err := c.exec.Execute(launchCtx, dev.Tool("idevicedebug", "run", pkg))
	elapsed := c.now().Sub(began).Seconds()

	// idevicedebug holds the session open, so hitting the launch timeout
	// means the app is up and the measured time is the timeout, not the
	// launch. Use the bundle-class estimate in that case.
	if err == nil {
		return Result{
			Entity:   pkg,
			DeviceID: dev.ID,
			Startup:  elapsed,
			Method:   MethodDebugLaunch,
			At:       c.now(),
		}, true
	}
	if errors.HasCode(err, errors.ErrCommandTimeout) {
		return Result{
			Entity:    pkg,
			DeviceID:  dev.ID,
			Startup:   parser.EstimateIOSStartup(pkg),
			Method:    MethodDebugLaunch,
			Estimated: true,
			At:        c.now(),
		}, true
	}

	logger.Debug().
		Str("device", dev.ID).
		Str("app", pkg).
		Err(err).
		Msg("Debug launch failed, escalating")

	return Result{}, false
}

func (c *Controller) launchIOSXcode(ctx context.Context, dev device.Device, pkg string) (Result, bool) {
	began := c.now()
	_, err := c.exec.Execute(ctx, command.New("osascript",
		"-e", `tell application "Xcode" to activate`,
		"-e", `tell application "System Events" to keystroke "r" using {command down}`,
	))
	if err != nil {
		logger.Debug().
			Str("device", dev.ID).
			Str("app", pkg).
			Err(err).
			Msg("Xcode launch failed, escalating")

		return Result{}, false
	}

	return Result{
		Entity:   pkg,
		DeviceID: dev.ID,
		Startup:  c.now().Sub(began).Seconds(),
		Method:   MethodXcodeLaunch,
		At:       c.now(),
	}, true
}

func (c *Controller) launchIOSManual(ctx context.Context, dev device.Device, pkg string) (Result, error) {
	logger.Warn().
		Str("device", dev.ID).
		Str("app", pkg).
		Int("seconds", c.cfg.ManualCountdown).
		Msg("Automated launch unavailable, start the app manually")

	for i := c.cfg.ManualCountdown; i > 0; i-- {
		logger.Info().Int("countdown", i).Msg("Waiting for manual launch")
		if err := c.sleep(ctx, time.Second); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Entity:    pkg,
		DeviceID:  dev.ID,
		Startup:   parser.EstimateIOSStartup(pkg),
		Method:    MethodManualLaunch,
		Estimated: true,
		At:        c.now(),
	}, nil
}

func (c *Controller) settleFor(platform device.Platform) time.Duration {
	if platform == device.IOS {
		return c.cfg.IOSSettle
	}

	return c.cfg.AndroidSettle
}

func (c *Controller) transition(dev device.Device, pkg string, state State) {
	logger.Debug().
		Str("device", dev.ID).
		Str("app", pkg).
		Str("state", state.String()).
		Msg("Lifecycle transition")
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
