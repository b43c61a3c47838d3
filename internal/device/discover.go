package device

import (
	"context"
	"strings"

	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
)

// Executor is the slice of the command layer discovery needs.
type Executor interface {
	Execute(ctx context.Context, spec command.Spec) (string, error)
}

// Discoverer detects connected devices and probes their health.
type Discoverer struct {
	exec Executor
}

func NewDiscoverer(exec Executor) *Discoverer {
	return &Discoverer{exec: exec}
}

// Discover returns the connected, responsive devices for the requested
// platform. An empty platform auto-detects, trying android before ios.
// When ids is non-empty only those devices are returned; requesting an
// unknown id is an error.
func (d *Discoverer) Discover(ctx context.Context, platform Platform, ids []string) ([]Device, error) {
	errFactory := errors.New()

	var devices []Device
	switch platform {
	case Android:
		devices = d.discoverAndroid(ctx)
	case IOS:
		devices = d.discoverIOS(ctx)
	case "":
		devices = d.discoverAndroid(ctx)
		if len(devices) == 0 {
			devices = d.discoverIOS(ctx)
		}
		if len(devices) == 0 {
			return nil, errFactory.New(ErrPlatformUnknown)
		}
	default:
		return nil, errFactory.WithData(ErrPlatformUnknown, platform)
	}

	if len(ids) == 0 {
		if len(devices) == 0 {
			return nil, errFactory.New(ErrDeviceNotFound)
		}
		return devices, nil
	}

	byID := make(map[string]Device, len(devices))
	for _, dev := range devices {
		byID[dev.ID] = dev
	}

	selected := make([]Device, 0, len(ids))
	for _, id := range ids {
		dev, ok := byID[id]
		if !ok {
			return nil, errFactory.WithData(ErrDeviceNotFound, id)
		}
		selected = append(selected, dev)
	}

	return selected, nil
}

// Probe re-checks that a device still answers a trivial command. Used by
// the sampling loops for periodic health checks.
func (d *Discoverer) Probe(ctx context.Context, dev Device) error {
	var spec command.Spec
	switch dev.Platform {
	case Android:
		spec = dev.Shell("echo test")
	default:
		spec = dev.Tool("ideviceinfo", "-k", "ProductType")
	}

	if _, err := d.exec.Execute(ctx, spec); err != nil {
		return errors.New().Wrap(ErrDeviceUnreachable, err)
	}

	return nil
}

func (d *Discoverer) discoverAndroid(ctx context.Context) []Device {
	out, err := d.exec.Execute(ctx, command.New("adb", "devices"))
	if err != nil {
		logger.Debug().Err(err).Msg("adb discovery failed")
		return nil
	}

	var devices []Device
	for _, id := range ParseAdbDevices(out) {
		dev := Device{ID: id, Platform: Android}
		if err := d.Probe(ctx, dev); err != nil {
			logger.Warn().Str("device", id).Err(err).Msg("android device not responsive, skipping")
			continue
		}

		if out, err := d.exec.Execute(ctx, dev.Shell("getprop ro.build.version.release")); err == nil {
			if v, ok := ParseVersion(out); ok {
				dev.OSVersion = v
			}
		}
		if out, err := d.exec.Execute(ctx, dev.Shell("getprop ro.product.model")); err == nil {
			dev.Model = strings.TrimSpace(out)
		}

		logger.Info().
			Str("device", dev.ID).
			Str("model", dev.Model).
			Str("os_version", dev.OSVersion.String()).
			Msg("Detected android device")
		devices = append(devices, dev)
	}

	return devices
}

func (d *Discoverer) discoverIOS(ctx context.Context) []Device {
	out, err := d.exec.Execute(ctx, command.New("idevice_id", "-l"))
	if err != nil {
		logger.Debug().Err(err).Msg("idevice_id discovery failed")
		return nil
	}

	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}

		dev := Device{ID: id, Platform: IOS}
		if err := d.Probe(ctx, dev); err != nil {
			logger.Warn().Str("device", id).Err(err).Msg("ios device not responsive, skipping")
			continue
		}

		if out, err := d.exec.Execute(ctx, dev.Tool("ideviceinfo", "-k", "ProductVersion")); err == nil {
			if v, ok := ParseVersion(out); ok {
				dev.OSVersion = v
			}
		}
		if out, err := d.exec.Execute(ctx, dev.Tool("ideviceinfo", "-k", "ProductType")); err == nil {
			dev.Model = strings.TrimSpace(out)
		}

		logger.Info().
			Str("device", dev.ID).
			Str("model", dev.Model).
			Str("os_version", dev.OSVersion.String()).
			Msg("Detected ios device")
		devices = append(devices, dev)
	}

	return devices
}

// ParseAdbDevices extracts device serials from `adb devices` output,
// skipping the header line and anything not in the "device" state.
func ParseAdbDevices(out string) []string {
	var ids []string
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if i == 0 && strings.HasPrefix(line, "List of devices") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == "device" {
			ids = append(ids, fields[0])
		}
	}

	return ids
}
