package strategy

import (
	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/parser"
)

type key struct {
	platform device.Platform
	metric   string
}

// adaptParser lifts a parser that does not use the package name into the
// two-argument Parse signature.
func adaptParser(fn func(string) (float64, bool)) func(out, pkg string) (float64, bool) {
	return func(out, _ string) (float64, bool) {
		return fn(out)
	}
}

// Table is a registry of collection strategies keyed by platform and
// metric. Registration order is preserved and breaks ties during
// selection, so equally-gated strategies fall back in the order they
// were registered.
type Table struct {
	rows map[key][]Strategy
}

func NewTable() *Table {
	return &Table{rows: make(map[key][]Strategy)}
}

func (t *Table) Register(s Strategy) {
	k := key{s.Platform, s.Metric}
	t.rows[k] = append(t.rows[k], s)
}

// DeviceLevel reports whether every registered strategy for the pair is
// device-scoped, meaning the engine may collect once per device per tick
// and replicate the sample to all monitored apps.
func (t *Table) DeviceLevel(platform device.Platform, metric string) bool {
	rows := t.rows[key{platform, metric}]
	if len(rows) == 0 {
		return false
	}
	for _, s := range rows {
		if !s.DeviceLevel {
			return false
		}
	}

	return true
}

// DefaultTable builds the built-in strategy registry for both platforms.
func DefaultTable() *Table {
	t := NewTable()
	registerAndroid(t)
	registerIOS(t)

	return t
}

func registerAndroid(t *Table) {
	t.Register(Strategy{
		Name:       "cpuinfo-total",
		Platform:   device.Android,
		Metric:     MetricCPU,
		MinVersion: minVersion(14, 0),
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Shell("dumpsys cpuinfo --total")
		},
		Parse: parser.AndroidCPU,
	})
	t.Register(Strategy{
		Name:     "cpuinfo-grep",
		Platform: device.Android,
		Metric:   MetricCPU,
		Command: func(dev device.Device, pkg string) command.Spec {
			return dev.Shell("dumpsys cpuinfo | grep " + pkg)
		},
		Parse: parser.AndroidCPU,
	})

	t.Register(Strategy{
		Name:       "meminfo-total",
		Platform:   device.Android,
		Metric:     MetricMemory,
		MinVersion: minVersion(14, 0),
		Command: func(dev device.Device, pkg string) command.Spec {
			return dev.Shell("dumpsys meminfo " + pkg + " --total")
		},
		Parse: adaptParser(parser.AndroidMemory),
	})
	t.Register(Strategy{
		Name:     "meminfo",
		Platform: device.Android,
		Metric:   MetricMemory,
		Command: func(dev device.Device, pkg string) command.Spec {
			return dev.Shell("dumpsys meminfo " + pkg)
		},
		Parse: adaptParser(parser.AndroidMemory),
	})

	t.Register(Strategy{
		Name:        "battery-dumpsys",
		Platform:    device.Android,
		Metric:      MetricBattery,
		DeviceLevel: true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Shell("dumpsys battery")
		},
		Parse: adaptParser(parser.AndroidBattery),
	})

	t.Register(Strategy{
		Name:     "traffic-grep",
		Platform: device.Android,
		Metric:   MetricNetwork,
		Command: func(dev device.Device, pkg string) command.Spec {
			return dev.Shell("dumpsys traffic | grep " + pkg)
		},
		Parse: parser.AndroidNetwork,
	})

	t.Register(Strategy{
		Name:       "surfaceflinger-latency",
		Platform:   device.Android,
		Metric:     MetricFPS,
		MinVersion: minVersion(14, 0),
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Shell("dumpsys SurfaceFlinger --latency")
		},
		Parse: adaptParser(parser.AndroidFPS),
	})
	t.Register(Strategy{
		Name:     "gfxinfo-latency",
		Platform: device.Android,
		Metric:   MetricFPS,
		Command: func(dev device.Device, pkg string) command.Spec {
			return dev.Shell("dumpsys gfxinfo " + pkg + " --latency SurfaceView")
		},
		Parse: adaptParser(parser.AndroidFPS),
	})
}

func registerIOS(t *Table) {
	t.Register(Strategy{
		Name:     "debug-top",
		Platform: device.IOS,
		Metric:   MetricCPU,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicedebug", "run", "top -l 1 -n 0")
		},
		Parse: parser.IOSCPU,
	})

	t.Register(Strategy{
		Name:     "ideviceinfo-memory",
		Platform: device.IOS,
		Metric:   MetricMemory,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("ideviceinfo", "-k", "MemoryUsage")
		},
		Parse: adaptParser(parser.IOSMemoryInfo),
	})
	t.Register(Strategy{
		Name:     "debug-top-memory",
		Platform: device.IOS,
		Metric:   MetricMemory,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicedebug", "run", "top -l 1 -n 0")
		},
		Parse: parser.IOSMemoryTop,
	})

	t.Register(Strategy{
		Name:        "ideviceinfo-battery",
		Platform:    device.IOS,
		Metric:      MetricBattery,
		DeviceLevel: true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("ideviceinfo", "-k", "BatteryCurrentCapacity")
		},
		Parse: adaptParser(parser.IOSBattery),
	})
	t.Register(Strategy{
		Name:        "ideviceinfo-battery-grep",
		Platform:    device.IOS,
		Metric:      MetricBattery,
		DeviceLevel: true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.ToolShell("ideviceinfo | grep -A 5 Battery")
		},
		Parse: adaptParser(parser.IOSBatteryGrep),
	})

	t.Register(Strategy{
		Name:        "syslog-network",
		Platform:    device.IOS,
		Metric:      MetricNetwork,
		MinVersion:  minVersion(14, 0),
		DeviceLevel: true,
		Estimated:   true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicesyslog", "-n", "200")
		},
		Parse: adaptParser(parser.IOSNetworkSyslog),
	})
	t.Register(Strategy{
		Name:        "debug-netstat",
		Platform:    device.IOS,
		Metric:      MetricNetwork,
		MinVersion:  minVersion(12, 0),
		DeviceLevel: true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicedebug", "run", "netstat -i")
		},
		Parse: adaptParser(parser.IOSNetworkNetstat),
	})
	t.Register(Strategy{
		Name:        "debug-ifconfig",
		Platform:    device.IOS,
		Metric:      MetricNetwork,
		DeviceLevel: true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicedebug", "run", "ifconfig -a")
		},
		Parse: adaptParser(parser.IOSNetworkIfconfig),
	})

	t.Register(Strategy{
		Name:        "syslog-fps",
		Platform:    device.IOS,
		Metric:      MetricFPS,
		DeviceLevel: true,
		Estimated:   true,
		Command: func(dev device.Device, _ string) command.Spec {
			return dev.Tool("idevicesyslog", "-n", "200")
		},
		Parse: adaptParser(parser.IOSFPSSyslog),
	})
	t.Register(Strategy{
		Name:        "model-estimate-fps",
		Platform:    device.IOS,
		Metric:      MetricFPS,
		DeviceLevel: true,
		Estimated:   true,
		Static: func(dev device.Device, _ string) (float64, bool) {
			return parser.EstimateIOSFPS(dev.Model, dev.OSVersion.Major), true
		},
	})
}
