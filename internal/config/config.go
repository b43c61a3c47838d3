package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/mperf/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel = "info"

	defaultInterval       = 1.0
	defaultOutputDir      = "./reports"
	defaultMaxWorkers     = 5
	defaultWaitTime       = 30
	defaultCommandTimeout = 30
	defaultMaxRetries     = 3
	defaultRetryDelay     = 1
	defaultBatteryLevel   = 50.0

	configEnvVar = "MPERF_CONFIG"
)

// Config holds a full collector run description. Values are resolved in
// order: built-in defaults, config file, command-line flags.
type Config struct {
	// Packages lists the application package names (Android) or bundle
	// identifiers (iOS) to monitor.
	Packages []string `mapstructure:"packages"`

	// Devices lists device identifiers. Empty means "first detected device".
	Devices []string `mapstructure:"devices"`

	// Platform forces "android" or "ios"; empty triggers auto-detection.
	Platform string `mapstructure:"platform"`

	// Interval is the sampling interval in seconds.
	Interval float64 `mapstructure:"interval"`

	// Duration is the monitoring duration in seconds; 0 runs until stopped.
	Duration int `mapstructure:"duration"`

	OutputDir string `mapstructure:"output"`

	// MaxWorkers bounds the TOTAL number of concurrently running
	// (device, app) sampling loops across all devices, not per device.
	MaxWorkers int `mapstructure:"max_workers"`

	Startup       bool `mapstructure:"startup"`
	AutoLifecycle bool `mapstructure:"auto_lifecycle"`

	// WaitTime is the monitoring window in seconds for auto-lifecycle runs.
	WaitTime int `mapstructure:"wait_time"`

	CommandTimeout int `mapstructure:"command_timeout"`
	MaxRetries     int `mapstructure:"max_retries"`
	RetryDelay     int `mapstructure:"retry_delay"`

	// HealthCheckEvery re-probes device connectivity every N ticks.
	HealthCheckEvery int `mapstructure:"health_check_every"`

	// Defaults maps metric name to the value used when every collection
	// strategy for that metric fails.
	Defaults map[string]float64 `mapstructure:"defaults"`

	LogLevel string `mapstructure:"log_level"`
	Debug    bool   `mapstructure:"debug"`
	Verbose  bool   `mapstructure:"verbose"`

	Archive   bool   `mapstructure:"archive"`
	ArchiveDB string `mapstructure:"archive_db"`

	// MetricsListen is the optional prometheus listen address, e.g.
	// ":9109". Empty disables collector self-metrics.
	MetricsListen string `mapstructure:"metrics_listen"`
}

// Load resolves configuration from defaults, an optional TOML config file
// (MPERF_CONFIG or --config) and command-line flags.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	errFactory := errors.New()

	flags := pflag.NewFlagSet("mperf", pflag.ContinueOnError)
	flags.StringSliceP("package", "p", nil, "application package names or bundle IDs")
	flags.StringSliceP("device", "d", nil, "device identifiers")
	flags.Float64P("interval", "i", defaultInterval, "sampling interval in seconds")
	flags.IntP("time", "t", 0, "monitoring duration in seconds (0 = until stopped)")
	flags.StringP("output", "o", defaultOutputDir, "report output directory")
	flags.String("platform", "", "device platform (android or ios)")
	flags.StringP("config", "c", "", "config file path")
	flags.Bool("startup", false, "measure startup time only")
	flags.Bool("auto-lifecycle", false, "drive app lifecycle around monitoring")
	flags.Int("wait-time", defaultWaitTime, "monitoring window for auto-lifecycle runs in seconds")
	flags.Int("max-workers", defaultMaxWorkers, "maximum concurrent sampling loops")
	flags.String("log-level", DefaultLogLevel, "log level (debug, info, warning, error)")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("verbose", false, "enable verbose logging")
	flags.Bool("archive", false, "archive samples to sqlite")
	flags.String("archive-db", "", "sqlite archive path")
	flags.String("metrics-listen", "", "prometheus listen address")

	if err := flags.Parse(args); err != nil {
		return nil, errFactory.Wrap(ErrBindFlags, err)
	}

	v := viper.New()
	v.SetDefault("interval", defaultInterval)
	v.SetDefault("output", defaultOutputDir)
	v.SetDefault("max_workers", defaultMaxWorkers)
	v.SetDefault("wait_time", defaultWaitTime)
	v.SetDefault("command_timeout", defaultCommandTimeout)
	v.SetDefault("max_retries", defaultMaxRetries)
	v.SetDefault("retry_delay", defaultRetryDelay)
	v.SetDefault("health_check_every", 10)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("defaults", map[string]float64{"battery": defaultBatteryLevel})

	configPath := os.Getenv(configEnvVar)
	if p, err := flags.GetString("config"); err == nil && p != "" {
		configPath = p
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.WithMessage(ErrReadConfig, "Failed to read config file").WithData(err.Error())
		}
	} else {
		v.SetConfigName("mperf.conf")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(ErrReadConfig, err)
			}
		}
	}

	bindFlag(v, flags, "package", "packages")
	bindFlag(v, flags, "device", "devices")
	bindFlag(v, flags, "interval", "interval")
	bindFlag(v, flags, "time", "duration")
	bindFlag(v, flags, "output", "output")
	bindFlag(v, flags, "platform", "platform")
	bindFlag(v, flags, "startup", "startup")
	bindFlag(v, flags, "auto-lifecycle", "auto_lifecycle")
	bindFlag(v, flags, "wait-time", "wait_time")
	bindFlag(v, flags, "max-workers", "max_workers")
	bindFlag(v, flags, "log-level", "log_level")
	bindFlag(v, flags, "debug", "debug")
	bindFlag(v, flags, "verbose", "verbose")
	bindFlag(v, flags, "archive", "archive")
	bindFlag(v, flags, "archive-db", "archive_db")
	bindFlag(v, flags, "metrics-listen", "metrics_listen")

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if config.Defaults == nil {
		config.Defaults = map[string]float64{}
	}
	if _, ok := config.Defaults["battery"]; !ok {
		config.Defaults["battery"] = defaultBatteryLevel
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// bindFlag copies a flag value into viper, but only when the flag was set
// explicitly so config-file values are not clobbered by flag defaults.
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, flagName, key string) {
	f := flags.Lookup(flagName)
	if f == nil {
		return
	}
	if f.Changed || !v.IsSet(key) {
		switch fv := f.Value.Type(); fv {
		case "stringSlice":
			if s, err := flags.GetStringSlice(flagName); err == nil {
				v.Set(key, s)
			}
		default:
			v.Set(key, f.Value.String())
		}
	}
}

// Validate checks field ranges; it does not touch devices or the filesystem.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(ErrInvalidInterval, c.Interval)
	}

	if !LogLevel(strings.ToLower(c.LogLevel)).IsValid() {
		return errFactory.WithData(ErrInvalidLogLevel, c.LogLevel)
	}

	switch strings.ToLower(c.Platform) {
	case "", "android", "ios":
	default:
		return errFactory.WithData(ErrInvalidPlatform, c.Platform)
	}

	if c.MaxWorkers <= 0 {
		return errFactory.WithData(ErrInvalidWorkers, c.MaxWorkers)
	}

	if c.OutputDir == "" {
		return errFactory.New(ErrInvalidOutputPath)
	}

	return nil
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
