package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/mperf/internal/archive"
	"codeberg.org/mutker/mperf/internal/command"
	"codeberg.org/mutker/mperf/internal/config"
	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/engine"
	"codeberg.org/mutker/mperf/internal/health"
	"codeberg.org/mutker/mperf/internal/lifecycle"
	"codeberg.org/mutker/mperf/internal/logger"
	"codeberg.org/mutker/mperf/internal/observability"
	"codeberg.org/mutker/mperf/internal/orchestrator"
	"codeberg.org/mutker/mperf/internal/pid"
	"codeberg.org/mutker/mperf/internal/strategy"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	applyLogLevel(cfg)
	logger.Debug().Msg("Config loaded")
}

func main() {
	if len(cfg.Packages) == 0 {
		logger.Fatal().Msg("No packages configured, pass --package at least once")
	}

	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("Another collector instance is already running")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove pid file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		os.Exit(1)
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context) error {
	executor := command.NewExecutor(
		time.Duration(cfg.CommandTimeout)*time.Second,
		command.RetryPolicy{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   time.Duration(cfg.RetryDelay) * time.Second,
			Multiplier:  2,
		},
	)

	discoverer := device.NewDiscoverer(executor)
	devices, err := discoverer.Discover(ctx, device.Platform(strings.ToLower(cfg.Platform)), cfg.Devices)
	if err != nil {
		return err
	}
	for _, dev := range devices {
		logger.Info().
			Str("device", dev.ID).
			Str("platform", string(dev.Platform)).
			Str("os_version", dev.OSVersion.String()).
			Str("model", dev.Model).
			Msg("Device detected")
	}

	checker := health.NewChecker()
	if _, err := checker.Check(ctx); err != nil {
		logger.Warn().Err(err).Msg("Host resource check failed")
	}

	interval := time.Duration(cfg.Interval * float64(time.Second))
	eng := engine.New(executor, strategy.DefaultTable(), cfg.Defaults, interval)
	ctrl := lifecycle.NewController(executor, lifecycle.DefaultConfig())

	archiver, err := archive.NewService(archive.Config{
		Enabled:      cfg.Archive,
		DBPath:       archivePath(cfg),
		BatchSize:    archive.DefaultConfig().BatchSize,
		BatchTimeout: archive.DefaultConfig().BatchTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := archiver.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close archive")
		}
	}()

	orch := orchestrator.New(orchestrator.Config{
		Interval:         interval,
		Duration:         runDuration(cfg),
		MaxWorkers:       cfg.MaxWorkers,
		HealthCheckEvery: cfg.HealthCheckEvery,
		MeasureStartup:   cfg.Startup || cfg.AutoLifecycle,
		StartupOnly:      cfg.Startup && !cfg.AutoLifecycle,
		AutoLifecycle:    cfg.AutoLifecycle,
		OutputDir:        cfg.OutputDir,
	}, eng, ctrl, discoverer, archiver, cfg.Defaults)

	if cfg.MetricsListen != "" {
		metrics := observability.NewMetrics()
		executor.WithRecorder(metrics)
		eng.WithRecorder(metrics)
		orch.WithRecorder(metrics)
		srv := metrics.Serve(cfg.MetricsListen)
		defer func() {
			if err := srv.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to stop metrics endpoint")
			}
		}()
	}

	pairs := make([]orchestrator.Pair, 0, len(devices)*len(cfg.Packages))
	for _, dev := range devices {
		for _, pkg := range cfg.Packages {
			pairs = append(pairs, orchestrator.Pair{Device: dev, Package: pkg})
		}
	}

	return orch.Run(ctx, pairs)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func applyLogLevel(cfg *config.Config) {
	if cfg.Debug || cfg.Verbose {
		return
	}
	switch config.LogLevel(strings.ToLower(cfg.LogLevel)) {
	case config.LogLevelDebug:
		logger.SetLogLevel(logger.DebugLevel)
	case config.LogLevelInfo:
		logger.SetLogLevel(logger.InfoLevel)
	case config.LogLevelWarning:
		logger.SetLogLevel(logger.WarnLevel)
	case config.LogLevelError:
		logger.SetLogLevel(logger.ErrorLevel)
	}
}

func archivePath(cfg *config.Config) string {
	if cfg.ArchiveDB != "" {
		return cfg.ArchiveDB
	}

	return filepath.Join(cfg.OutputDir, "mperf.db")
}

func runDuration(cfg *config.Config) time.Duration {
	if cfg.Duration > 0 {
		return time.Duration(cfg.Duration) * time.Second
	}
	if cfg.AutoLifecycle && cfg.WaitTime > 0 {
		return time.Duration(cfg.WaitTime) * time.Second
	}

	return 0
}
