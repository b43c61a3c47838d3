package engine

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/mperf/internal/device"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
	"codeberg.org/mutker/mperf/internal/strategy"
)

type cacheKey struct {
	deviceID string
	metric   string
}

// cacheEntry serializes collection of one device-level metric. The entry
// mutex is held across the command, so concurrent app loops on the same
// device block and then reuse the fresh value instead of re-running it.
type cacheEntry struct {
	mu      sync.Mutex
	outcome Outcome
	valid   bool
}

// Engine resolves metrics through ordered strategy chains with per-device
// caching for device-level metrics.
type Engine struct {
	exec     Executor
	table    *strategy.Table
	defaults map[string]float64
	ttl      time.Duration
	recorder Recorder

	mu    sync.Mutex
	cache map[cacheKey]*cacheEntry
}

// New builds an engine. ttl is the sampling interval; a device-level
// sample younger than ttl is replicated instead of re-collected.
// defaults maps metric names to the value used when a chain is exhausted.
func New(exec Executor, table *strategy.Table, defaults map[string]float64, ttl time.Duration) *Engine {
	return &Engine{
		exec:     exec,
		table:    table,
		defaults: defaults,
		ttl:      ttl,
		recorder: nopRecorder{},
		cache:    make(map[cacheKey]*cacheEntry),
	}
}

// WithRecorder attaches a self-metrics recorder. Call before first use.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	if r != nil {
		e.recorder = r
	}

	return e
}

// Collect resolves one metric for one (device, app) pair. It always
// returns a usable Outcome; chain exhaustion yields the configured
// default with Degraded set.
func (e *Engine) Collect(ctx context.Context, dev device.Device, pkg, metric string) Outcome {
	if e.table.DeviceLevel(dev.Platform, metric) {
		return e.collectDeviceLevel(ctx, dev, pkg, metric)
	}

	return e.runChain(ctx, dev, pkg, metric)
}

func (e *Engine) collectDeviceLevel(ctx context.Context, dev device.Device, pkg, metric string) Outcome {
	key := cacheKey{dev.ID, metric}

	e.mu.Lock()
	entry, ok := e.cache[key]
	if !ok {
		entry = &cacheEntry{}
		e.cache[key] = entry
	}
	e.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.valid && time.Since(entry.outcome.At) < e.ttl {
		out := entry.outcome
		out.Replicated = true

		return out
	}

	out := e.runChain(ctx, dev, pkg, metric)
	if !out.Degraded {
		entry.outcome = out
		entry.valid = true
	}

	return out
}

func (e *Engine) runChain(ctx context.Context, dev device.Device, pkg, metric string) Outcome {
	chain := e.table.Select(dev.Platform, metric, dev.OSVersion)

	for _, s := range chain {
		if s.IsDefault() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		if s.Static != nil {
			if v, ok := s.Static(dev, pkg); ok {
				return e.success(dev, metric, s, v)
			}
			e.failure(dev, metric, s.Name, ErrParseFailure, nil)

			continue
		}

		out, err := e.exec.Execute(ctx, s.Command(dev, pkg))
		if err != nil {
			e.failure(dev, metric, s.Name, errors.CodeOf(err), err)

			continue
		}

		v, ok := s.Parse(out, pkg)
		if !ok {
			e.failure(dev, metric, s.Name, ErrParseFailure, nil)

			continue
		}

		return e.success(dev, metric, s, v)
	}

	e.recorder.SampleDegraded(string(dev.Platform), metric)
	logger.Debug().
		Str("device", dev.ID).
		Str("metric", metric).
		Str("error_code", string(ErrAllStrategiesExhausted)).
		Msg("all strategies exhausted, using default value")

	return Outcome{
		Metric:   metric,
		Value:    e.defaultFor(metric),
		Strategy: "default",
		At:       time.Now(),
		Degraded: true,
	}
}

func (e *Engine) success(dev device.Device, metric string, s strategy.Strategy, v float64) Outcome {
	e.recorder.SampleCollected(string(dev.Platform), metric, s.Name)

	return Outcome{
		Metric:    metric,
		Value:     v,
		Strategy:  s.Name,
		At:        time.Now(),
		Estimated: s.Estimated,
	}
}

func (e *Engine) failure(dev device.Device, metric, name string, code errors.ErrorCode, err error) {
	e.recorder.StrategyFailure(string(dev.Platform), metric, name, string(code))
	ev := logger.Debug().
		Str("device", dev.ID).
		Str("metric", metric).
		Str("strategy", name).
		Str("error_code", string(code))
	if err != nil {
		ev = ev.AnErr("error", err)
	}
	ev.Msg("collection strategy failed")
}

func (e *Engine) defaultFor(metric string) float64 {
	if v, ok := e.defaults[metric]; ok {
		return v
	}

	return 0
}
