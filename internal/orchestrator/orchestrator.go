package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/mperf/internal/archive"
	"codeberg.org/mutker/mperf/internal/engine"
	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/lifecycle"
	"codeberg.org/mutker/mperf/internal/logger"
	"codeberg.org/mutker/mperf/internal/report"
	"codeberg.org/mutker/mperf/internal/store"
	"codeberg.org/mutker/mperf/internal/strategy"
	"golang.org/x/sync/errgroup"
)

var errFactory = errors.New()

// batch carries one tick's samples for one (device, app) pair to the
// writer goroutine.
type batch struct {
	deviceID string
	entries  []store.Entry
	records  []archive.Record
}

type Orchestrator struct {
	cfg       Config
	engine    *engine.Engine
	ctrl      *lifecycle.Controller
	prober    Prober
	archiver  archive.Archiver
	recorder  Recorder
	renderers []report.Renderer
	defaults  map[string]float64

	stores map[string]*store.Store
}

func New(cfg Config, eng *engine.Engine, ctrl *lifecycle.Controller, prober Prober,
	archiver archive.Archiver, defaults map[string]float64,
) *Orchestrator {
	cfg.normalize()

	return &Orchestrator{
		cfg:      cfg,
		engine:   eng,
		ctrl:     ctrl,
		prober:   prober,
		archiver: archiver,
		recorder: nopRecorder{},
		defaults: defaults,
		stores:   make(map[string]*store.Store),
	}
}

// WithRecorder attaches a self-metrics recorder. Call before Run.
func (o *Orchestrator) WithRecorder(r Recorder) *Orchestrator {
	if r != nil {
		o.recorder = r
	}

	return o
}

// WithRenderers attaches report renderers invoked per device after the
// JSON reports are written. A renderer failure is logged, not fatal.
func (o *Orchestrator) WithRenderers(renderers ...report.Renderer) *Orchestrator {
	o.renderers = append(o.renderers, renderers...)

	return o
}

// Run samples all pairs until the duration elapses or ctx is cancelled,
// then persists per-device reports. One pair failing never aborts the
// others; Run errors only on setup or persistence problems.
func (o *Orchestrator) Run(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return errFactory.WithMessage(ErrInvalidConfig, "no (device, app) pairs to monitor")
	}

	for _, p := range pairs {
		if _, ok := o.stores[p.Device.ID]; !ok {
			o.stores[p.Device.ID] = store.New(o.defaults)
		}
	}

	runCtx := ctx
	if o.cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.Duration)
		defer cancel()
	}

	batches := make(chan batch)
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		o.writer(batches)
	}()

	logger.Info().
		Int("pairs", len(pairs)).
		Int("max_workers", o.cfg.MaxWorkers).
		Dur("interval", o.cfg.Interval).
		Msg("Sampling started")

	g := &errgroup.Group{}
	g.SetLimit(o.cfg.MaxWorkers)
	for _, p := range pairs {
		pair := p
		g.Go(func() error {
			o.runPair(runCtx, pair, batches)
			return nil
		})
	}
	_ = g.Wait()

	close(batches)
	writerWG.Wait()

	if o.cfg.AutoLifecycle && o.ctrl != nil {
		o.stopAll(ctx, pairs)
	}

	return o.persist(len(pairs))
}

// runPair owns one sampling loop. The stop signal is observed at tick
// boundaries only; an in-flight command finishes within its own timeout.
func (o *Orchestrator) runPair(ctx context.Context, pair Pair, batches chan<- batch) {
	if (o.cfg.MeasureStartup || o.cfg.AutoLifecycle) && o.ctrl != nil {
		o.measureStartup(ctx, pair, batches)
	}
	if o.cfg.StartupOnly {
		return
	}

	ticks := 0
	for {
		if ctx.Err() != nil {
			return
		}

		ticks++
		if ticks%o.cfg.HealthCheckEvery == 0 {
			if err := o.prober.Probe(ctx, pair.Device); err != nil {
				if ctx.Err() != nil {
					return
				}
				o.recorder.PairRemoved(pair.Device.ID, pair.Package)
				logger.Warn().
					Str("device", pair.Device.ID).
					Str("app", pair.Package).
					Str("error_code", string(ErrDeviceUnreachable)).
					Err(err).
					Msg("Device unreachable, stopping loop")

				return
			}
		}

		o.tick(ctx, pair, batches)
		o.recorder.TickCompleted(pair.Device.ID, pair.Package)

		select {
		case <-ctx.Done():
			return
		case <-time.After(o.cfg.Interval):
		}
	}
}

// tick collects every configured metric once and ships the whole batch
// so aggregation sees the tick atomically. The run's stop signal is not
// threaded into the commands: an in-flight tick drains under the
// executor's own per-command timeouts, and the loop exits at the next
// boundary instead of recording fabricated defaults for a killed tick.
func (o *Orchestrator) tick(ctx context.Context, pair Pair, batches chan<- batch) {
	cmdCtx := context.WithoutCancel(ctx)

	b := batch{
		deviceID: pair.Device.ID,
		entries:  make([]store.Entry, 0, len(o.cfg.Metrics)),
		records:  make([]archive.Record, 0, len(o.cfg.Metrics)),
	}

	for _, metric := range o.cfg.Metrics {
		out := o.engine.Collect(cmdCtx, pair.Device, pair.Package, metric)
		sample := store.Sample{
			Timestamp:  out.At,
			Value:      out.Value,
			Strategy:   out.Strategy,
			Degraded:   out.Degraded,
			Estimated:  out.Estimated,
			Replicated: out.Replicated,
		}
		b.entries = append(b.entries, store.Entry{
			Entity: pair.Package,
			Metric: metric,
			Sample: sample,
		})
		b.records = append(b.records, archive.Record{
			Timestamp: out.At,
			DeviceID:  pair.Device.ID,
			Entity:    pair.Package,
			Metric:    metric,
			Value:     out.Value,
			Strategy:  out.Strategy,
			Degraded:  out.Degraded,
			Estimated: out.Estimated,
		})
	}

	batches <- b
}

func (o *Orchestrator) measureStartup(ctx context.Context, pair Pair, batches chan<- batch) {
	res, err := o.ctrl.Restart(ctx, pair.Device, pair.Package)
	if err != nil {
		// Startup time is omitted for this pair but monitoring proceeds.
		logger.Warn().
			Str("device", pair.Device.ID).
			Str("app", pair.Package).
			Str("error_code", string(errors.ErrLifecycleSequenceFailure)).
			Err(err).
			Msg("Lifecycle sequence failed, startup time omitted")

		return
	}

	logger.Info().
		Str("device", pair.Device.ID).
		Str("app", pair.Package).
		Str("method", res.Method).
		Float64("startup_seconds", res.Startup).
		Bool("estimated", res.Estimated).
		Msg("Startup measured")

	sample := store.Sample{
		Timestamp: res.At,
		Value:     res.Startup,
		Strategy:  res.Method,
		Estimated: res.Estimated,
	}
	batches <- batch{
		deviceID: pair.Device.ID,
		entries: []store.Entry{{
			Entity: pair.Package,
			Metric: strategy.MetricStartup,
			Sample: sample,
		}},
		records: []archive.Record{{
			Timestamp: res.At,
			DeviceID:  pair.Device.ID,
			Entity:    pair.Package,
			Metric:    strategy.MetricStartup,
			Value:     res.Startup,
			Strategy:  res.Method,
			Estimated: res.Estimated,
		}},
	}
}

// writer is the single goroutine appending to stores and the archive, so
// the per-device stores see batches whole and in arrival order.
func (o *Orchestrator) writer(batches <-chan batch) {
	for b := range batches {
		st, ok := o.stores[b.deviceID]
		if !ok {
			continue
		}
		if err := st.AppendBatch(b.entries); err != nil {
			logger.Error().Err(err).Msg("Failed to append batch")
			continue
		}
		if err := o.archiver.Record(context.Background(), b.records); err != nil {
			logger.Error().Err(err).Msg("Failed to archive batch")
		}
	}
}

func (o *Orchestrator) stopAll(ctx context.Context, pairs []Pair) {
	// Shutdown context may already be cancelled; stops get a fresh bound.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	for _, pair := range pairs {
		if err := o.ctrl.Stop(stopCtx, pair.Device, pair.Package); err != nil {
			logger.Warn().
				Str("device", pair.Device.ID).
				Str("app", pair.Package).
				Err(err).
				Msg("Final force-stop failed")
		}
	}
}

// persist writes each device's reports. Single-device runs write directly
// into the output directory; multi-device runs get device_<id> subtrees.
func (o *Orchestrator) persist(pairCount int) error {
	for deviceID, st := range o.stores {
		st.Close()

		dir := o.cfg.OutputDir
		if len(o.stores) > 1 {
			dir = filepath.Join(dir, fmt.Sprintf("device_%s", sanitizeID(deviceID)))
		}
		if err := st.WriteReports(dir); err != nil {
			return errFactory.Wrap(ErrPersistStore, err)
		}
		if len(o.renderers) > 0 {
			results := st.Snapshot()
			summaries := store.Summarize(results)
			for _, r := range o.renderers {
				if err := r.Render(results, summaries, dir); err != nil {
					logger.Warn().
						Str("device", deviceID).
						Err(err).
						Msg("Renderer failed")
				}
			}
		}
		logger.Info().
			Str("device", deviceID).
			Str("dir", dir).
			Msg("Reports written")
	}

	logger.Info().Int("pairs", pairCount).Msg("Run complete")

	return nil
}

func sanitizeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}

	return string(out)
}
