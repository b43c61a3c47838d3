// Package observability exposes the collector's own operational counters
// over an optional prometheus endpoint.
package observability

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/mperf/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 3 * time.Second
)

// Metrics implements the engine's Recorder and the orchestrator's tick
// accounting on top of a prometheus registry.
type Metrics struct {
	registry *prometheus.Registry

	samplesTotal     *prometheus.CounterVec
	degradedTotal    *prometheus.CounterVec
	strategyFailures *prometheus.CounterVec
	ticksTotal       *prometheus.CounterVec
	pairsRemoved     *prometheus.CounterVec
	commandsTotal    *prometheus.CounterVec
	commandRetries   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		samplesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_samples_total",
			Help: "Samples collected, by platform, metric and winning strategy.",
		}, []string{"platform", "metric", "strategy"}),
		degradedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_samples_degraded_total",
			Help: "Samples recorded with the configured default after chain exhaustion.",
		}, []string{"platform", "metric"}),
		strategyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_strategy_failures_total",
			Help: "Individual strategy failures, by failure reason.",
		}, []string{"platform", "metric", "strategy", "reason"}),
		ticksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_loop_ticks_total",
			Help: "Completed sampling ticks per (device, app) loop.",
		}, []string{"device", "app"}),
		pairsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_pairs_removed_total",
			Help: "Sampling loops stopped after repeated health-check failures.",
		}, []string{"device", "app"}),
		commandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_commands_total",
			Help: "External commands executed, by tool and outcome.",
		}, []string{"tool", "outcome"}),
		commandRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mperf_command_retries_total",
			Help: "Command attempts retried after a transient failure.",
		}, []string{"tool"}),
	}
}

func (m *Metrics) SampleCollected(platform, metric, strategy string) {
	m.samplesTotal.WithLabelValues(platform, metric, strategy).Inc()
}

func (m *Metrics) SampleDegraded(platform, metric string) {
	m.degradedTotal.WithLabelValues(platform, metric).Inc()
}

func (m *Metrics) StrategyFailure(platform, metric, strategy, reason string) {
	m.strategyFailures.WithLabelValues(platform, metric, strategy, reason).Inc()
}

func (m *Metrics) TickCompleted(deviceID, app string) {
	m.ticksTotal.WithLabelValues(deviceID, app).Inc()
}

func (m *Metrics) PairRemoved(deviceID, app string) {
	m.pairsRemoved.WithLabelValues(deviceID, app).Inc()
}

func (m *Metrics) CommandExecuted(tool string, success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.commandsTotal.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) CommandRetried(tool string) {
	m.commandRetries.WithLabelValues(tool).Inc()
}

// Server serves the /metrics endpoint when a listen address is configured.
type Server struct {
	srv *http.Server
}

// Serve starts the metrics listener in the background. Listen errors
// other than a clean shutdown are logged, not fatal.
func (m *Metrics) Serve(listen string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		logger.Info().Str("listen", listen).Msg("Metrics endpoint started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()

	return &Server{srv: srv}
}

func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.srv.Shutdown(ctx)
}
