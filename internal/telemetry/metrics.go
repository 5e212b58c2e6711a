// Package telemetry exposes the service's Prometheus metrics.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cxd309/trip-engine/internal/engine"
	"github.com/cxd309/trip-engine/internal/planner"
)

const namespace = "trip_engine"

// Simulation outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeDegraded = "degraded" // at least one segment stopped short of its station
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
)

// Metrics holds every collector the service reports, on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	SimulationsTotal        *prometheus.CounterVec
	SimulationDuration      prometheus.Histogram
	SegmentAttempts         prometheus.Histogram
	UnreachedSegmentsTotal  prometheus.Counter
	ContinuityFindingsTotal *prometheus.CounterVec
	CacheLookupsTotal       *prometheus.CounterVec
	APIRequestsTotal        *prometheus.CounterVec
	APIRequestDuration      *prometheus.HistogramVec
	APIActiveConnections    prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SimulationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulations_total",
			Help:      "Simulations run, by outcome.",
		}, []string{"outcome"}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_duration_seconds",
			Help:      "Wall time spent computing a round trip.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		SegmentAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_attempts",
			Help:      "Integration attempts needed per segment.",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		UnreachedSegmentsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unreached_segments_total",
			Help:      "Segments that ended short of their station after every extension.",
		}),
		ContinuityFindingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "continuity_findings_total",
			Help:      "Continuity check findings, by kind.",
		}, []string{"kind"}),
		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups, by result.",
		}, []string{"result"}),
		APIRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "endpoint", "status"}),
		APIRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency, by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
		APIActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_connections",
			Help:      "HTTP requests currently being served.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SimulationsTotal,
		m.SimulationDuration,
		m.SegmentAttempts,
		m.UnreachedSegmentsTotal,
		m.ContinuityFindingsTotal,
		m.CacheLookupsTotal,
		m.APIRequestsTotal,
		m.APIRequestDuration,
		m.APIActiveConnections,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposes the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSimulation records a finished run.
func (m *Metrics) ObserveSimulation(res engine.SimulationResult, elapsed time.Duration) {
	m.SimulationDuration.Observe(elapsed.Seconds())

	outcome := OutcomeOK
	if d := res.Diagnostics; d != nil {
		for _, reports := range [][]planner.SegmentReport{d.Outbound, d.Return} {
			for _, r := range reports {
				m.SegmentAttempts.Observe(float64(r.Attempts))
			}
		}
		if n := d.Unreached(); n > 0 {
			outcome = OutcomeDegraded
			m.UnreachedSegmentsTotal.Add(float64(n))
		}
		m.ContinuityFindingsTotal.WithLabelValues("time_gap").Add(float64(len(d.Continuity.TimeGaps)))
		m.ContinuityFindingsTotal.WithLabelValues("position_jump").Add(float64(len(d.Continuity.PositionJumps)))
		m.ContinuityFindingsTotal.WithLabelValues("layover_stop").Add(float64(d.Continuity.LayoverStops))
	}
	m.SimulationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFailure records a run that did not produce a result.
func (m *Metrics) ObserveFailure(invalid bool) {
	if invalid {
		m.SimulationsTotal.WithLabelValues(OutcomeInvalid).Inc()
		return
	}
	m.SimulationsTotal.WithLabelValues(OutcomeError).Inc()
}

// ObserveCacheLookup records a result cache lookup.
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if hit {
		m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()
}
