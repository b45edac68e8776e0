package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/platinummonkey/clientops/pkg/lifecycle"
)

// Transition outcomes used as the "outcome" label
const (
	OutcomeApplied     = "applied"
	OutcomeNoop        = "noop"
	OutcomeRejected    = "rejected"
	OutcomeConflict    = "conflict"
	OutcomeNotFound    = "not_found"
	OutcomeUnavailable = "unavailable"
	OutcomeInFlight    = "in_flight"
	OutcomeFailed      = "failed"
)

// OutcomeOf maps an action error onto an outcome label
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeApplied
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return OutcomeRejected
	case errors.Is(err, lifecycle.ErrConflict):
		return OutcomeConflict
	case errors.Is(err, lifecycle.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, lifecycle.ErrUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, lifecycle.ErrInFlight):
		return OutcomeInFlight
	default:
		return OutcomeFailed
	}
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engine metrics
	TransitionsTotal *prometheus.CounterVec
	ActionDuration   *prometheus.HistogramVec
	BatchItemsTotal  *prometheus.CounterVec

	// Platform client metrics
	PlatformRequestsTotal   *prometheus.CounterVec
	PlatformRequestDuration *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Dashboard gauges, refreshed by the aggregator
	DealsByStage           *prometheus.GaugeVec
	PipelineConversionRate prometheus.Gauge
	OnboardingByPhase      *prometheus.GaugeVec
	OnboardingStalled      *prometheus.GaugeVec
	DunningSequences       *prometheus.GaugeVec
	DunningRecoveryRate    prometheus.Gauge
	RevenueAtRiskMinor     *prometheus.GaugeVec
	ClientsByRisk          *prometheus.GaugeVec

	// Aggregator metrics
	AggregationRunsTotal  *prometheus.CounterVec
	AggregationDuration   prometheus.Histogram
	LastAggregationUnixTS prometheus.Gauge

	mirror *OTelMetrics
}

// MirrorTo also records engine and platform metrics on o
func (m *Metrics) MirrorTo(o *OTelMetrics) {
	if m != nil {
		m.mirror = o
	}
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clientops_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_transitions_total",
				Help: "Transition attempts by entity, target state and outcome",
			},
			[]string{"entity", "target", "outcome"},
		),
		ActionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clientops_action_duration_seconds",
				Help:    "Guarded action duration in seconds, including the platform round trip",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"entity", "action"},
		),
		BatchItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_batch_items_total",
				Help: "Per-item outcomes of bulk actions",
			},
			[]string{"action", "outcome"},
		),

		PlatformRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_platform_requests_total",
				Help: "Requests made to the billing/CRM service",
			},
			[]string{"operation", "status"},
		),
		PlatformRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clientops_platform_request_duration_seconds",
				Help:    "Billing/CRM service request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		DealsByStage: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_deals",
				Help: "Deals per pipeline stage",
			},
			[]string{"stage"},
		),
		PipelineConversionRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clientops_pipeline_conversion_ratio",
				Help: "Won deals over closed (won + lost) deals",
			},
		),
		OnboardingByPhase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_onboarding_clients",
				Help: "Clients in onboarding per phase",
			},
			[]string{"phase"},
		),
		OnboardingStalled: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_onboarding_stalled_clients",
				Help: "Stalled onboarding clients per severity",
			},
			[]string{"severity"},
		),
		DunningSequences: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_dunning_sequences",
				Help: "Dunning sequences per status",
			},
			[]string{"status"},
		),
		DunningRecoveryRate: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clientops_dunning_recovery_ratio",
				Help: "Recovered over resolved sequences this month",
			},
		),
		RevenueAtRiskMinor: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_revenue_at_risk_minor_units",
				Help: "Open invoice amounts of active and escalated sequences, in minor units",
			},
			[]string{"currency"},
		),
		ClientsByRisk: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "clientops_clients_by_risk",
				Help: "Clients per health risk level",
			},
			[]string{"risk"},
		),

		AggregationRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clientops_aggregation_runs_total",
				Help: "Aggregator runs by status",
			},
			[]string{"status"},
		),
		AggregationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "clientops_aggregation_duration_seconds",
				Help:    "Aggregator run duration in seconds",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		LastAggregationUnixTS: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "clientops_last_aggregation_timestamp_seconds",
				Help: "Unix time of the last successful aggregation",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.TransitionsTotal,
		m.ActionDuration,
		m.BatchItemsTotal,
		m.PlatformRequestsTotal,
		m.PlatformRequestDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.DealsByStage,
		m.PipelineConversionRate,
		m.OnboardingByPhase,
		m.OnboardingStalled,
		m.DunningSequences,
		m.DunningRecoveryRate,
		m.RevenueAtRiskMinor,
		m.ClientsByRisk,
		m.AggregationRunsTotal,
		m.AggregationDuration,
		m.LastAggregationUnixTS,
	)

	return m
}

// RecordTransition counts one transition attempt. Safe on a nil receiver.
func (m *Metrics) RecordTransition(entity, target, outcome string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(entity, target, outcome).Inc()
	if m.mirror != nil {
		m.mirror.recordTransition(entity, target, outcome)
	}
}

// ObserveAction records how long a guarded action took. Safe on a nil receiver.
func (m *Metrics) ObserveAction(entity, action string, start time.Time) {
	if m == nil {
		return
	}
	d := time.Since(start)
	m.ActionDuration.WithLabelValues(entity, action).Observe(d.Seconds())
	if m.mirror != nil {
		m.mirror.observeAction(entity, action, d)
	}
}

// RecordBatch counts the per-item outcomes of a bulk action. Safe on a nil receiver.
func (m *Metrics) RecordBatch(action string, succeeded, failed int) {
	if m == nil {
		return
	}
	m.BatchItemsTotal.WithLabelValues(action, "succeeded").Add(float64(succeeded))
	m.BatchItemsTotal.WithLabelValues(action, "failed").Add(float64(failed))
	if m.mirror != nil {
		m.mirror.recordBatch(action, succeeded, failed)
	}
}

// RecordPlatformRequest counts one billing/CRM request. Safe on a nil receiver.
func (m *Metrics) RecordPlatformRequest(operation string, status int, start time.Time) {
	if m == nil {
		return
	}
	d := time.Since(start)
	m.PlatformRequestsTotal.WithLabelValues(operation, strconv.Itoa(status)).Inc()
	m.PlatformRequestDuration.WithLabelValues(operation).Observe(d.Seconds())
	if m.mirror != nil {
		m.mirror.recordPlatformRequest(operation, status, d)
	}
}

// RecordCache counts a cache lookup. Safe on a nil receiver.
func (m *Metrics) RecordCache(cacheType string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cacheType).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cacheType).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled with the mux route template so IDs do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tmpl, err := current.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
