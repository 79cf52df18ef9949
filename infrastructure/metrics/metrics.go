// Package metrics provides Prometheus metrics collection
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ingestion pipeline metrics
	IngestionRunsTotal    *prometheus.CounterVec
	IngestionStageDuration *prometheus.HistogramVec
	IngestionEntitiesTotal *prometheus.CounterVec
	IngestionDeadLetterTotal *prometheus.CounterVec

	// Graph write metrics
	GraphWritesTotal    *prometheus.CounterVec
	GraphWriteDuration  *prometheus.HistogramVec
	GraphHotEdgeRetries *prometheus.CounterVec

	// Traversal metrics
	TraversalRunsTotal    *prometheus.CounterVec
	TraversalHopsObserved *prometheus.HistogramVec
	TraversalDuration     *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal        *prometheus.CounterVec
	CacheMissesTotal      *prometheus.CounterVec
	CacheInvalidationsTotal *prometheus.CounterVec

	// Resilience metrics
	CircuitBreakerStateChanges *prometheus.CounterVec
	OutboxPendingGauge         *prometheus.GaugeVec
	OutboxDrainDuration        *prometheus.HistogramVec

	// Error metrics
	ErrorsTotal *prometheus.CounterVec

	// Service health
	ServiceUptime prometheus.Gauge
	ServiceInfo   *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestionRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_runs_total",
				Help: "Total number of ingestion pipeline runs",
			},
			[]string{"tenant", "status"},
		),
		IngestionStageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingestion_stage_duration_seconds",
				Help:    "Duration of each ingestion DAG stage",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tenant", "stage"},
		),
		IngestionEntitiesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_entities_total",
				Help: "Total number of entities extracted per ingestion run",
			},
			[]string{"tenant", "entity_type"},
		),
		IngestionDeadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingestion_dead_letter_total",
				Help: "Total number of ingestion documents routed to the dead-letter queue",
			},
			[]string{"tenant", "reason"},
		),

		GraphWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_writes_total",
				Help: "Total number of graph write transactions",
			},
			[]string{"tenant", "entity_type", "status"},
		),
		GraphWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graph_write_duration_seconds",
				Help:    "Duration of graph write transactions",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"tenant", "entity_type"},
		),
		GraphHotEdgeRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graph_hot_edge_retries_total",
				Help: "Total number of serialized retries for supernode/hot-edge writes",
			},
			[]string{"tenant"},
		),

		TraversalRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "traversal_runs_total",
				Help: "Total number of traversal queries executed",
			},
			[]string{"tenant", "strategy", "status"},
		),
		TraversalHopsObserved: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "traversal_hops_observed",
				Help:    "Number of hops actually traversed per query",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"tenant", "strategy"},
		),
		TraversalDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "traversal_duration_seconds",
				Help:    "Duration of traversal queries",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tenant", "strategy"},
		),

		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_hits_total",
				Help: "Total number of semantic/subgraph cache hits",
			},
			[]string{"tenant", "tier"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_misses_total",
				Help: "Total number of semantic/subgraph cache misses",
			},
			[]string{"tenant", "tier"},
		),
		CacheInvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "semcache_invalidations_total",
				Help: "Total number of cache invalidations, by trigger",
			},
			[]string{"tenant", "trigger"},
		),

		CircuitBreakerStateChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_state_changes_total",
				Help: "Total number of circuit breaker state transitions",
			},
			[]string{"breaker", "from", "to"},
		),
		OutboxPendingGauge: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vector_outbox_pending",
				Help: "Current number of pending vector-sync outbox entries",
			},
			[]string{"tenant"},
		),
		OutboxDrainDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vector_outbox_drain_duration_seconds",
				Help:    "Duration of periodic vector outbox drains",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tenant"},
		),

		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "errors_total",
				Help: "Total number of errors",
			},
			[]string{"service", "type", "operation"},
		),

		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "service_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version", "environment"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.IngestionRunsTotal,
			m.IngestionStageDuration,
			m.IngestionEntitiesTotal,
			m.IngestionDeadLetterTotal,
			m.GraphWritesTotal,
			m.GraphWriteDuration,
			m.GraphHotEdgeRetries,
			m.TraversalRunsTotal,
			m.TraversalHopsObserved,
			m.TraversalDuration,
			m.CacheHitsTotal,
			m.CacheMissesTotal,
			m.CacheInvalidationsTotal,
			m.CircuitBreakerStateChanges,
			m.OutboxPendingGauge,
			m.OutboxDrainDuration,
			m.ErrorsTotal,
			m.ServiceUptime,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0", getEnvironment()).Set(1)

	return m
}

// RecordIngestionRun records the outcome of an ingestion pipeline run.
func (m *Metrics) RecordIngestionRun(tenant, status string) {
	m.IngestionRunsTotal.WithLabelValues(tenant, status).Inc()
}

// RecordIngestionStage records the duration of one ingestion DAG stage.
func (m *Metrics) RecordIngestionStage(tenant, stage string, duration time.Duration) {
	m.IngestionStageDuration.WithLabelValues(tenant, stage).Observe(duration.Seconds())
}

// RecordGraphWrite records a graph write transaction.
func (m *Metrics) RecordGraphWrite(tenant, entityType, status string, duration time.Duration) {
	m.GraphWritesTotal.WithLabelValues(tenant, entityType, status).Inc()
	m.GraphWriteDuration.WithLabelValues(tenant, entityType).Observe(duration.Seconds())
}

// RecordTraversal records a traversal query's strategy, outcome, and hop count.
func (m *Metrics) RecordTraversal(tenant, strategy, status string, hops int, duration time.Duration) {
	m.TraversalRunsTotal.WithLabelValues(tenant, strategy, status).Inc()
	m.TraversalHopsObserved.WithLabelValues(tenant, strategy).Observe(float64(hops))
	m.TraversalDuration.WithLabelValues(tenant, strategy).Observe(duration.Seconds())
}

// RecordCacheHit records a semantic/subgraph cache tier hit.
func (m *Metrics) RecordCacheHit(tenant, tier string) {
	m.CacheHitsTotal.WithLabelValues(tenant, tier).Inc()
}

// RecordCacheMiss records a semantic/subgraph cache tier miss.
func (m *Metrics) RecordCacheMiss(tenant, tier string) {
	m.CacheMissesTotal.WithLabelValues(tenant, tier).Inc()
}

// RecordCircuitBreakerTransition records a breaker state change.
func (m *Metrics) RecordCircuitBreakerTransition(breaker, from, to string) {
	m.CircuitBreakerStateChanges.WithLabelValues(breaker, from, to).Inc()
}

// SetOutboxPending sets the current pending outbox entry count for a tenant.
func (m *Metrics) SetOutboxPending(tenant string, count int) {
	m.OutboxPendingGauge.WithLabelValues(tenant).Set(float64(count))
}

// RecordError records an error
func (m *Metrics) RecordError(service, errorType, operation string) {
	m.ErrorsTotal.WithLabelValues(service, errorType, operation).Inc()
}

// UpdateUptime updates the service uptime
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

// Helper functions

func getEnvironment() string {
	env := strings.ToLower(strings.TrimSpace(os.Getenv("ENVIRONMENT")))
	if env == "" {
		return "development"
	}
	return env
}

func isProduction() bool {
	return getEnvironment() == "production"
}

// Enabled returns whether Prometheus metrics should be exposed.
//
// Defaults:
// - production: disabled unless explicitly enabled via METRICS_ENABLED
// - non-production: enabled unless explicitly disabled via METRICS_ENABLED
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return !isProduction()
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("unknown")
	}
	return globalMetrics
}
