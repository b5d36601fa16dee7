package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Gate pipeline metrics
	GateOutcomesTotal    *prometheus.CounterVec
	GatePipelineDuration prometheus.Histogram

	// Publish metrics
	PublishDecisionsTotal *prometheus.CounterVec

	// Review metrics
	ReviewDecisionsTotal *prometheus.CounterVec
	ReviewQueueDepth     prometheus.Gauge

	// Federation metrics
	FederationBatchesTotal *prometheus.CounterVec
	FederationItemsTotal   *prometheus.CounterVec

	// Catalog cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// Install metrics
	InstallationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bazaar_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GateOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_gate_outcomes_total",
				Help: "Security gate outcomes by gate and verdict",
			},
			[]string{"gate", "verdict"},
		),
		GatePipelineDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bazaar_gate_pipeline_duration_seconds",
				Help:    "End-to-end security gate pipeline duration",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
			},
		),
		PublishDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_publish_decisions_total",
				Help: "Publish pipeline decisions by outcome and target tier",
			},
			[]string{"outcome", "tier"},
		),
		ReviewDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_review_decisions_total",
				Help: "Review queue decisions",
			},
			[]string{"decision"},
		),
		ReviewQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "bazaar_review_queue_depth",
				Help: "Number of pending review records",
			},
		),
		FederationBatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_federation_batches_total",
				Help: "Federation sync batches by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		FederationItemsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_federation_items_total",
				Help: "Federation sync items by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_cache_hits_total",
				Help: "Catalog cache hits by layer",
			},
			[]string{"layer"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_cache_misses_total",
				Help: "Catalog cache misses by layer",
			},
			[]string{"layer"},
		),
		InstallationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bazaar_installations_total",
				Help: "Asset installations by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GateOutcomesTotal,
		m.GatePipelineDuration,
		m.PublishDecisionsTotal,
		m.ReviewDecisionsTotal,
		m.ReviewQueueDepth,
		m.FederationBatchesTotal,
		m.FederationItemsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.InstallationsTotal,
	)

	return m
}

// Handler returns the HTTP handler exposing the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTPRequest records metrics for a completed HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
