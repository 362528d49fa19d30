package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects application metrics.
type Metrics interface {
	RecordRequest(ctx context.Context, labels RequestLabels)
	RecordLatency(ctx context.Context, durationMs float64, labels RequestLabels)
	RecordTokens(ctx context.Context, input, output int, labels RequestLabels)
	RecordCost(ctx context.Context, cost float64, labels RequestLabels)
	RecordCacheLookup(ctx context.Context, tenantID string, hit bool)
	RecordFallback(ctx context.Context, tenantID, toProvider string)
}

// RequestLabels contains metric dimensions.
type RequestLabels struct {
	TenantID string
	Model    string
	Provider string
	Status   string
}

// PrometheusMetrics implements Metrics backed by a prometheus registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	requestsTotal  *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	tokensTotal    *prometheus.CounterVec
	costTotal      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	fallbacksTotal *prometheus.CounterVec
}

// NewPrometheusMetrics creates a metrics collector with its own registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_routing_requests_total",
			Help: "Total routing requests by tenant, provider, model and status.",
		}, []string{"tenant", "provider", "model", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ai_routing_request_latency_ms",
			Help:    "End-to-end routing latency in milliseconds.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"tenant", "provider", "model", "status"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_routing_tokens_total",
			Help: "Total tokens processed, split by direction.",
		}, []string{"tenant", "provider", "model", "direction"}),
		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_routing_cost_usd_total",
			Help: "Total provider cost in USD.",
		}, []string{"tenant", "provider", "model"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_routing_cache_lookups_total",
			Help: "Semantic cache lookups by result.",
		}, []string{"tenant", "result"}),
		fallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ai_routing_fallbacks_total",
			Help: "Requests served by a fallback provider.",
		}, []string{"tenant", "to_provider"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestLatency,
		m.tokensTotal,
		m.costTotal,
		m.cacheLookups,
		m.fallbacksTotal,
	)

	return m
}

func (m *PrometheusMetrics) RecordRequest(_ context.Context, labels RequestLabels) {
	m.requestsTotal.WithLabelValues(labels.TenantID, labels.Provider, labels.Model, labels.Status).Inc()
}

func (m *PrometheusMetrics) RecordLatency(_ context.Context, durationMs float64, labels RequestLabels) {
	m.requestLatency.WithLabelValues(labels.TenantID, labels.Provider, labels.Model, labels.Status).Observe(durationMs)
}

func (m *PrometheusMetrics) RecordTokens(_ context.Context, input, output int, labels RequestLabels) {
	m.tokensTotal.WithLabelValues(labels.TenantID, labels.Provider, labels.Model, "input").Add(float64(input))
	m.tokensTotal.WithLabelValues(labels.TenantID, labels.Provider, labels.Model, "output").Add(float64(output))
}

func (m *PrometheusMetrics) RecordCost(_ context.Context, cost float64, labels RequestLabels) {
	m.costTotal.WithLabelValues(labels.TenantID, labels.Provider, labels.Model).Add(cost)
}

func (m *PrometheusMetrics) RecordCacheLookup(_ context.Context, tenantID string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(tenantID, result).Inc()
}

func (m *PrometheusMetrics) RecordFallback(_ context.Context, tenantID, toProvider string) {
	m.fallbacksTotal.WithLabelValues(tenantID, toProvider).Inc()
}

// Handler returns an HTTP handler exposing the registry in the
// Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NopMetrics discards all measurements. Used when metrics are disabled.
type NopMetrics struct{}

func (NopMetrics) RecordRequest(context.Context, RequestLabels)          {}
func (NopMetrics) RecordLatency(context.Context, float64, RequestLabels) {}
func (NopMetrics) RecordTokens(context.Context, int, int, RequestLabels) {}
func (NopMetrics) RecordCost(context.Context, float64, RequestLabels)    {}
func (NopMetrics) RecordCacheLookup(context.Context, string, bool)       {}
func (NopMetrics) RecordFallback(context.Context, string, string)        {}
