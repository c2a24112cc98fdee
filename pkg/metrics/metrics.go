// Package metrics defines the Prometheus collectors used by the search and
// analytics services and serves them for scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "thesis_search"

var latencyBuckets = prometheus.ExponentialBuckets(0.001, 2.5, 10)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	SearchQueriesTotal   *prometheus.CounterVec
	SearchLatency        *prometheus.HistogramVec
	SearchResultsCount   *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	IndexBuildsTotal     *prometheus.CounterVec
	IndexBuildDuration   *prometheus.HistogramVec
	IndexDocuments       *prometheus.GaugeVec
	LoadedModels         prometheus.Gauge
	AnalyticsEvents      *prometheus.CounterVec
}

// New registers the collectors with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg. It panics when a name
// is already taken, so call it once per registry.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Name: name, Help: help}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return f.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Name: name, Help: help, Buckets: buckets}, labels)
	}

	return &Metrics{
		HTTPRequestsTotal:   counter("http_requests_total", "HTTP requests by method, route and status.", "method", "path", "status"),
		HTTPRequestDuration: histogram("http_request_duration_seconds", "HTTP request latency.", latencyBuckets, "method", "path"),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "http_requests_in_flight", Help: "HTTP requests being served.",
		}),

		SearchQueriesTotal: counter("search_queries_total", "Searches by index type and result (ok, empty_query, error).", "index", "result"),
		SearchLatency:      histogram("search_latency_seconds", "Search latency by index type and cache status.", latencyBuckets, "index", "cache_status"),
		SearchResultsCount: histogram("search_results_count", "Results returned per search.", []float64{0, 1, 5, 10, 25, 50, 100}, "index"),

		CacheHitsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "cache_hits_total", Help: "Result cache hits.",
		}),
		CacheMissesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Name: "cache_misses_total", Help: "Result cache misses.",
		}),

		IndexBuildsTotal:   counter("index_builds_total", "Engine constructions by index type and status.", "index", "status"),
		IndexBuildDuration: histogram("index_build_duration_seconds", "Engine construction time including model load and vectorization.", prometheus.ExponentialBuckets(0.01, 4, 10), "index"),
		IndexDocuments: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "index_documents", Help: "Documents per constructed index.",
		}, []string{"index"}),
		LoadedModels: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Name: "loaded_models", Help: "Pretrained models held in memory.",
		}),

		AnalyticsEvents: counter("analytics_events_total", "Analytics events by outcome (published, dropped, consumed, failed).", "outcome"),
	}
}
