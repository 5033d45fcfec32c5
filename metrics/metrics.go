package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the catalog's Prometheus collectors. All methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Search metrics
	SearchRequestsTotal *prometheus.CounterVec
	SearchDuration      prometheus.Histogram
	SearchCacheHits     prometheus.Counter

	// Index metrics
	RebuildsTotal            *prometheus.CounterVec
	RebuildDuration          prometheus.Histogram
	IndexEntries             prometheus.Gauge
	RebuildSkippedFilesTotal prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_search_requests_total",
				Help: "Total number of search queries by scope",
			},
			[]string{"scope"},
		),
		SearchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_search_duration_seconds",
				Help:    "Time spent scoring, sorting and faceting a search",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
		SearchCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_search_cache_hits_total",
				Help: "Total number of searches answered from the result cache",
			},
		),

		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_rebuilds_total",
				Help: "Total number of index rebuilds by outcome",
			},
			[]string{"status"},
		),
		RebuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_rebuild_duration_seconds",
				Help:    "Index rebuild duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		IndexEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_index_entries",
				Help: "Number of entries in the published index",
			},
		),
		RebuildSkippedFilesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "catalog_rebuild_skipped_files_total",
				Help: "Total number of files that could not be read or parsed during rebuilds",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SearchRequestsTotal,
		m.SearchDuration,
		m.SearchCacheHits,
		m.RebuildsTotal,
		m.RebuildDuration,
		m.IndexEntries,
		m.RebuildSkippedFilesTotal,
	)

	return m
}

// NewWithRuntimeCollectors also registers the Go runtime and process collectors.
func NewWithRuntimeCollectors(registry *prometheus.Registry) *Metrics {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(registry)
}

func (m *Metrics) ObserveHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) ObserveSearch(scope string, duration time.Duration, cacheHit bool) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(scope).Inc()
	m.SearchDuration.Observe(duration.Seconds())
	if cacheHit {
		m.SearchCacheHits.Inc()
	}
}

func (m *Metrics) ObserveRebuild(status string, duration time.Duration, entries int, skippedFiles int) {
	if m == nil {
		return
	}
	m.RebuildsTotal.WithLabelValues(status).Inc()
	m.RebuildDuration.Observe(duration.Seconds())
	m.RebuildSkippedFilesTotal.Add(float64(skippedFiles))
	if status == "completed" {
		m.IndexEntries.Set(float64(entries))
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
