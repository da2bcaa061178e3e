// Package metrics exposes Prometheus collectors for the page generator.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesGeneratedTotal        *prometheus.CounterVec
	pageBytesTotal             prometheus.Counter
	generationDurationSeconds  *prometheus.HistogramVec
	slugCollisionsTotal        prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	jobsTotal                  *prometheus.CounterVec
	bulkRowsTotal              *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitedTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesGeneratedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_pages_total",
				Help: "Total number of page generations, labeled by origin and status.",
			},
			[]string{"origin", "status"},
		)

		pageBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagegen_page_bytes_total",
				Help: "Total number of rendered bytes uploaded to object storage.",
			},
		)

		generationDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pagegen_generation_duration_seconds",
				Help:    "Histogram of single page generation latencies, labeled by origin.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"origin"},
		)

		slugCollisionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pagegen_slug_collisions_total",
				Help: "Total number of slug conflicts reported by the catalog at persist time.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_jobs_total",
				Help: "Total number of bulk jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		bulkRowsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_bulk_rows_total",
				Help: "Total number of bulk rows handled, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pagegen_rate_limited_total",
				Help: "Total number of requests rejected by the per-owner rate limiter, labeled by route.",
			},
			[]string{"route"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pagegen_active_workers",
				Help: "Number of workers currently processing a bulk job.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Origin returns the label used for a page's origin.
func Origin(isBulk bool) string {
	if isBulk {
		return "bulk"
	}
	return "single"
}

// ObservePage records one page generation attempt.
func ObservePage(origin, status string, size int, duration time.Duration) {
	Init()
	pagesGeneratedTotal.WithLabelValues(origin, status).Inc()
	if size > 0 {
		pageBytesTotal.Add(float64(size))
	}
	generationDurationSeconds.WithLabelValues(origin).Observe(duration.Seconds())
}

// ObserveSlugCollision increments the persist-time slug conflict counter.
func ObserveSlugCollision() {
	Init()
	slugCollisionsTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	Init()
	jobsTotal.WithLabelValues(status).Inc()
}

// ObserveRow increments the bulk row counter for outcome.
func ObserveRow(outcome string) {
	Init()
	bulkRowsTotal.WithLabelValues(outcome).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimited increments the rejected-request counter for route.
func ObserveRateLimited(route string) {
	Init()
	rateLimitedTotal.WithLabelValues(route).Inc()
}
