// Package metrics exposes Prometheus collectors for the crawl service.
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
	crawlJobsTotal             *prometheus.CounterVec
	crawlJobDurationSeconds    *prometheus.HistogramVec
	poolWorkers                prometheus.Gauge
	poolRefreshesTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_jobs_total",
				Help: "Total number of crawl jobs completed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlJobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawl_job_duration_seconds",
				Help:    "Histogram of end-to-end crawl job durations.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"status"},
		)

		poolWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "pool_workers",
				Help: "Number of live worker processes in the pool.",
			},
		)

		poolRefreshesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pool_refreshes_total",
				Help: "Total pool refresh attempts, labeled by result.",
			},
			[]string{"result"},
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
				Help:    "Histogram of HTTP request latencies, labeled by method and path.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "path"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJob records one completed crawl job.
func ObserveJob(status string, duration time.Duration) {
	if crawlJobsTotal == nil {
		return
	}
	crawlJobsTotal.WithLabelValues(status).Inc()
	crawlJobDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// SetPoolWorkers records the live worker-process count.
func SetPoolWorkers(n int) {
	if poolWorkers == nil {
		return
	}
	poolWorkers.Set(float64(n))
}

// ObserveRefresh records one pool refresh attempt.
func ObserveRefresh(result string) {
	if poolRefreshesTotal == nil {
		return
	}
	poolRefreshesTotal.WithLabelValues(result).Inc()
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, path string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, path).Observe(duration.Seconds())
}
