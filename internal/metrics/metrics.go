// Package metrics exposes Prometheus collectors for the pipeline service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pipelinePagesTotal         *prometheus.CounterVec
	pipelineHealthScore        *prometheus.HistogramVec
	pipelineJobsTotal          *prometheus.CounterVec
	pipelineSnapshotsTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pipelinePagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seopipeline_pages_total",
				Help: "Total number of pages crawled, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		pipelineHealthScore = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seopipeline_health_score",
				Help:    "Histogram of per-page health scores, labeled by site.",
				Buckets: []float64{10, 25, 50, 60, 70, 80, 90, 100},
			},
			[]string{"site"},
		)

		pipelineJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seopipeline_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by status.",
			},
			[]string{"status"},
		)

		pipelineSnapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seopipeline_snapshots_total",
				Help: "Total number of ranking snapshots written, labeled by source.",
			},
			[]string{"source"},
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
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter and, for successful pages,
// records the health score.
func ObservePage(site, status string, healthScore int) {
	pipelinePagesTotal.WithLabelValues(site, status).Inc()
	if status == "ok" {
		pipelineHealthScore.WithLabelValues(site).Observe(float64(healthScore))
	}
}

// ObserveJob increments the job counter for the given terminal status.
func ObserveJob(status string) {
	pipelineJobsTotal.WithLabelValues(status).Inc()
}

// ObserveSnapshots adds to the snapshot counter for the given source.
func ObserveSnapshots(source string, count int) {
	if count > 0 {
		pipelineSnapshotsTotal.WithLabelValues(source).Add(float64(count))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}
