// Package metrics exposes Prometheus collectors for harvest runs.
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
	upstreamRequestsTotal      *prometheus.CounterVec
	upstreamRequestSeconds     *prometheus.HistogramVec
	pacingDelaySeconds         prometheus.Histogram
	crawlPagesTotal            *prometheus.CounterVec
	recordsSavedTotal          *prometheus.CounterVec
	runsTotal                  *prometheus.CounterVec
	credentialRefreshTotal     *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_upstream_requests_total",
				Help: "Upstream request attempts, labeled by endpoint path and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)

		upstreamRequestSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvest_upstream_request_duration_seconds",
				Help:    "Latency of upstream request attempts.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"endpoint"},
		)

		pacingDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "harvest_pacing_delay_seconds",
				Help:    "Delay inserted between upstream requests.",
				Buckets: []float64{0.5, 1, 1.5, 2, 2.5, 3, 3.5, 5},
			},
		)

		crawlPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_pages_total",
				Help: "Result pages accepted, labeled by crawl type.",
			},
			[]string{"crawl"},
		)

		recordsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_records_saved_total",
				Help: "Records handed to storage, labeled by record kind.",
			},
			[]string{"kind"},
		)

		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_runs_total",
				Help: "Completed harvest runs, labeled by command and status.",
			},
			[]string{"command", "status"},
		)

		credentialRefreshTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvest_credential_refresh_total",
				Help: "Credential refresh attempts, labeled by status.",
			},
			[]string{"status"},
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

// ObserveUpstream records one upstream attempt.
func ObserveUpstream(endpoint, outcome string, duration time.Duration) {
	Init()
	upstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	upstreamRequestSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObservePacing records an inserted delay.
func ObservePacing(delay time.Duration) {
	Init()
	pacingDelaySeconds.Observe(delay.Seconds())
}

// ObservePage increments the accepted page counter.
func ObservePage(crawl string) {
	Init()
	crawlPagesTotal.WithLabelValues(crawl).Inc()
}

// ObserveRecord increments the saved record counter.
func ObserveRecord(kind string) {
	Init()
	recordsSavedTotal.WithLabelValues(kind).Inc()
}

// ObserveRun increments the run counter.
func ObserveRun(command, status string) {
	Init()
	runsTotal.WithLabelValues(command, status).Inc()
}

// ObserveCredentialRefresh increments the credential refresh counter.
func ObserveCredentialRefresh(status string) {
	Init()
	credentialRefreshTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
