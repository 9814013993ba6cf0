// Package metrics exposes Prometheus collectors for the watcher service.
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

// Cycle outcomes.
const (
	OutcomeSkipped = "skipped"
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

var (
	cyclesTotal                *prometheus.CounterVec
	cycleDurationSeconds       prometheus.Histogram
	captchaAttemptsTotal       *prometheus.CounterVec
	recordsFoundTotal          prometheus.Counter
	publishTotal               *prometheus.CounterVec
	dedupCacheSize             prometheus.Gauge
	cacheClearsTotal           prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatcher_cycles_total",
				Help: "Total number of check cycles, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "bidwatcher_cycle_duration_seconds",
				Help:    "Histogram of check cycle durations for cycles that opened a browser.",
				Buckets: []float64{1, 5, 10, 20, 30, 60, 120},
			},
		)

		captchaAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatcher_captcha_attempts_total",
				Help: "Total number of captcha answers, labeled by result.",
			},
			[]string{"result"},
		)

		recordsFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bidwatcher_records_found_total",
				Help: "Total number of result rows extracted.",
			},
		)

		publishTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatcher_publish_total",
				Help: "Total number of publish attempts, labeled by status.",
			},
			[]string{"status"},
		)

		dedupCacheSize = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "bidwatcher_dedup_cache_size",
				Help: "Number of records currently held in the dedup cache.",
			},
		)

		cacheClearsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bidwatcher_cache_clears_total",
				Help: "Total number of scheduled dedup cache clears.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bidwatcher_http_requests_total",
				Help: "Total number of ops HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bidwatcher_http_request_duration_seconds",
				Help:    "Histogram of ops HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCycle records the outcome of one cycle. Duration is ignored for skipped cycles.
func ObserveCycle(outcome string, duration time.Duration) {
	Init()
	cyclesTotal.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		cycleDurationSeconds.Observe(duration.Seconds())
	}
}

// ObserveCaptchaAttempt counts one captcha answer as accepted, rejected, or error.
func ObserveCaptchaAttempt(result string) {
	Init()
	captchaAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveRecordsFound adds extracted rows.
func ObserveRecordsFound(n int) {
	Init()
	if n > 0 {
		recordsFoundTotal.Add(float64(n))
	}
}

// ObservePublish counts one publish attempt.
func ObservePublish(success bool) {
	Init()
	status := "success"
	if !success {
		status = "failed"
	}
	publishTotal.WithLabelValues(status).Inc()
}

// SetCacheSize reports the current dedup cache size.
func SetCacheSize(n int) {
	Init()
	dedupCacheSize.Set(float64(n))
}

// ObserveCacheClear counts one scheduled clear.
func ObserveCacheClear() {
	Init()
	cacheClearsTotal.Inc()
	dedupCacheSize.Set(0)
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
