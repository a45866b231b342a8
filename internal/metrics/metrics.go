// Package metrics exposes Prometheus collectors for the portfolio service.
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
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	metadataExtractionsTotal   *prometheus.CounterVec
	screenshotAttemptsTotal    *prometheus.CounterVec
	screenshotDurationSeconds  *prometheus.HistogramVec
	projectIngestionsTotal     *prometheus.CounterVec
	webhookEventsTotal         *prometheus.CounterVec
	headlessActiveRenders      prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"method", "route"},
		)

		metadataExtractionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_metadata_extractions_total",
				Help: "Page metadata extractions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		screenshotAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_screenshot_attempts_total",
				Help: "Screenshot strategy attempts, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		screenshotDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_screenshot_duration_seconds",
				Help:    "Histogram of screenshot strategy latencies.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
			},
			[]string{"strategy"},
		)

		projectIngestionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_project_ingestions_total",
				Help: "Project ingestions, labeled by terminal state.",
			},
			[]string{"outcome"},
		)

		webhookEventsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_webhook_events_total",
				Help: "Payment webhook events, labeled by type and outcome.",
			},
			[]string{"type", "outcome"},
		)

		headlessActiveRenders = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_headless_active_renders",
				Help: "Number of headless browser renders in flight.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveMetadata counts one extraction outcome ("ok", "unreachable", "invalid").
func ObserveMetadata(outcome string) {
	Init()
	metadataExtractionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScreenshotAttempt records one strategy attempt.
func ObserveScreenshotAttempt(strategy, outcome string, duration time.Duration) {
	Init()
	screenshotAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	screenshotDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveIngestion counts a project ingestion by terminal state.
func ObserveIngestion(outcome string) {
	Init()
	projectIngestionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveWebhookEvent counts a payment webhook event.
func ObserveWebhookEvent(eventType, outcome string) {
	Init()
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// IncHeadlessRenders increments the in-flight headless render gauge.
func IncHeadlessRenders() {
	Init()
	headlessActiveRenders.Inc()
}

// DecHeadlessRenders decrements the in-flight headless render gauge.
func DecHeadlessRenders() {
	Init()
	headlessActiveRenders.Dec()
}

// Middleware records request count and latency per chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}
