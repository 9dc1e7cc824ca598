package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "news"

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	retrievalTotal         *prometheus.CounterVec
	retrievalErrorsTotal   *prometheus.CounterVec
	retrievalResults       *prometheus.HistogramVec
	retrievalTopSimilarity *prometheus.HistogramVec
	retrievalDuration      *prometheus.HistogramVec
	eventPublishFailures   *prometheus.CounterVec
	rateLimitedTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	retrievalTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "outcomes_total",
			Help:      "Completed retrievals by query mode and empty reason (\"hit\" when results were returned).",
		},
		[]string{"service", "endpoint", "mode", "reason"},
	)
	retrievalErrorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "errors_total",
			Help:      "Failed retrievals by error kind.",
		},
		[]string{"service", "endpoint", "kind"},
	)
	retrievalResults := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Distribution of results returned per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6},
		},
		[]string{"service", "endpoint", "mode"},
	)
	retrievalTopSimilarity := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "top_similarity",
			Help:      "Similarity of the best returned article.",
			Buckets:   []float64{0.1, 0.15, 0.2, 0.25, 0.3, 0.4, 0.5, 0.6, 0.8, 1},
		},
		[]string{"service", "endpoint", "mode"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds, embedding and index search included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "endpoint"},
	)
	eventPublishFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Retrieval audit events that could not be published.",
		},
		[]string{"service"},
	)
	rateLimitedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		},
		[]string{"service", "path"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		retrievalTotal,
		retrievalErrorsTotal,
		retrievalResults,
		retrievalTopSimilarity,
		retrievalDuration,
		eventPublishFailures,
		rateLimitedTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		retrievalTotal:         retrievalTotal,
		retrievalErrorsTotal:   retrievalErrorsTotal,
		retrievalResults:       retrievalResults,
		retrievalTopSimilarity: retrievalTopSimilarity,
		retrievalDuration:      retrievalDuration,
		eventPublishFailures:   eventPublishFailures,
		rateLimitedTotal:       rateLimitedTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

var knownPaths = map[string]struct{}{
	"/":          {},
	"/search":    {},
	"/v1/search": {},
	"/healthz":   {},
	"/metrics":   {},
}

// normalizePath keeps label cardinality bounded: article ids collapse into
// one route and anything unrouted is reported as "other".
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/v1/articles/") {
		return "/v1/articles/{article_id}"
	}
	if _, ok := knownPaths[path]; ok {
		return path
	}
	return "other"
}

// RecordRetrieval records a completed retrieval. An empty reason means the
// outcome carried results.
func (m *HTTPServerMetrics) RecordRetrieval(service, endpoint, mode, reason string, results int, topSimilarity float64, duration time.Duration) {
	if mode == "" {
		mode = "unknown"
	}
	if reason == "" {
		reason = "hit"
	}
	m.retrievalTotal.WithLabelValues(service, endpoint, mode, reason).Inc()
	m.retrievalResults.WithLabelValues(service, endpoint, mode).Observe(float64(results))
	m.retrievalDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
	if results > 0 {
		m.retrievalTopSimilarity.WithLabelValues(service, endpoint, mode).Observe(topSimilarity)
	}
}

func (m *HTTPServerMetrics) RecordRetrievalError(service, endpoint, kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.retrievalErrorsTotal.WithLabelValues(service, endpoint, kind).Inc()
}

func (m *HTTPServerMetrics) RecordEventPublishFailure(service string) {
	m.eventPublishFailures.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRateLimited(service, path string) {
	m.rateLimitedTotal.WithLabelValues(service, normalizePath(path)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
