package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexMetrics tracks index rebuilds run from the CLI. The registry is
// written out as a node-exporter textfile since the process is short-lived.
type IndexMetrics struct {
	registry *prometheus.Registry

	buildTotal       *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	articlesIndexed  prometheus.Gauge
	embedBatchesDone prometheus.Counter
	lastSuccess      prometheus.Gauge
}

func NewIndexMetrics(service string) *IndexMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "builds_total",
			Help:      "Total index rebuilds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "build_duration_seconds",
			Help:      "Index rebuild duration in seconds by status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	articlesIndexed := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "articles",
			Help:        "Articles in the index after the last successful rebuild.",
			ConstLabels: constLabels,
		},
	)
	embedBatchesDone := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "embed_batches_total",
			Help:        "Embedding batches completed during rebuilds.",
			ConstLabels: constLabels,
		},
	)
	lastSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "index",
			Name:        "last_success_timestamp_seconds",
			Help:        "Unix time of the last successful rebuild.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(buildTotal, buildDuration, articlesIndexed, embedBatchesDone, lastSuccess)

	return &IndexMetrics{
		registry:         registry,
		buildTotal:       buildTotal,
		buildDuration:    buildDuration,
		articlesIndexed:  articlesIndexed,
		embedBatchesDone: embedBatchesDone,
		lastSuccess:      lastSuccess,
	}
}

func (m *IndexMetrics) ObserveBatch() {
	m.embedBatchesDone.Inc()
}

func (m *IndexMetrics) FinishBuild(service string, articles int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.buildTotal.WithLabelValues(service, status).Inc()
	m.buildDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.articlesIndexed.Set(float64(articles))
		m.lastSuccess.SetToCurrentTime()
	}
}

// WriteTextfile dumps the registry in the Prometheus text format.
func (m *IndexMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
