package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	sourcesTotal   *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	sourceInFlight prometheus.Gauge
	pagesTotal     *prometheus.CounterVec
	chunksUpserted prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	sourcesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmscope",
			Subsystem: "ingest",
			Name:      "sources_total",
			Help:      "Sources processed by terminal status.",
		},
		[]string{"service", "status"},
	)
	sourceDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "firmscope",
			Subsystem: "ingest",
			Name:      "source_duration_seconds",
			Help:      "Per-source pipeline duration in seconds by terminal status.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	sourceInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "firmscope",
			Subsystem: "ingest",
			Name:      "sources_in_flight",
			Help:      "Number of source pipelines currently running.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pagesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "firmscope",
			Subsystem: "ingest",
			Name:      "pages_total",
			Help:      "Pages fetched or failed across all sources.",
		},
		[]string{"service", "result"},
	)
	chunksUpserted := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "firmscope",
			Subsystem: "ingest",
			Name:      "chunks_upserted_total",
			Help:      "Chunks written to the vector index.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(sourcesTotal, sourceDuration, sourceInFlight, pagesTotal, chunksUpserted)

	return &WorkerMetrics{
		registry:       registry,
		sourcesTotal:   sourcesTotal,
		sourceDuration: sourceDuration,
		sourceInFlight: sourceInFlight,
		pagesTotal:     pagesTotal,
		chunksUpserted: chunksUpserted,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSource() {
	m.sourceInFlight.Inc()
}

func (m *WorkerMetrics) FinishSource(service, status string, duration time.Duration) {
	m.sourceInFlight.Dec()
	m.sourcesTotal.WithLabelValues(service, status).Inc()
	m.sourceDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObservePages(service string, fetched, failed int) {
	if fetched > 0 {
		m.pagesTotal.WithLabelValues(service, "fetched").Add(float64(fetched))
	}
	if failed > 0 {
		m.pagesTotal.WithLabelValues(service, "failed").Add(float64(failed))
	}
}

func (m *WorkerMetrics) AddChunks(n int) {
	if n > 0 {
		m.chunksUpserted.Add(float64(n))
	}
}
