package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal          *prometheus.CounterVec
	batchDuration       *prometheus.HistogramVec
	batchInFlight       prometheus.Gauge
	documentsTotal      *prometheus.CounterVec
	embeddingCacheTotal *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "batch_process_total",
			Help:      "Total processed ingestion batches by status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "batch_process_duration_seconds",
			Help:      "Ingestion batch duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "batch_process_in_flight",
			Help:      "Number of in-flight ingestion batches.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Documents stored by the worker.",
		},
		[]string{"service"},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, documentsTotal)

	return &WorkerMetrics{
		registry:            registry,
		batchTotal:          batchTotal,
		batchDuration:       batchDuration,
		batchInFlight:       batchInFlight,
		documentsTotal:      documentsTotal,
		embeddingCacheTotal: NewEmbeddingCacheCounter(registry),
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) EmbeddingCacheTotal() *prometheus.CounterVec {
	return m.embeddingCacheTotal
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

// FinishBatch records a processed batch; stored counts documents upserted
// before any failure.
func (m *WorkerMetrics) FinishBatch(service string, stored int, duration time.Duration, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if stored > 0 {
		m.documentsTotal.WithLabelValues(service).Add(float64(stored))
	}
}
