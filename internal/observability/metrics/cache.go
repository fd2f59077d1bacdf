package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewEmbeddingCacheCounter registers the hit/miss/error counter used by the
// embedding cache decorator.
func NewEmbeddingCacheCounter(registry prometheus.Registerer) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding_cache",
			Name:      "requests_total",
			Help:      "Embedding cache lookups by result (hit or miss).",
		},
		[]string{"result"},
	)
	registry.MustRegister(counter)
	return counter
}
