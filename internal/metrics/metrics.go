package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// RequestsTotal counts handled HTTP requests by route pattern.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermai",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})

	ModelPredictionLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "model_prediction_latency_seconds",
		Help:    "Time spent on classifier inference including preprocessing.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5},
	})

	DatabaseOperationLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_operation_latency_seconds",
		Help:    "Time spent on database operations.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})

	// LLMRequestsTotal counts hosted LLM calls by calling component and outcome.
	LLMRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermai",
		Name:      "llm_requests_total",
		Help:      "Total number of hosted LLM requests by component and result.",
	}, []string{"component", "result"})

	AugmentCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermai",
		Name:      "augment_cache_total",
		Help:      "Augmentation cache lookups by result (hit, miss).",
	}, []string{"result"})

	CleanupDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dermai",
		Name:      "cleanup_deleted_total",
		Help:      "Total number of analysis records removed by retention cleanup.",
	})
)

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			ModelPredictionLatency,
			DatabaseOperationLatency,
			LLMRequestsTotal,
			AugmentCacheTotal,
			CleanupDeletedTotal,
		)
	})
}

func ObserveDatabase(operation string, start time.Time) {
	DatabaseOperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObservePrediction(start time.Time) {
	ModelPredictionLatency.Observe(time.Since(start).Seconds())
}
