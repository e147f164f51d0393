package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vocabulary and embedding Prometheus metrics.
var (
	VocabularyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "vocabulary_requests_total",
			Help:      "Total number of remote vocabulary requests",
		},
		[]string{"provider", "model", "status"},
	)

	VocabularyRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simsearch",
			Name:      "vocabulary_request_duration_seconds",
			Help:      "Remote vocabulary request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	VocabularyCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "vocabulary_cache_total",
			Help:      "Vocabulary cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	EmbeddingMissingTokensTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "embedding_missing_tokens_total",
			Help:      "Tokens skipped because the vocabulary has no vector for them",
		},
	)
)

var vocabMetricsRegistered bool

// RegisterVocabularyMetrics registers vocabulary and embedding metrics. Must be called once from main.
func RegisterVocabularyMetrics() {
	if vocabMetricsRegistered {
		return
	}
	prometheus.MustRegister(VocabularyRequestsTotal)
	prometheus.MustRegister(VocabularyRequestDuration)
	prometheus.MustRegister(VocabularyCacheTotal)
	prometheus.MustRegister(EmbeddingMissingTokensTotal)
	vocabMetricsRegistered = true
}
