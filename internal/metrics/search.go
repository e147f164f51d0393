package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "search_queries_total",
			Help:      "Total number of search queries",
		},
		[]string{"mode", "status"}, // status: "exact" / "approximate" / "error" / "canceled"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "simsearch",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"mode"},
	)

	SortedAccessesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "sorted_accesses_total",
			Help:      "Entries consumed from sorted-access streams",
		},
		[]string{"attribute"},
	)

	RandomAccessesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "random_accesses_total",
			Help:      "Random-access value lookups",
		},
		[]string{"attribute", "result"}, // "found" / "missing"
	)

	DegradedAttributesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "simsearch",
			Name:      "degraded_attributes_total",
			Help:      "Attributes whose source failed during a search",
		},
		[]string{"attribute"},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchQueriesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SortedAccessesTotal)
	prometheus.MustRegister(RandomAccessesTotal)
	prometheus.MustRegister(DegradedAttributesTotal)
	searchMetricsRegistered = true
}
