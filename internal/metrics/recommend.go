package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recommendation pipeline metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsmarter",
			Name:      "search_requests_total",
			Help:      "Total recommendation searches by retrieval mode",
		},
		[]string{"mode", "status"}, // mode: "prefilter" / "vector" / "hybrid" / "fallback"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsmarter",
			Name:      "search_duration_seconds",
			Help:      "Recommendation search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	SearchResultsReturned = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsmarter",
			Name:      "search_results_returned",
			Help:      "Number of items returned per search",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		},
		[]string{"mode"},
	)

	RerankerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shopsmarter",
			Name:      "reranker_requests_total",
			Help:      "Total reranker requests",
		},
		[]string{"provider", "model", "status"},
	)

	RerankerRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shopsmarter",
			Name:      "reranker_request_duration_seconds",
			Help:      "Reranker request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		},
		[]string{"provider", "model"},
	)
)

var recommendMetricsRegistered bool

// RegisterRecommendMetrics registers Prometheus recommendation metrics. Must be called once from main.
func RegisterRecommendMetrics() {
	if recommendMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResultsReturned)
	prometheus.MustRegister(RerankerRequestsTotal)
	prometheus.MustRegister(RerankerRequestDuration)
	recommendMetricsRegistered = true
}
