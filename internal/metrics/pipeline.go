package metrics

import "github.com/prometheus/client_golang/prometheus"

// Pipeline and retrieval Prometheus metrics.
var (
	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "layoutdex",
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	PipelineFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layoutdex",
			Name:      "pipeline_fallbacks_total",
			Help:      "Stage failures absorbed by their documented fallback",
		},
		[]string{"stage", "kind"},
	)

	RerankRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "layoutdex",
			Name:      "rerank_requests_total",
			Help:      "Total rerank requests",
		},
		[]string{"status"}, // "success" / "error"
	)

	SearchCandidatesReturned = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "layoutdex",
			Name:      "search_candidates_returned",
			Help:      "Candidates returned per search",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20, 50},
		},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(PipelineStageDuration)
	prometheus.MustRegister(PipelineFallbacksTotal)
	prometheus.MustRegister(RerankRequestsTotal)
	prometheus.MustRegister(SearchCandidatesReturned)
	pipelineMetricsRegistered = true
}
