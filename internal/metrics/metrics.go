package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunCount counts pipeline runs by outcome.
	RunCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendcurator_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"outcome"}, // ok, fetch_failed, persist_failed, cancelled, misconfigured
	)

	// StageDuration tracks wall time spent in each pipeline stage.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendcurator_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 18), // 1ms to ~2min
		},
		[]string{"stage"},
	)

	EnrichmentCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendcurator_enrichment_items_total",
			Help: "Selected items processed by enrichment",
		},
		[]string{"outcome"}, // ok, no_analysis, no_match, error
	)

	ClassifierFallbackCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trendcurator_classifier_fallback_total",
			Help: "Classifications replaced with the default category",
		},
		[]string{"reason"},
	)

	// ProviderCallLatency is recorded by every outbound adapter (llm, search, telegram, amqp).
	ProviderCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trendcurator_provider_call_latency_ms",
			Help:    "External provider call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(50, 2, 10), // 50ms to ~25s
		},
		[]string{"provider", "status"},
	)
)

// IncrementRun counts a finished run.
func IncrementRun(outcome string) {
	RunCount.WithLabelValues(outcome).Inc()
}

// ObserveStage records how long a stage took.
func ObserveStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func IncrementEnrichment(outcome string) {
	EnrichmentCount.WithLabelValues(outcome).Inc()
}

func IncrementClassifierFallback(reason string) {
	ClassifierFallbackCount.WithLabelValues(reason).Inc()
}

// RecordProviderCall records an outbound provider call.
func RecordProviderCall(provider string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ProviderCallLatency.WithLabelValues(provider, status).Observe(float64(d.Milliseconds()))
}
