package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikebot_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hikebot_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Hub metrics
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hikebot_connections_active",
			Help: "Currently registered live connections",
		},
	)

	MessagesBroadcast = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikebot_messages_broadcast_total",
			Help: "Total messages broadcast to rooms",
		},
		[]string{"role"},
	)

	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hikebot_broadcast_failures_total",
			Help: "Individual connection sends that failed during broadcast",
		},
	)

	// Pipeline metrics. Outcomes: gate_miss, no_intent, no_match, posted, error.
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikebot_pipeline_runs_total",
			Help: "Observer pipeline runs by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hikebot_llm_request_seconds",
			Help:    "Generative backend call latency",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	LLMErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikebot_llm_errors_total",
			Help: "Generative backend call failures",
		},
		[]string{"kind"},
	)

	EnrichmentCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hikebot_enrichment_cache_hits_total",
			Help: "Weather cache hits",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hikebot_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
