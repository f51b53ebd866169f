package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memories_retry_attempts_total",
			Help: "Attempts made by retry executors",
		},
		[]string{"executor"},
	)

	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memories_retry_exhausted_total",
			Help: "Operations that failed after using every attempt",
		},
		[]string{"executor"},
	)

	FanoutChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memories_fanout_chunks_total",
			Help: "Fan-out chunks by outcome",
		},
		[]string{"outcome"}, // ok, failed, aborted
	)

	LikeFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memories_like_resolution_total",
			Help: "Like state resolutions by strategy",
		},
		[]string{"strategy"}, // aggregate, edges, default
	)

	DraftSyncs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memories_draft_sync_total",
			Help: "Background draft synchronizations by outcome",
		},
		[]string{"op", "outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)
