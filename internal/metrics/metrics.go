package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts accepted score submissions by outcome
	// (first_score, new_high_score, not_improved).
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_submissions_total",
		Help: "The total number of accepted score submissions by outcome",
	}, []string{"outcome"})

	// StorageErrorsTotal counts failed operations against the score store.
	StorageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scoreboard_storage_errors_total",
		Help: "The total number of score store failures",
	})

	// SubmitLatency tracks the duration of the atomic submit write.
	SubmitLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scoreboard_submit_latency_seconds",
		Help:    "Latency of score submission writes",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPRequestsTotal counts gateway requests by route and status class.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scoreboard_http_requests_total",
		Help: "The total number of HTTP requests by route and status",
	}, []string{"route", "status"})
)
