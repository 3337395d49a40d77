// Package metrics registers the service's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts handled requests by route.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_requests_total",
		Help: "Total requests handled, by route.",
	}, []string{"route"})

	// StageElapsed observes per-stage pipeline latency.
	StageElapsed = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hermes_stage_elapsed_seconds",
		Help:    "Pipeline stage execution time.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"stage"})

	// RateLimited counts rejected requests by org.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hermes_rate_limited_total",
		Help: "Requests rejected by the token-bucket limiter.",
	}, []string{"org"})

	// JobsEnqueued counts accepted asynchronous jobs.
	JobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hermes_jobs_enqueued_total",
		Help: "Jobs accepted onto the background queue.",
	})
)
