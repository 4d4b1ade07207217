package reviews

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchesTotal tracks review fetches by final outcome.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_fetches_total",
			Help: "Total review fetch requests by outcome",
		},
		[]string{"outcome"},
	)

	// FetchDuration tracks end-to-end fetch latency.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviews_fetch_duration_seconds",
			Help:    "Review fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// CacheEvents tracks cache hits, misses and writes.
	CacheEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_cache_events_total",
			Help: "Cache events by type",
		},
		[]string{"event"},
	)

	// RetryAttempts counts individual retry waits.
	RetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reviews_retry_attempts_total",
			Help: "Total retry attempts across all fetches",
		},
	)

	// UpstreamErrors tracks classified upstream failures.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviews_upstream_errors_total",
			Help: "Upstream errors by classified kind",
		},
		[]string{"kind"},
	)
)
