package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts handled HTTP requests.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// FeedFetchTotal counts feed page loads by source (cache/remote), page (cold/continuation) and result.
	FeedFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetch_total",
			Help: "Total number of feed page loads.",
		},
		[]string{"source", "page", "result"},
	)

	// FeedCacheLookups counts local cache reads by result (hit/miss/expired).
	FeedCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_cache_lookups_total",
			Help: "Total number of feed cache lookups.",
		},
		[]string{"result"},
	)

	// MutationsTotal counts optimistic mutations by kind and outcome.
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_mutations_total",
			Help: "Total number of optimistic feed mutations.",
		},
		[]string{"kind", "outcome"},
	)

	// DeltasApplied counts live changes merged into feeds.
	DeltasApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_deltas_applied_total",
			Help: "Total number of live changes merged into feeds.",
		},
		[]string{"type"},
	)

	// SubscriptionErrors counts failed live subscriptions.
	SubscriptionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_subscription_errors_total",
			Help: "Total number of live subscription failures.",
		},
	)

	// LiveSubscriptions is the number of open live subscriptions.
	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_live_subscriptions",
			Help: "Number of open live subscriptions.",
		},
	)

	// ActiveSessions is the number of hosted per-user views.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_active_sessions",
			Help: "Number of hosted feed sessions.",
		},
	)
)
