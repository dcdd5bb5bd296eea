package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetryAttempts tracks every attempt per wrapped operation
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakewatch_retry_attempts_total",
			Help: "Total number of retry-engine attempts",
		},
		[]string{"operation"},
	)

	// RetryExhausted tracks operations that failed after all attempts
	RetryExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakewatch_retry_exhausted_total",
			Help: "Total number of operations that exhausted every retry attempt",
		},
		[]string{"operation"},
	)

	// CleanupDuration tracks cleanup attempt latency per strategy
	CleanupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flakewatch_cleanup_duration_seconds",
			Help:    "Cleanup attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// CleanupRuns tracks cleanup attempts per strategy and outcome
	CleanupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flakewatch_cleanup_runs_total",
			Help: "Total number of cleanup attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// ActiveTransactions tracks currently open isolation transactions
	ActiveTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flakewatch_active_transactions",
			Help: "Number of currently open isolation transactions",
		},
	)

	// FlakyTests tracks the last analysis result per risk tier
	FlakyTests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flakewatch_flaky_tests",
			Help: "Flaky tests found by the last analysis",
		},
		[]string{"risk"},
	)
)
