// Package metrics defines Prometheus metrics for restock-tracker.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "restock"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 when the last liveness probe succeeded.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 when the last readiness probe succeeded.",
	})
)

// Checker metrics.
var (
	CheckerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checker_runs_total",
		Help:      "Total checker iterations by outcome.",
	}, []string{"checker", "status"})

	CheckerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "checker_duration_seconds",
		Help:      "Duration of checker iterations in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"checker"})

	ObservationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "observations_total",
		Help:      "Total product observations applied to the state table.",
	}, []string{"source"})

	ChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "changes_total",
		Help:      "Total availability transitions detected.",
	}, []string{"source", "available"})

	StaleKeysRemovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stale_keys_removed_total",
		Help:      "Total product keys removed from the state table as stale.",
	}, []string{"source"})

	SourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_requests_total",
		Help:      "Total upstream source requests by kind and outcome.",
	}, []string{"source", "kind", "status"})

	SourceDailyLimitHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_daily_limit_hits_total",
		Help:      "Total requests refused by a source daily request limit.",
	}, []string{"source"})

	MaintenanceRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_runs_total",
		Help:      "Total cron maintenance job runs by job name.",
	}, []string{"job"})
)

// Store metrics.
var (
	StoreLockWait = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_lock_wait_seconds",
		Help:      "Time spent waiting for an exclusive document lock.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"document"})

	StoreCorruptReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_corrupt_reads_total",
		Help:      "Total reads that fell back to the default because content was unparseable.",
	}, []string{"document"})

	StoreCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_cache_hits_total",
		Help:      "Total document reads served from the mtime cache.",
	})

	HistoryEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "history_entries_total",
		Help:      "Total entries appended to the history log.",
	})
)

// Notification metrics.
var (
	SMSSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sms_sent_total",
		Help:      "Total SMS messages delivered to the provider.",
	})

	SMSFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sms_failures_total",
		Help:      "Total SMS send failures.",
	})

	SMSBlockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sms_blocked_total",
		Help:      "Total SMS messages suppressed before reaching the provider.",
	}, []string{"reason"})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of SMS provider calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	AutoUnsubscribesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auto_unsubscribes_total",
		Help:      "Total subscriptions removed by the high-stock auto-unsubscribe rule.",
	})
)
