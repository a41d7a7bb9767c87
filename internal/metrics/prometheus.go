package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request count by route pattern and status code
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "api",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "microtasks",
		Subsystem: "api",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	PanicsRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "api",
		Name:      "panics_recovered_total",
		Help:      "Handler panics caught by the recover middleware",
	})

	// Ledger operations by name and outcome (ok or the error kind)
	LedgerOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "ledger",
		Name:      "operations_total",
		Help:      "Ledger operations by outcome",
	}, []string{"operation", "outcome"})

	LedgerOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "microtasks",
		Subsystem: "ledger",
		Name:      "operation_duration_seconds",
		Help:      "Ledger operation latency including the database transaction",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	// Coins moved per journal entry type, in absolute value
	CoinsMovedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "ledger",
		Name:      "coins_moved_total",
		Help:      "Coins moved by committed ledger entries",
	}, []string{"entry_type"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "jobs",
		Name:      "notifications_total",
		Help:      "Notification jobs by stage and outcome",
	}, []string{"stage", "outcome"})

	NotificationsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "microtasks",
		Subsystem: "jobs",
		Name:      "notifications_purged_total",
		Help:      "Read notifications deleted by the retention job",
	})
)
