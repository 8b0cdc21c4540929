// Package metrics exposes Prometheus instrumentation for the dispatch
// pipeline, the provider drivers and the billing ledger. Collectors are
// registered on the default registry and served via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersProcessed counts orders reaching a terminal status.
	OrdersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "worker",
		Name:      "orders_processed_total",
		Help:      "Orders finished, labeled by terminal status.",
	}, []string{"status"})

	// OrderDuration tracks wall time from lease to terminal status.
	OrderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "recherche",
		Subsystem: "worker",
		Name:      "order_duration_seconds",
		Help:      "Processing time per leased order.",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// ProviderRequests counts driver invocations per order.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Provider search invocations, labeled by outcome.",
	}, []string{"provider", "outcome"})

	// ProviderCostUSD accumulates the API spend reported by drivers.
	ProviderCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "provider",
		Name:      "cost_usd_total",
		Help:      "Upstream API cost in USD.",
	}, []string{"provider"})

	// RawResults counts rows returned by providers.
	RawResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "provider",
		Name:      "raw_results_total",
		Help:      "Raw result rows collected.",
	}, []string{"provider"})

	// DedupOutcomes counts ingestion decisions.
	DedupOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "dedup",
		Name:      "outcomes_total",
		Help:      "Dedup decisions: new, duplicate or updated.",
	}, []string{"outcome"})

	// LedgerTransactions counts appended ledger rows.
	LedgerTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "billing",
		Name:      "ledger_transactions_total",
		Help:      "Ledger rows appended, labeled by type.",
	}, []string{"type"})

	// RateLimitRejections counts partner requests bounced with 429.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "recherche",
		Subsystem: "http",
		Name:      "rate_limit_rejections_total",
		Help:      "Partner requests rejected by the fixed-window limiter.",
	}, []string{"window"})
)
