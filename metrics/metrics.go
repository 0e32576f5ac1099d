// Package metrics exposes the service's Prometheus collectors. Collectors
// register themselves on import via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExpensesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsplit_expenses_recorded_total",
		Help: "Total number of expenses accepted into a ledger.",
	})

	ExpensesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nsplit_expenses_rejected_total",
		Help: "Total number of expense submissions rejected, labelled by reason.",
	}, []string{"reason"})

	BalanceReads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsplit_balance_reads_total",
		Help: "Total number of balance computations served.",
	})

	PlansComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsplit_settlement_plans_total",
		Help: "Total number of settlement plans computed.",
	})

	TransfersPerPlan = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nsplit_settlement_transfers_per_plan",
		Help:    "Number of transfers in each computed settlement plan.",
		Buckets: prometheus.LinearBuckets(0, 2, 10),
	})

	LedgerCorruptions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nsplit_ledger_corruptions_total",
		Help: "Zero-sum invariant violations detected while reading a ledger.",
	})
)
