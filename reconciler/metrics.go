package reconciler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sweep counters, served by the Prometheus endpoint when the service runs with -m.
var (
	sweepsRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_reconciler_sweeps_total",
		Help: "Number of reconciliation sweeps run.",
	})
	sweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_reconciler_sweeps_skipped_total",
		Help: "Number of block triggers dropped because a sweep was already running.",
	})
	intentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fund_reconciler_intents_confirmed_total",
		Help: "Number of intents promoted to confirmed.",
	}, []string{"kind"})
	intentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fund_reconciler_intents_failed_total",
		Help: "Number of intents marked failed from reverted transactions.",
	}, []string{"kind"})
	receiptErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fund_reconciler_receipt_errors_total",
		Help: "Number of receipt lookups that returned an error.",
	})
)
