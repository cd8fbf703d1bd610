package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaDecisionsTotal, ledgerWriteFailures) }

var quotaDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "quota_decisions_total",
		Help: "Admission decisions, labeled by outcome and limit source.",
	},
	[]string{"outcome", "source"}, // outcome: allowed|denied|fail_open; source: tier|grant|unlimited
)

var ledgerWriteFailures = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "usage_ledger_write_failures_total",
		Help: "Usage increments that failed after a completed job.",
	},
)

func IncQuotaDecision(outcome, source string) {
	quotaDecisionsTotal.WithLabelValues(norm(outcome), norm(source)).Inc()
}

func IncLedgerWriteFailure() {
	ledgerWriteFailures.Inc()
}
