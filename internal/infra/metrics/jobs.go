package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsFinishedTotal, variantOutcomesTotal, jobsReapedTotal) }

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_finished_total",
		Help: "Total number of generation jobs finished, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var variantOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_variants_total",
		Help: "Per-variant outcomes inside jobs.",
	},
	[]string{"outcome"}, // 'success', 'failure'
)

var jobsReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "generation_jobs_reaped_total",
		Help: "Jobs failed by the stale-job reaper.",
	},
)

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func IncVariant(outcome string) {
	variantOutcomesTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddJobsReaped(n int) {
	jobsReapedTotal.Add(float64(n))
}
