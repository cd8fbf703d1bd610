package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(storageOpsTotal) }

var storageOpsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "object_storage_ops_total",
		Help: "Object storage operations, labeled by op and outcome.",
	},
	[]string{"op", "outcome"}, // op: upload|download|delete
)

func IncStorageOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	storageOpsTotal.WithLabelValues(norm(op), outcome).Inc()
}
