package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(generationLatencyMs, generationRetriesTotal) }

var generationLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "generation_call_latency_ms",
		Help:    "Image generation/edit call latency distribution in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000, 60000},
	},
	[]string{"provider", "op", "success"},
)

var generationRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_retries_total",
		Help: "Retries of transient generation failures.",
	},
	[]string{"op"},
)

func ObserveGeneration(provider, op string, latencyMs int, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	generationLatencyMs.WithLabelValues(norm(provider), norm(op), s).Observe(float64(latencyMs))
}

func IncGenerationRetry(op string) {
	generationRetriesTotal.WithLabelValues(norm(op)).Inc()
}
