package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the matchmaking core.
type Service struct {
	LobbiesFormed    prometheus.Counter
	LobbiesCompleted prometheus.Counter
	LobbiesCancelled *prometheus.CounterVec
	MapBans          *prometheus.CounterVec
	QueueSize        *prometheus.GaugeVec
	FinalizeAttempts *prometheus.CounterVec
	FinalizeDuration prometheus.Histogram

	reg prometheus.Registerer
}
