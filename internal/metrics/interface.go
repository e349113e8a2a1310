package metrics

import "time"

// Metrics defines the interface for collecting matchmaking metrics.
type Metrics interface {
	IncLobbiesFormed()
	IncLobbiesCompleted()
	IncLobbiesCancelled(reason string)
	IncMapBans(auto bool)
	SetQueueSize(queueID string, size int)
	ObserveFinalize(result string, duration time.Duration)
}
