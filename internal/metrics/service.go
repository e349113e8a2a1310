package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/edvart/inhouse-queue/internal/broadcast"
	"github.com/edvart/inhouse-queue/internal/errs"
	"github.com/edvart/inhouse-queue/internal/lobby"
	"github.com/edvart/inhouse-queue/internal/queue"
)

var _ Metrics = (*Service)(nil)

// Finalize results.
const (
	ResultRecorded  = "recorded"
	ResultDuplicate = "duplicate"
	ResultFailed    = "failed"
)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		LobbiesFormed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_lobbies_formed_total",
			Help: "The total number of lobbies formed from the queue.",
		}),
		LobbiesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inhouse_lobbies_completed_total",
			Help: "The total number of lobbies that finished the map ban and were recorded.",
		}),
		LobbiesCancelled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inhouse_lobbies_cancelled_total",
			Help: "The total number of cancelled lobbies by reason.",
		}, []string{"reason"}),
		MapBans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inhouse_map_bans_total",
			Help: "The total number of map bans, split by manual and automatic.",
		}, []string{"mode"}),
		QueueSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "inhouse_queue_size",
			Help: "The number of players currently waiting in the queue.",
		}, []string{"queue"}),
		FinalizeAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inhouse_finalize_attempts_total",
			Help: "The total number of match record attempts by result.",
		}, []string{"result"}),
		FinalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inhouse_finalize_duration_seconds",
			Help:    "The duration of individual match record attempts.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		reg: reg,
	}

	reg.MustRegister(
		s.LobbiesFormed,
		s.LobbiesCompleted,
		s.LobbiesCancelled,
		s.MapBans,
		s.QueueSize,
		s.FinalizeAttempts,
		s.FinalizeDuration,
	)

	return s
}

// RegisterSessions exposes the live session count.
func (s *Service) RegisterSessions(count func() int) {
	s.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "inhouse_sessions",
		Help: "The number of live client sessions.",
	}, func() float64 { return float64(count()) }))
}

func (s *Service) IncLobbiesFormed() {
	s.LobbiesFormed.Inc()
}

func (s *Service) IncLobbiesCompleted() {
	s.LobbiesCompleted.Inc()
}

func (s *Service) IncLobbiesCancelled(reason string) {
	s.LobbiesCancelled.WithLabelValues(reasonLabel(reason)).Inc()
}

func (s *Service) IncMapBans(auto bool) {
	mode := "manual"
	if auto {
		mode = "auto"
	}
	s.MapBans.WithLabelValues(mode).Inc()
}

func (s *Service) SetQueueSize(queueID string, size int) {
	s.QueueSize.WithLabelValues(queueID).Set(float64(size))
}

func (s *Service) ObserveFinalize(result string, duration time.Duration) {
	s.FinalizeAttempts.WithLabelValues(result).Inc()
	s.FinalizeDuration.Observe(duration.Seconds())
}

// Run updates metrics from published events until ctx is cancelled or the
// tap is closed.
func (s *Service) Run(ctx context.Context, events <-chan broadcast.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			s.Observe(msg)
		}
	}
}

// Observe records a single published event. Lobbies filled with bots are not
// counted as formed or completed.
func (s *Service) Observe(msg broadcast.Message) {
	switch e := msg.Payload.(type) {
	case lobby.Formed:
		if !e.Lobby.HasBots {
			s.IncLobbiesFormed()
		}
	case lobby.BanApplied:
		s.IncMapBans(e.Ban.Auto)
	case lobby.Cancelled:
		s.IncLobbiesCancelled(e.Reason)
	case lobby.StateChanged:
		if e.Lobby.Phase == lobby.PhaseComplete && !e.Lobby.HasBots {
			s.IncLobbiesCompleted()
		}
	case queue.SizeChanged:
		s.SetQueueSize(e.QueueID, e.Size)
	}
}

// reasonLabel maps free-form cancel reasons onto a small label set.
func reasonLabel(reason string) string {
	switch {
	case strings.HasPrefix(reason, "ready check"):
		return "ready_timeout"
	case strings.Contains(reason, "left"), strings.Contains(reason, "too few"), strings.Contains(reason, "unbalanced"):
		return "players_left"
	case strings.HasPrefix(reason, "match could not be recorded"):
		return "persistence"
	case strings.HasPrefix(reason, "internal error"):
		return "internal"
	default:
		return "admin"
	}
}

// InstrumentRecorder wraps r so every attempt is counted and timed.
func (s *Service) InstrumentRecorder(r lobby.Recorder) lobby.Recorder {
	return &recorder{next: r, metrics: s}
}

type recorder struct {
	next    lobby.Recorder
	metrics Metrics
}

func (r *recorder) CreateMatchRecord(ctx context.Context, rec lobby.MatchRecord) (string, error) {
	start := time.Now()
	id, err := r.next.CreateMatchRecord(ctx, rec)
	result := ResultRecorded
	switch {
	case errors.Is(err, errs.ErrDuplicateRecord):
		result = ResultDuplicate
	case err != nil:
		result = ResultFailed
	}
	r.metrics.ObserveFinalize(result, time.Since(start))
	return id, err
}
