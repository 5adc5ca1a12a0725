package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "connectfour"

// Metrics is safe to use through a nil pointer; every recorder becomes a
// no-op, which keeps tests free of registry plumbing.
type Metrics struct {
	matchesStarted  prometheus.Counter
	matchesFinished *prometheus.CounterVec
	movesRejected   *prometheus.CounterVec
	graceTimers     *prometheus.CounterVec
	connections     prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		matchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_started_total",
			Help:      "Matches that entered play.",
		}),
		matchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_finished_total",
			Help:      "Matches that ended, by outcome.",
		}, []string{"outcome"}),
		movesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_rejected_total",
			Help:      "Player actions dropped as no-ops, by reason.",
		}, []string{"reason"}),
		graceTimers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grace_timers_total",
			Help:      "Reconnection grace timers, by event.",
		}, []string{"event"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.matchesStarted, m.matchesFinished, m.movesRejected, m.graceTimers, m.connections)
	}
	return m
}

func (m *Metrics) MatchStarted() {
	if m == nil {
		return
	}
	m.matchesStarted.Inc()
}

func (m *Metrics) MatchFinished(outcome string) {
	if m == nil {
		return
	}
	m.matchesFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ActionRejected(reason string) {
	if m == nil {
		return
	}
	m.movesRejected.WithLabelValues(reason).Inc()
}

const (
	GraceStarted   = "started"
	GraceCancelled = "cancelled"
	GraceExpired   = "expired"
)

func (m *Metrics) Grace(event string) {
	if m == nil {
		return
	}
	m.graceTimers.WithLabelValues(event).Inc()
}

func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}
