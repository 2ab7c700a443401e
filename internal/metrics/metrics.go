// Package metrics holds the prometheus instrumentation for the lobby
// runtime. A single Metrics value is created at bootstrap and shared.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every collector the server exports.
type Metrics struct {
	LobbiesActive   prometheus.Gauge
	SessionsActive  prometheus.Gauge
	FramesIn        prometheus.Counter
	FramesOut       prometheus.Counter
	DroppedSends    prometheus.Counter
	AnswersScored   prometheus.Counter
	LobbiesReaped   prometheus.Counter
	LobbiesCreated  prometheus.Counter
}

// New registers all collectors on reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LobbiesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spektrum", Name: "lobbies_active",
			Help: "Number of lobbies currently registered.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "spektrum", Name: "sessions_active",
			Help: "Number of websocket sessions currently attached.",
		}),
		FramesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "frames_in_total",
			Help: "Inbound websocket text frames decoded.",
		}),
		FramesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "frames_out_total",
			Help: "Outbound websocket text frames written.",
		}),
		DroppedSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "dropped_sends_total",
			Help: "Best-effort sends skipped because a session buffer was full or closed.",
		}),
		AnswersScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "answers_scored_total",
			Help: "Answer events processed by lobby engines.",
		}),
		LobbiesReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "lobbies_reaped_total",
			Help: "Empty lobbies removed by the registry sweep.",
		}),
		LobbiesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spektrum", Name: "lobbies_created_total",
			Help: "Lobbies created over the process lifetime.",
		}),
	}

	reg.MustRegister(
		m.LobbiesActive, m.SessionsActive,
		m.FramesIn, m.FramesOut, m.DroppedSends,
		m.AnswersScored, m.LobbiesReaped, m.LobbiesCreated,
	)
	return m
}

// NewUnregistered returns a bundle backed by a private registry, for tests
// that do not care about scraping.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
