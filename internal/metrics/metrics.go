// Package metrics holds the Prometheus collectors shared by the bot, the HTTP
// API and the roll worker. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Commands           *prometheus.CounterVec
	TurnsCommitted     prometheus.Counter
	FallbackNarrations prometheus.Counter
	GenerationSeconds  prometheus.Histogram
	RollsRecorded      *prometheus.CounterVec
	Throttled          prometheus.Counter
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmbot_commands_total",
				Help: "Commands handled, by command and channel",
			},
			[]string{"command", "channel"},
		),
		TurnsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmbot_turns_committed_total",
			Help: "Narrative turns appended to a session transcript",
		}),
		FallbackNarrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmbot_fallback_narrations_total",
			Help: "Turns where generation failed and the fallback narration was used",
		}),
		GenerationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dmbot_generation_duration_seconds",
			Help:    "Duration of narrative generation calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		RollsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dmbot_rolls_recorded_total",
				Help: "Dice roll records persisted, by outcome",
			},
			[]string{"outcome"},
		),
		Throttled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "dmbot_throttled_commands_total",
			Help: "Commands rejected by the per-player cooldown",
		}),
	}
	reg.MustRegister(m.Commands, m.TurnsCommitted, m.FallbackNarrations, m.GenerationSeconds, m.RollsRecorded, m.Throttled)
	return m
}

func (m *Metrics) Command(command, channel string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(command, channel).Inc()
}

func (m *Metrics) Generation(d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.GenerationSeconds.Observe(d.Seconds())
	if failed {
		m.FallbackNarrations.Inc()
	}
}

func (m *Metrics) TurnCommitted() {
	if m == nil {
		return
	}
	m.TurnsCommitted.Inc()
}

func (m *Metrics) Roll(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RollsRecorded.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Throttle() {
	if m == nil {
		return
	}
	m.Throttled.Inc()
}
