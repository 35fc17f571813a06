// Package metrics exposes server counters to Prometheus. A nil *Metrics is
// valid and records nothing, so tests and tools can skip registration.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sonetto"

type Metrics struct {
	sessionsOnline  prometheus.Gauge
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	pushes          *prometheus.CounterVec
	gachaPulls      *prometheus.CounterVec
	takeovers       prometheus.Counter
	rateLimited     prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sessionsOnline: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_online",
			Help:      "Open client connections.",
		}),
		commands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by result.",
		}, []string{"cmd", "result"}),
		commandDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Handler latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"cmd"}),
		pushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_total",
			Help:      "Server pushes enqueued.",
		}, []string{"cmd"}),
		gachaPulls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gacha_pulls_total",
			Help:      "Gacha pulls by result rarity.",
		}, []string{"rarity"}),
		takeovers: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_takeovers_total",
			Help:      "Logins that evicted an existing session for the same player.",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Connections dropped for exceeding the inbound packet rate.",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsOnline.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsOnline.Dec()
}

// ObserveCommand records one dispatch. result is "ok" or an error class.
func (m *Metrics) ObserveCommand(cmd, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(cmd, result).Inc()
	m.commandDuration.WithLabelValues(cmd).Observe(d.Seconds())
}

func (m *Metrics) PushSent(cmd string) {
	if m == nil {
		return
	}
	m.pushes.WithLabelValues(cmd).Inc()
}

func (m *Metrics) GachaPull(rarity int) {
	if m == nil {
		return
	}
	m.gachaPulls.WithLabelValues(strconv.Itoa(rarity)).Inc()
}

func (m *Metrics) Takeover() {
	if m == nil {
		return
	}
	m.takeovers.Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
