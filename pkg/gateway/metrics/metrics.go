// Package metrics exposes Prometheus counters for the voice shopping
// pipeline. A fresh registry per Metrics keeps tests isolated.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	TurnsTotal        *prometheus.CounterVec
	TurnDuration      prometheus.Histogram
	SessionsStarted   prometheus.Counter
	SessionsEnded     *prometheus.CounterVec
	TokensTotal       *prometheus.CounterVec
	ActionsDispatched *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	LiveSessions      prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		TurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcart_turns_total",
			Help: "Processed conversation turns by detected intent.",
		}, []string{"intent"}),
		TurnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxcart_turn_duration_seconds",
			Help:    "End-to-end turn processing latency.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxcart_sessions_started_total",
			Help: "Sessions created.",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcart_sessions_ended_total",
			Help: "Sessions moved to a terminal state, by final state.",
		}, []string{"state"}),
		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcart_engine_tokens_total",
			Help: "Assistant engine token usage by direction.",
		}, []string{"direction"}),
		ActionsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcart_actions_dispatched_total",
			Help: "Suggested actions executed by the dispatcher, by type.",
		}, []string{"type"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxcart_errors_total",
			Help: "Pipeline errors surfaced to callers, by canonical type.",
		}, []string{"type"}),
		LiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxcart_live_sessions",
			Help: "Currently open live WebSocket sessions.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
