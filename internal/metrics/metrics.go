// Package metrics holds the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "riverflow"

type Metrics struct {
	LiveSessions  prometheus.Gauge
	LiveRooms     prometheus.Gauge
	RelayedEvents *prometheus.CounterVec
	EmailsSent    *prometheus.CounterVec
}

// New builds and registers the collector set on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_sessions",
			Help:      "Currently connected realtime sessions.",
		}),
		LiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_rooms",
			Help:      "Rooms with at least one joined session.",
		}),
		RelayedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_events_total",
			Help:      "Events fanned out to room members, by event name.",
		}, []string{"event"}),
		EmailsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Emails dispatched, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.LiveSessions, m.LiveRooms, m.RelayedEvents, m.EmailsSent)
	return m
}

// NewUnregistered builds a collector set on a throwaway registry, for tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
