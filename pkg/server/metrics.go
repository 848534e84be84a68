package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks server runtime statistics as Prometheus collectors. Each
// server instance owns its own registry so that tests can run several
// servers in one process without duplicate-registration panics.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectedSessions  prometheus.Gauge
	ConnectionsTotal   prometheus.Counter
	RefusedConnections prometheus.Counter
	AuthSuccesses      prometheus.Counter
	AuthFailures       prometheus.Counter
	Messages           prometheus.Counter
	Kicks              prometheus.Counter
	Bans               prometheus.Counter
	Commands           *prometheus.CounterVec
}

// NewMetrics creates and registers the collector set.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		ConnectedSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "latsaserver_sessions_active",
			Help: "Current live client sessions.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_connections_total",
			Help: "Lifetime TCP connections accepted.",
		}),
		RefusedConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_connections_refused_total",
			Help: "Connections refused by the IP blacklist.",
		}),
		AuthSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_auth_success_total",
			Help: "Successful logins.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_auth_failed_total",
			Help: "Failed or refused login attempts.",
		}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_chat_messages_total",
			Help: "Chat messages relayed.",
		}),
		Kicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_kicks_total",
			Help: "Users kicked.",
		}),
		Bans: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "latsaserver_bans_total",
			Help: "Users banned.",
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "latsaserver_commands_total",
			Help: "Client commands received, by command.",
		}, []string{"command"}),
	}

	reg.MustRegister(
		m.ConnectedSessions,
		m.ConnectionsTotal,
		m.RefusedConnections,
		m.AuthSuccesses,
		m.AuthFailures,
		m.Messages,
		m.Kicks,
		m.Bans,
		m.Commands,
	)
	return m
}
