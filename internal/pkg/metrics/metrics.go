// Package metrics provides Prometheus instrumentation for the GYMbro client. It
// counts outbound requests, token refresh outcomes, socket connection attempts,
// chat deliveries by path and inbound socket events.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts REST calls by outcome class: "2xx", "4xx", "5xx" or "network".
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymbro_client_requests_total",
		Help: "Total number of REST requests issued by the client",
	}, []string{"class"})

	// RefreshTotal counts token refresh attempts by result: "success" or "failure".
	RefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymbro_client_token_refresh_total",
		Help: "Total number of token refresh attempts",
	}, []string{"result"})

	// SocketConnects counts chat socket dial attempts by result: "success" or "failure".
	SocketConnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymbro_client_socket_connects_total",
		Help: "Total number of chat socket connection attempts",
	}, []string{"result"})

	// MessagesSent counts chat messages by delivery path: "socket" or "rest".
	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymbro_client_messages_sent_total",
		Help: "Total number of chat messages sent",
	}, []string{"path"})

	// SocketEvents counts decoded inbound socket events by name.
	SocketEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gymbro_client_socket_events_total",
		Help: "Total number of inbound chat socket events",
	}, []string{"event"})

	// SocketConnected is 1 while the chat socket is connected.
	SocketConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "gymbro_client_socket_connected",
		Help: "Whether the chat socket is currently connected",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RefreshTotal,
		SocketConnects,
		MessagesSent,
		SocketEvents,
		SocketConnected,
	)
}

// StatusClass maps an HTTP status to the RequestsTotal label.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
