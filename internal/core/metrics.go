package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the messaging core. All record
// methods are nil-safe so tests can pass a nil *Metrics.
type Metrics struct {
	activeSessions    prometheus.Gauge
	sessionsReplaced  prometheus.Counter
	messagesRouted    *prometheus.CounterVec
	messagesDelivered prometheus.Counter
	notifications     *prometheus.CounterVec
}

// NewMetrics registers and returns the core metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "talkwire_active_sessions",
				Help: "Current number of live websocket sessions",
			},
		),
		sessionsReplaced: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "talkwire_sessions_replaced_total",
				Help: "Total number of sessions superseded by a newer connection for the same user",
			},
		),
		messagesRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talkwire_messages_routed_total",
				Help: "Total number of chat messages persisted and routed",
			},
			[]string{"kind"}, // "direct" or "group"
		),
		messagesDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "talkwire_messages_delivered_total",
				Help: "Total number of live deliveries to recipient sessions",
			},
		),
		notifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talkwire_notifications_total",
				Help: "Total number of notification sends by outcome",
			},
			[]string{"outcome"}, // "delivered" or "offline"
		),
	}
}

// RecordActiveSessions sets the live session gauge.
func (m *Metrics) RecordActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RecordSessionReplaced counts a superseded session.
func (m *Metrics) RecordSessionReplaced() {
	if m == nil {
		return
	}
	m.sessionsReplaced.Inc()
}

// RecordMessageRouted counts a routed message and its live deliveries.
func (m *Metrics) RecordMessageRouted(kind string, delivered int) {
	if m == nil {
		return
	}
	m.messagesRouted.WithLabelValues(kind).Inc()
	m.messagesDelivered.Add(float64(delivered))
}

// RecordNotification counts a notification send attempt.
func (m *Metrics) RecordNotification(delivered bool) {
	if m == nil {
		return
	}
	outcome := "offline"
	if delivered {
		outcome = "delivered"
	}
	m.notifications.WithLabelValues(outcome).Inc()
}
