/*
Package metrics exposes Prometheus instrumentation for the matching pipeline.

Metrics are registered on the default registry through promauto and served
at /metrics by the API app:

  - likes_recorded_total{result}: like submissions by ledger outcome (created, existing)
  - match_outcomes_total{outcome}: one_sided, matched_new, matched_existing
  - conversations_provisioned_total
  - provision_conflicts_total: pair-uniqueness conflicts hit while provisioning
  - notifications_total{event,status}: dispatcher deliveries (sent, failed, breaker_open)
  - websocket_sessions_active
  - http_request_duration_seconds{method,route,status}
*/
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LikesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "likes_recorded_total",
			Help: "Like submissions accepted by the ledger",
		},
		[]string{"result"},
	)

	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_outcomes_total",
			Help: "Outcome of match detection per like submission",
		},
		[]string{"outcome"},
	)

	ConversationsProvisioned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_provisioned_total",
			Help: "Conversations created for newly matched pairs",
		},
	)

	ProvisionConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "provision_conflicts_total",
			Help: "Pair-uniqueness conflicts observed while provisioning conversations",
		},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Push notifications by event and delivery status",
		},
		[]string{"event", "status"},
	)

	WebsocketSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_sessions_active",
			Help: "Open realtime event sessions",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)
)

func RecordNotification(event, status string) {
	Notifications.WithLabelValues(event, status).Inc()
}

func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
