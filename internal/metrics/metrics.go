package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "universe_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_notifications_created_total",
			Help: "Total notification records persisted",
		},
		[]string{"type"},
	)

	RemindersSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_reminders_suppressed_total",
			Help: "Reminders skipped by the duplicate-suppression window",
		},
		[]string{"type"},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "universe_messages_sent_total",
			Help: "Total chat messages persisted",
		},
	)

	LiveEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_live_events_delivered_total",
			Help: "Live events written to a connection send queue",
		},
		[]string{"event"},
	)

	LiveEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "universe_live_events_dropped_total",
			Help: "Live events dropped because a connection was slow or closed",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "universe_websocket_connections",
			Help: "Currently open websocket connections",
		},
	)

	ReminderSweeps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_reminder_sweeps_total",
			Help: "Reminder sub-sweep outcomes",
		},
		[]string{"sweep", "outcome"}, // outcome: "ok" or "error"
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)

	BlockedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "universe_blocked_requests_total",
			Help: "Total blocked requests",
		},
		[]string{"reason"},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "universe_store_latency_seconds",
			Help:    "Durable store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
		[]string{"op"},
	)
)
