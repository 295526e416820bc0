package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundconnect_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fundconnect_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	UsersRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundconnect_users_registered_total",
			Help: "Total users registered",
		},
		[]string{"role"},
	)

	FundsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_funds_created_total",
			Help: "Total funds created",
		},
	)

	DocumentsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_documents_uploaded_total",
			Help: "Total fund documents uploaded",
		},
	)

	InterestsExpressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_interests_expressed_total",
			Help: "Total interests expressed",
		},
	)

	InterestsWithdrawn = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_interests_withdrawn_total",
			Help: "Total interests withdrawn",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_messages_sent_total",
			Help: "Total messages sent",
		},
	)

	UnreadRecomputes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fundconnect_unread_recomputes_total",
			Help: "Total unread aggregations",
		},
		[]string{"trigger"}, // "list", "connect", or "event"
	)

	// Notification surface metrics
	NotifyConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fundconnect_notify_connections",
			Help: "Open notification WebSocket connections",
		},
	)

	NotifyPushes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fundconnect_notify_pushes_total",
			Help: "Total unread summaries pushed over WebSocket",
		},
	)

	// Infrastructure metrics
	PostgresLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fundconnect_postgres_latency_seconds",
			Help:    "PostgreSQL query latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1},
		},
	)
)
