package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpush_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatpush_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// Pipeline metrics
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpush_webhook_events_total",
			Help: "Message webhook events by result",
		},
		[]string{"result"},
	)

	PushSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatpush_push_sends_total",
			Help: "Per-recipient push outcomes",
		},
		[]string{"status"}, // sent, skipped or error
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatpush_dispatch_duration_seconds",
			Help:    "Time to handle one message event end to end",
			Buckets: prometheus.DefBuckets,
		},
	)
)
