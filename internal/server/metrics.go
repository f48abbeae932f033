package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadmatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quadmatch_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	activeRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadmatch_active_requests",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// Registration metrics
	matchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadmatch_match_requests_total",
			Help: "Total number of registration requests",
		},
		[]string{"transport", "status"}, // transport: http, websocket
	)

	matchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quadmatch_match_duration_seconds",
			Help:    "Registration duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"transport"},
	)

	matchRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quadmatch_match_ratio",
			Help:    "Log-odds ratio of accepted registrations",
			Buckets: []float64{0, 2.5, 5, 7.5, 10, 15, 20, 30, 50, 100},
		},
	)

	// Rate limiting metrics
	rateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quadmatch_rate_limit_hits_total",
			Help: "Total number of rate limit hits",
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quadmatch_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quadmatch_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, received
	)
)
