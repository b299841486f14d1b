package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuttitracks_remote_requests_total",
			Help: "Requests sent to the remote API by method and response status",
		},
		[]string{"method", "status"},
	)

	remoteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tuttitracks_remote_request_duration_seconds",
			Help:    "Latency of remote API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tuttitracks_token_refreshes_total",
			Help: "Access token refreshes triggered by 401 responses, by outcome",
		},
		[]string{"outcome"},
	)
)
