// Package metrics declares the Prometheus collectors for the network layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ClientRequests tracks classified backend calls per path and outcome
	ClientRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_client_requests_total",
			Help: "Total number of backend calls by classified outcome",
		},
		[]string{"path", "outcome"},
	)

	// ClientRetries tracks automatic retries after connection failures
	ClientRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_client_retries_total",
			Help: "Total number of automatic retries after a connection failure",
		},
		[]string{"path"},
	)

	// ClientLatency tracks logical call latency including the retry
	ClientLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookout_client_request_duration_seconds",
			Help:    "Backend call latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60, 90},
		},
		[]string{"path"},
	)

	// ProbeChecks tracks capability probe results
	ProbeChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_probe_checks_total",
			Help: "Total number of capability probes by resulting status",
		},
		[]string{"status"},
	)

	// StreamReconnects tracks scheduled reconnect attempts
	StreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookout_stream_reconnects_total",
			Help: "Total number of push channel reconnect attempts",
		},
	)

	// StreamEvents tracks inbound push events per category
	StreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookout_stream_events_total",
			Help: "Total number of push events received",
		},
		[]string{"event"},
	)

	// StreamConnected is 1 while the push channel is connected
	StreamConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookout_stream_connected",
			Help: "Whether the push channel is currently connected",
		},
	)
)
