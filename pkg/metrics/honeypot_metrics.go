package metrics

import "github.com/prometheus/client_golang/prometheus"

const ConnectionsTotalMetricName = "sentinel_connections_total"

var ConnectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: ConnectionsTotalMetricName,
		Help: "Total connections accepted.",
	},
	[]string{"port", "service"},
)

const ConnectionsDroppedMetricName = "sentinel_connections_dropped_total"

var ConnectionsDropped = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: ConnectionsDroppedMetricName,
		Help: "Connections closed without handling because the concurrency cap was reached.",
	},
	[]string{"port"},
)

const BytesReceivedMetricName = "sentinel_bytes_received_total"

var BytesReceived = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: BytesReceivedMetricName,
		Help: "Payload bytes captured.",
	},
	[]string{"port"},
)

const ListenersActiveMetricName = "sentinel_listeners_active"

var ListenersActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: ListenersActiveMetricName,
		Help: "Ports currently accepting connections.",
	},
)

const CaptureDurationMetricName = "sentinel_capture_duration_seconds"

var CaptureDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    CaptureDurationMetricName,
		Help:    "Time spent handling one connection.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	},
	[]string{"service"},
)
