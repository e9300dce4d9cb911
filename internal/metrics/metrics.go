package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// Connections gauges live WebSocket connections per channel.
	Connections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "realtime_connections", Help: "Live WebSocket connections by channel."},
		[]string{"channel"},
	)
	// MessagesSent counts socket writes by channel and message type.
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_messages_sent_total", Help: "Messages written to sockets by channel and type."},
		[]string{"channel", "type"},
	)
	// SendFailures counts writes that tore a connection down.
	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_send_failures_total", Help: "Socket writes that failed and dropped the connection."},
		[]string{"channel"},
	)
	// StaleReaped counts connections reclaimed by the liveness sweep.
	StaleReaped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "realtime_stale_reaped_total", Help: "Connections reclaimed by the liveness sweep."},
		[]string{"channel"},
	)
	// BroadcastFanout tracks subscriber counts per broadcast.
	BroadcastFanout = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "realtime_broadcast_fanout", Help: "Subscribers addressed per broadcast.", Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250}},
		[]string{"topic_kind"},
	)
)

// RegisterDefault registers collectors to the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(Connections)
		Registry.MustRegister(MessagesSent)
		Registry.MustRegister(SendFailures)
		Registry.MustRegister(StaleReaped)
		Registry.MustRegister(BroadcastFanout)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
