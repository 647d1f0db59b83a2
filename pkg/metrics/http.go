package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics provides observability for HTTP server operations.
//
// Implementations can collect metrics about requests, connection lifecycle,
// response bytes, and errors. This interface is optional - if metrics are
// not initialized, a no-op implementation is used with zero overhead.
type HTTPMetrics interface {
	// RecordRequest records a completed HTTP request with the kind of
	// resource served (static, listing, script, handler, stats, logs),
	// the response status code, and the service time.
	RecordRequest(kind string, status int, duration time.Duration)

	// RecordBytesWritten records response body bytes sent to a client.
	RecordBytesWritten(bytes int64)

	// SetActiveConnections updates the current connection count.
	SetActiveConnections(count int32)

	// RecordConnectionAccepted increments the total accepted connections counter.
	RecordConnectionAccepted()

	// RecordConnectionClosed increments the total closed connections counter.
	RecordConnectionClosed()
}

// httpMetrics is the Prometheus implementation of HTTPMetrics.
type httpMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	bytesWritten        prometheus.Counter
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewHTTPMetrics creates a new Prometheus-backed HTTPMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled
// (InitRegistry not called).
func NewHTTPMetrics() HTTPMetrics {
	if !IsEnabled() {
		return &noopHTTPMetrics{}
	}

	reg := GetRegistry()

	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "httpserv_requests_total",
				Help: "Total number of HTTP requests by resource kind and status code",
			},
			[]string{"kind", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "httpserv_request_duration_seconds",
				Help: "Duration of HTTP requests in seconds",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					5.0,   // 5s
				},
			},
			[]string{"kind"},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "httpserv_response_bytes_total",
				Help: "Total response body bytes written to clients",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "httpserv_active_connections",
				Help: "Current number of active client connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "httpserv_connections_accepted_total",
				Help: "Total number of client connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "httpserv_connections_closed_total",
				Help: "Total number of client connections closed",
			},
		),
	}
}

func (m *httpMetrics) RecordRequest(kind string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(kind, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func (m *httpMetrics) RecordBytesWritten(bytes int64) {
	m.bytesWritten.Add(float64(bytes))
}

func (m *httpMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *httpMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *httpMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

// noopHTTPMetrics is a no-op implementation of HTTPMetrics with zero overhead.
type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(kind string, status int, duration time.Duration) {}
func (noopHTTPMetrics) RecordBytesWritten(bytes int64)                                {}
func (noopHTTPMetrics) SetActiveConnections(count int32)                              {}
func (noopHTTPMetrics) RecordConnectionAccepted()                                     {}
func (noopHTTPMetrics) RecordConnectionClosed()                                       {}
