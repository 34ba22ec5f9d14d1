package rmi

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the per-driver accounting interface. The transmit and
// receive loops call the Increment* methods at every frame; nothing
// else in the driver reads these values, so an implementation only
// needs to be safe for concurrent writers.
type Metrics interface {
	IncrementFramesSent()
	IncrementFramesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	IncrementControllerErrors()
	IncrementDecodeErrors()
	SetQueueDepth(priority int, depth int)
	SetInFlightCount(n int)
}

// DefaultMetrics implements Metrics with atomic counters, mirroring
// the teacher's metrics.go shape.
type DefaultMetrics struct {
	framesSent       int64
	framesReceived   int64
	bytesSent        int64
	bytesReceived    int64
	controllerErrors int64
	decodeErrors     int64

	queueDepth   [5]atomic.Int64
	inFlightSize atomic.Int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementFramesSent()        { atomic.AddInt64(&m.framesSent, 1) }
func (m *DefaultMetrics) IncrementFramesReceived()    { atomic.AddInt64(&m.framesReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)  { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) {
	atomic.AddInt64(&m.bytesReceived, n)
}
func (m *DefaultMetrics) IncrementControllerErrors() { atomic.AddInt64(&m.controllerErrors, 1) }
func (m *DefaultMetrics) IncrementDecodeErrors()     { atomic.AddInt64(&m.decodeErrors, 1) }

func (m *DefaultMetrics) SetQueueDepth(priority int, depth int) {
	if priority < 0 || priority >= len(m.queueDepth) {
		return
	}
	m.queueDepth[priority].Store(int64(depth))
}
func (m *DefaultMetrics) SetInFlightCount(n int) { m.inFlightSize.Store(int64(n)) }

func (m *DefaultMetrics) GetFramesSent() int64        { return atomic.LoadInt64(&m.framesSent) }
func (m *DefaultMetrics) GetFramesReceived() int64    { return atomic.LoadInt64(&m.framesReceived) }
func (m *DefaultMetrics) GetBytesSent() int64         { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64     { return atomic.LoadInt64(&m.bytesReceived) }
func (m *DefaultMetrics) GetControllerErrors() int64  { return atomic.LoadInt64(&m.controllerErrors) }
func (m *DefaultMetrics) GetDecodeErrors() int64      { return atomic.LoadInt64(&m.decodeErrors) }
func (m *DefaultMetrics) GetInFlightCount() int64     { return m.inFlightSize.Load() }

// PrometheusMetrics adapts Metrics onto prometheus/client_golang
// collectors, for drivers that want to expose a /metrics endpoint
// alongside the controller connection.
type PrometheusMetrics struct {
	framesSent       prometheus.Counter
	framesReceived   prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
	controllerErrors prometheus.Counter
	decodeErrors     prometheus.Counter
	queueDepth       *prometheus.GaugeVec
	inFlightSize     prometheus.Gauge
}

// NewPrometheusMetrics builds and registers the driver's collectors
// against reg. Pass prometheus.DefaultRegisterer for the global
// registry, or a dedicated *prometheus.Registry in tests.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_frames_sent_total",
			Help: "Total frames written to the controller socket.",
		}),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_frames_received_total",
			Help: "Total frames read from the controller socket.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_bytes_sent_total",
			Help: "Total bytes written to the controller socket.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_bytes_received_total",
			Help: "Total bytes read from the controller socket.",
		}),
		controllerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_controller_errors_total",
			Help: "Responses observed with a non-zero ErrorID.",
		}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rmi_decode_errors_total",
			Help: "Frames that failed to decode to any known variant.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rmi_queue_depth",
			Help: "Outbound queue depth per priority level.",
		}, []string{"priority"}),
		inFlightSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rmi_inflight_size",
			Help: "Current number of unacknowledged in-flight instructions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.framesSent, m.framesReceived, m.bytesSent, m.bytesReceived,
			m.controllerErrors, m.decodeErrors, m.queueDepth, m.inFlightSize)
	}
	return m
}

func (m *PrometheusMetrics) IncrementFramesSent()        { m.framesSent.Inc() }
func (m *PrometheusMetrics) IncrementFramesReceived()    { m.framesReceived.Inc() }
func (m *PrometheusMetrics) IncrementBytesSent(n int64)  { m.bytesSent.Add(float64(n)) }
func (m *PrometheusMetrics) IncrementBytesReceived(n int64) {
	m.bytesReceived.Add(float64(n))
}
func (m *PrometheusMetrics) IncrementControllerErrors() { m.controllerErrors.Inc() }
func (m *PrometheusMetrics) IncrementDecodeErrors()     { m.decodeErrors.Inc() }

var priorityLabels = [5]string{"low", "standard", "high", "immediate", "termination"}

func (m *PrometheusMetrics) SetQueueDepth(priority int, depth int) {
	if priority < 0 || priority >= len(priorityLabels) {
		return
	}
	m.queueDepth.WithLabelValues(priorityLabels[priority]).Set(float64(depth))
}
func (m *PrometheusMetrics) SetInFlightCount(n int) { m.inFlightSize.Set(float64(n)) }
