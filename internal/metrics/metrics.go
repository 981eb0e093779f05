// Package metrics exposes Prometheus counters for a running SLIP
// link, so dropped frames and overflows are observable instead of
// silent.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tosscaster/slipwire/internal/framer"
)

// Metrics contains the Prometheus metrics for one SLIP link.
type Metrics struct {
	Messages        prometheus.Counter
	MessageBytes    prometheus.Counter
	DroppedFrames   prometheus.Counter
	BufferOverflows prometheus.Counter
}

// Compile-time assertion that *Metrics can record framer events.
var _ framer.Recorder = (*Metrics)(nil)

// New creates and registers the metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		Messages: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipwire_messages_total",
			Help: "Total number of decoded SLIP messages",
		}),
		MessageBytes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipwire_message_bytes_total",
			Help: "Total decoded payload bytes",
		}),
		DroppedFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipwire_dropped_frames_total",
			Help: "Total number of frames dropped due to invalid escape sequences",
		}),
		BufferOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "slipwire_buffer_overflows_total",
			Help: "Total number of partial frames dropped for exceeding the accumulation buffer",
		}),
	}
}

// MessageDecoded records one decoded message of the given size.
func (m *Metrics) MessageDecoded(size int) {
	m.Messages.Inc()
	m.MessageBytes.Add(float64(size))
}

// FrameDropped records one malformed frame drop.
func (m *Metrics) FrameDropped() {
	m.DroppedFrames.Inc()
}

// BufferOverflow records one oversized-frame drop.
func (m *Metrics) BufferOverflow() {
	m.BufferOverflows.Inc()
}
