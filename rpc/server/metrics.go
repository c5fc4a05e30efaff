package server

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ValentinKolb/relay/rpc/framing"
	vm "github.com/VictoriaMetrics/metrics"
	gometrics "github.com/rcrowley/go-metrics"
)

// Reasons a connection ends without an event
const (
	dropInvalidText = "invalid_text"
	dropIncomplete  = "incomplete"
	dropEmpty       = "empty"
	dropTooLarge    = "too_large"
	dropClosed      = "server_closed"
	dropReadError   = "read_error"
)

// serverMetrics holds the counters of one server.
// Counters are VictoriaMetrics metrics (exported in Prometheus text format),
// the distributions are go-metrics histograms.
type serverMetrics struct {
	set          *vm.Set
	accepted     *vm.Counter
	delivered    *vm.Counter
	acceptErrors *vm.Counter

	registry      gometrics.Registry
	messageSize   gometrics.Histogram
	frameDuration gometrics.Histogram // microseconds
}

func newServerMetrics(inflight func() float64, queued func() float64) *serverMetrics {
	set := vm.NewSet()
	registry := gometrics.NewRegistry()

	m := &serverMetrics{
		set:           set,
		accepted:      set.NewCounter("relay_connections_accepted_total"),
		delivered:     set.NewCounter("relay_events_delivered_total"),
		acceptErrors:  set.NewCounter("relay_accept_errors_total"),
		registry:      registry,
		messageSize:   gometrics.GetOrRegisterHistogram("message.size", registry, gometrics.NewUniformSample(1028)),
		frameDuration: gometrics.GetOrRegisterHistogram("frame.duration", registry, gometrics.NewExpDecaySample(1028, 0.015)),
	}
	set.NewGauge("relay_connections_inflight", inflight)
	set.NewGauge("relay_events_queued", queued)

	return m
}

// dropped counts a connection that produced no event
func (m *serverMetrics) dropped(reason string) {
	m.set.GetOrCreateCounter(fmt.Sprintf(`relay_events_dropped_total{reason=%q}`, reason)).Inc()
}

// droppedTotal sums the dropped counters of all reasons
func (m *serverMetrics) droppedTotal() uint64 {
	var total uint64
	for _, reason := range []string{dropInvalidText, dropIncomplete, dropEmpty, dropTooLarge, dropClosed, dropReadError} {
		total += m.set.GetOrCreateCounter(fmt.Sprintf(`relay_events_dropped_total{reason=%q}`, reason)).Get()
	}
	return total
}

// framed records a successfully framed message
func (m *serverMetrics) framed(size int, took time.Duration) {
	m.messageSize.Update(int64(size))
	m.frameDuration.Update(took.Microseconds())
}

// dropReason maps a framing error to its metric label
func dropReason(err error) string {
	switch {
	case errors.Is(err, framing.ErrInvalidText):
		return dropInvalidText
	case errors.Is(err, framing.ErrIncomplete):
		return dropIncomplete
	case errors.Is(err, framing.ErrEmpty):
		return dropEmpty
	case errors.Is(err, framing.ErrTooLarge):
		return dropTooLarge
	case errors.Is(err, ErrServerClosed):
		return dropClosed
	default:
		return dropReadError
	}
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

// Stats is a snapshot of the server's counters
type Stats struct {
	Accepted     uint64
	Delivered    uint64
	Dropped      uint64
	AcceptErrors uint64
	InFlight     int
	Queued       int

	MessageSizeMean float64
	MessageSizeMax  int64
	FrameMeanMicros float64
	FrameP99Micros  float64
}

// String returns a formatted string representation of the stats
func (s Stats) String() string {
	var sb strings.Builder

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	sb.WriteString("RELAY STATS\n")
	addField("Accepted", fmt.Sprintf("%d", s.Accepted))
	addField("Delivered", fmt.Sprintf("%d", s.Delivered))
	addField("Dropped", fmt.Sprintf("%d", s.Dropped))
	addField("Accept Errors", fmt.Sprintf("%d", s.AcceptErrors))
	addField("In Flight", fmt.Sprintf("%d", s.InFlight))
	addField("Queued", fmt.Sprintf("%d", s.Queued))
	addField("Message Size (mean)", fmt.Sprintf("%.1f bytes", s.MessageSizeMean))
	addField("Message Size (max)", fmt.Sprintf("%d bytes", s.MessageSizeMax))
	addField("Framing (mean)", fmt.Sprintf("%.1f µs", s.FrameMeanMicros))
	addField("Framing (p99)", fmt.Sprintf("%.1f µs", s.FrameP99Micros))

	return sb.String()
}

// Stats returns a snapshot of the server's counters
func (s *Server[S]) Stats() Stats {
	sizes := s.metrics.messageSize.Snapshot()
	durations := s.metrics.frameDuration.Snapshot()

	return Stats{
		Accepted:        s.metrics.accepted.Get(),
		Delivered:       s.metrics.delivered.Get(),
		Dropped:         s.metrics.droppedTotal(),
		AcceptErrors:    s.metrics.acceptErrors.Get(),
		InFlight:        s.conns.Size(),
		Queued:          s.queue.Len(),
		MessageSizeMean: sizes.Mean(),
		MessageSizeMax:  sizes.Max(),
		FrameMeanMicros: durations.Mean(),
		FrameP99Micros:  durations.Percentile(0.99),
	}
}

// WritePrometheus writes the server's counters in Prometheus text format
func (s *Server[S]) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}

// WriteHistograms writes the message size and framing duration (µs)
// distributions in go-metrics text format
func (s *Server[S]) WriteHistograms(w io.Writer) {
	gometrics.WriteOnce(s.metrics.registry, w)
}
