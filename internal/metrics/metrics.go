// Package metrics holds the self-telemetry counters of the tracing layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gputrace"

// Metrics holds all self-telemetry counters.
type Metrics struct {
	EventsRecorded    prometheus.Counter
	EventsOverwritten prometheus.Counter
	Flushes           prometheus.Counter
	FlushErrors       prometheus.Counter
	SessionsStarted   prometheus.Counter
	TimelineSpans     *prometheus.CounterVec
	MalformedRecords  prometheus.Counter
}

// New registers the counters on reg. A nil reg yields unregistered counters,
// which is what tests and embedded hosts without a metrics endpoint use.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		EventsRecorded: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_recorded_total",
			Help:      "Trace events accepted into the session ring buffer",
		}),
		EventsOverwritten: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_overwritten_total",
			Help:      "Trace events lost because the ring buffer was full",
		}),
		Flushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Flushes of buffered trace data to the destination",
		}),
		FlushErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flush_errors_total",
			Help:      "Flushes that failed to write or sync the destination",
		}),
		SessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Trace sessions opened",
		}),
		TimelineSpans: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeline_spans_total",
			Help:      "GPU timeline spans emitted, by clock alignment path",
		}, []string{"clock"}),
		MalformedRecords: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_records_total",
			Help:      "Scratch-file lines skipped as malformed or invalid",
		}),
	}
}

// Nop returns unregistered counters.
func Nop() *Metrics {
	return New(nil)
}
