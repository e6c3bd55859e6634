// Package engine records trace events into a capture session and writes
// them out in Chrome trace-event JSON.
package engine

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Tracing is the in-process recording backend. Events emitted while no
// session is capturing are dropped.
type Tracing struct {
	active  atomic.Pointer[Session]
	now     func() uint64
	pid     int
	process string
	metrics *metrics.Metrics
	log     *zap.Logger

	descMu      sync.Mutex
	descriptors map[uint64]string
	descOrder   []uint64
}

type Option func(*Tracing)

func WithClock(now func() uint64) Option {
	return func(t *Tracing) { t.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracing) { t.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracing) { t.log = l }
}

func WithProcessName(name string) Option {
	return func(t *Tracing) { t.process = name }
}

func New(opts ...Option) *Tracing {
	t := &Tracing{
		now:         TraceTimeNs,
		pid:         os.Getpid(),
		process:     filepath.Base(os.Args[0]),
		metrics:     metrics.Nop(),
		log:         zap.NewNop(),
		descriptors: make(map[uint64]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.With(zap.String("component", "engine"))

	t.descriptors[types.TrackCPU] = types.CategoryML
	t.descriptors[types.TrackGPU] = types.CategoryGPU
	t.descOrder = append(t.descOrder, types.TrackCPU, types.TrackGPU)
	return t
}

// NewTrace returns an unconfigured session bound to t.
func (t *Tracing) NewTrace() *Session {
	return &Session{tracing: t}
}

// Enabled reports whether a session is capturing.
func (t *Tracing) Enabled() bool {
	return t.active.Load() != nil
}

// Now samples the trace clock.
func (t *Tracing) Now() uint64 {
	return t.now()
}

func (t *Tracing) Emit(ev Event) {
	s := t.active.Load()
	if s == nil {
		return
	}
	s.record(ev)
}

// Complete records a span with explicit trace-clock bounds.
func (t *Tracing) Complete(category, name string, track, start, end uint64) {
	t.Emit(completeEvent(category, name, track, start, end))
}

func (t *Tracing) CompleteWithText(category, name, text string, track, start, end uint64) {
	ev := completeEvent(category, name, track, start, end)
	ev.Text = text
	ev.HasText = true
	t.Emit(ev)
}

// CounterAt records a counter sample at an explicit trace-clock timestamp.
func (t *Tracing) CounterAt(category, name string, ts uint64, value float64) {
	t.Emit(Event{Phase: PhaseCounter, Category: category, Name: name, Ts: ts, Value: value})
}

func (t *Tracing) Counter(category, name string, value float64) {
	if !t.Enabled() {
		return
	}
	t.CounterAt(category, name, t.now(), value)
}

// SetTrackDescriptor names a track. The first name registered for a track wins.
func (t *Tracing) SetTrackDescriptor(track uint64, name string) {
	t.descMu.Lock()
	if _, ok := t.descriptors[track]; ok {
		t.descMu.Unlock()
		return
	}
	t.descriptors[track] = name
	t.descOrder = append(t.descOrder, track)
	t.descMu.Unlock()

	t.Emit(threadName(track, name))
}

func (t *Tracing) descriptorEvents() []Event {
	t.descMu.Lock()
	defer t.descMu.Unlock()

	evs := make([]Event, 0, len(t.descOrder)+1)
	evs = append(evs, processName(t.process))
	for _, track := range t.descOrder {
		evs = append(evs, threadName(track, t.descriptors[track]))
	}
	return evs
}

func (t *Tracing) activate(s *Session) bool {
	return t.active.CompareAndSwap(nil, s)
}

func (t *Tracing) deactivate(s *Session) {
	t.active.CompareAndSwap(s, nil)
}

func completeEvent(category, name string, track, start, end uint64) Event {
	var dur uint64
	if end > start {
		dur = end - start
	}
	return Event{Phase: PhaseComplete, Category: category, Name: name, Track: track, Ts: start, Dur: dur}
}
