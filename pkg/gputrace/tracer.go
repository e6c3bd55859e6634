// Package gputrace is the embedding API: CPU and GPU spans, counters, trace
// session control, GPU timeline reconstruction and GPU stats printing.
//
// Every call is safe from any goroutine and never returns an error: tracing
// failures are logged at debug level and otherwise dropped.
package gputrace

import (
	"io"
	"os"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/internal/engine"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/internal/session"
	"github.com/ALEYI17/InfraSight_gputrace/internal/stats"
	"github.com/ALEYI17/InfraSight_gputrace/internal/timeline"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Tracer bundles the recording engine, the session manager, the timeline
// correlator and the stats reporter over one capability table.
type Tracer struct {
	cfg        *config.Config
	tracing    *engine.Tracing
	resolver   *loaders.Resolver
	sessions   *session.Manager
	correlator *timeline.Correlator
	reporter   *stats.Reporter
	logger     *zap.Logger
}

type options struct {
	cfg        *config.Config
	registerer prometheus.Registerer
	logger     *zap.Logger
	out        io.Writer
	backend    func() types.Backend
	flushClock clock.Clock
	traceNow   func() uint64
	monoNow    func() uint64
	tempDir    string
}

type Option func(*options)

func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRegisterer registers the self-telemetry counters on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithOutput sets where GPU stats are printed. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithBackend sets the source of the GPU backend, read once on first
// capability use. Defaults to the loaders registry.
func WithBackend(source func() types.Backend) Option {
	return func(o *options) { o.backend = source }
}

func WithFlushClock(c clock.Clock) Option {
	return func(o *options) { o.flushClock = c }
}

// WithClocks overrides the trace and host monotonic clocks.
func WithClocks(traceNow, monoNow func() uint64) Option {
	return func(o *options) {
		o.traceNow = traceNow
		o.monoNow = monoNow
	}
}

func WithTempDir(dir string) Option {
	return func(o *options) { o.tempDir = dir }
}

func New(opts ...Option) *Tracer {
	o := &options{
		out:        os.Stdout,
		logger:     zap.NewNop(),
		backend:    loaders.Registered,
		flushClock: clock.New(),
		traceNow:   engine.TraceTimeNs,
		monoNow:    engine.MonotonicNs,
		tempDir:    os.TempDir(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cfg == nil {
		o.cfg = config.LoadConfig()
	}

	m := metrics.New(o.registerer)
	tracing := engine.New(
		engine.WithClock(o.traceNow),
		engine.WithMetrics(m),
		engine.WithLogger(o.logger),
	)
	resolver := loaders.NewResolver(o.backend)
	sessions := session.NewManager(tracing, resolver,
		session.WithClock(o.flushClock),
		session.WithFlushInterval(o.cfg.FlushInterval),
		session.WithBufferEvents(o.cfg.BufferEvents),
		session.WithDevice(o.cfg.Device),
		session.WithLogger(o.logger),
	)

	return &Tracer{
		cfg:      o.cfg,
		tracing:  tracing,
		resolver: resolver,
		sessions: sessions,
		correlator: timeline.NewCorrelator(resolver, sessions, tracing,
			timeline.WithMonotonicClock(o.monoNow),
			timeline.WithDevice(o.cfg.Device),
			timeline.WithMetrics(m),
			timeline.WithLogger(o.logger),
		),
		reporter: stats.NewReporter(resolver, sessions,
			stats.WithOutput(o.out),
			stats.WithDevice(o.cfg.Device),
			stats.WithTempDir(o.tempDir),
			stats.WithLogger(o.logger),
		),
		logger: o.logger.With(zap.String("component", "gputrace")),
	}
}

var (
	defaultOnce   sync.Once
	defaultTracer *Tracer
)

// Default returns the process-wide tracer, built on first use from the
// environment configuration, the process logger and the registered backend.
func Default() *Tracer {
	defaultOnce.Do(func() {
		defaultTracer = New(
			WithLogger(logutil.GetLogger()),
			WithRegisterer(prometheus.DefaultRegisterer),
		)
	})
	return defaultTracer
}

// Enabled reports whether a session is capturing.
func (t *Tracer) Enabled() bool {
	return t.tracing.Enabled()
}

// Path returns the destination of the open session, or "".
func (t *Tracer) Path() string {
	return t.sessions.Path()
}

// StartTrace opens a session writing to path. It does nothing when a session
// is already open or path is empty.
func (t *Tracer) StartTrace(path string) {
	if err := t.sessions.Start(path); err != nil {
		t.logger.Debug("start trace", zap.String("path", path), zap.Error(err))
	}
}

// TryStartFromEnv starts a session when the configuration names a trace
// path or enables tracing to the default path.
func (t *Tracer) TryStartFromEnv() {
	if path, ok := t.cfg.AutoStartPath(); ok {
		t.StartTrace(path)
	}
}

// StopFlush ends the session, leaving a complete trace file.
func (t *Tracer) StopFlush() {
	if err := t.sessions.Stop(); err != nil {
		t.logger.Debug("stop trace", zap.Error(err))
	}
}

// FlushDumpStats makes everything recorded so far durable without ending
// the session.
func (t *Tracer) FlushDumpStats() {
	if err := t.sessions.FlushNow(); err != nil {
		t.logger.Debug("flush trace", zap.Error(err))
	}
}

// EmitGPUTimeline reconstructs the backend's latest GPU intervals on the
// trace.
func (t *Tracer) EmitGPUTimeline() {
	if err := t.correlator.Emit(); err != nil {
		t.logger.Debug("emit GPU timeline", zap.Error(err))
	}
}

func (t *Tracer) PrintGPUStats() {
	if err := t.reporter.Print(); err != nil {
		t.logger.Debug("print GPU stats", zap.Error(err))
	}
}
