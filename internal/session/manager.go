// Package session owns the single process-wide trace session: opening the
// destination, periodic durable flushing and teardown.
package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/internal/engine"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Manager starts and stops trace sessions. Start and Stop are meant to be
// called from one control goroutine.
type Manager struct {
	tracing  *engine.Tracing
	resolver *loaders.Resolver

	clock         clock.Clock
	flushInterval time.Duration
	bufferEvents  int
	device        int
	logger        *zap.Logger

	mu    sync.Mutex
	sess  *engine.Session
	file  *os.File
	path  string
	done  chan struct{}
	group *errgroup.Group
}

type Option func(*Manager)

// WithClock sets the clock driving the background flush ticker.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithFlushInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.flushInterval = d
		}
	}
}

func WithBufferEvents(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.bufferEvents = n
		}
	}
}

// WithDevice sets the logical device index passed to backend capabilities.
func WithDevice(device int) Option {
	return func(m *Manager) { m.device = device }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(tracing *engine.Tracing, resolver *loaders.Resolver, opts ...Option) *Manager {
	m := &Manager{
		tracing:       tracing,
		resolver:      resolver,
		clock:         clock.New(),
		flushInterval: config.DefaultFlushInterval,
		bufferEvents:  config.DefaultBufferEvents,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.resolver == nil {
		m.resolver = loaders.NewResolver(func() types.Backend { return nil })
	}
	m.logger = m.logger.With(zap.String("component", "session"))
	return m
}

// Start opens path and begins capturing into it. Starting while a session
// is open, or with an empty path, does nothing.
func (m *Manager) Start(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess != nil {
		m.logger.Debug("session already open", zap.String("path", m.path), zap.String("requested", path))
		return nil
	}
	if path == "" {
		m.logger.Debug("empty trace path, not starting")
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open trace destination: %w", err)
	}

	sess := m.tracing.NewTrace()
	sess.Setup(engine.Config{
		BufferEvents:      m.bufferEvents,
		EnabledCategories: []string{engine.AllCategories},
	}, f)
	if err := sess.StartBlocking(); err != nil {
		return multierr.Append(fmt.Errorf("start session: %w", err), f.Close())
	}

	done := make(chan struct{})
	g := &errgroup.Group{}
	g.Go(func() error {
		m.flushLoop(sess, f, done)
		return nil
	})

	m.sess, m.file, m.path = sess, f, path
	m.done, m.group = done, g
	m.logger.Info("trace session started", zap.String("path", path), zap.Duration("flush_interval", m.flushInterval))
	return nil
}

// flushLoop runs until done is closed. Closing done is the only way to stop
// it; Stop then joins it.
func (m *Manager) flushLoop(sess *engine.Session, f *os.File, done <-chan struct{}) {
	ticker := m.clock.Ticker(m.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := durableFlush(sess, f); err != nil {
				m.logger.Debug("background flush failed", zap.Error(err))
			}
		}
	}
}

func durableFlush(sess *engine.Session, f *os.File) error {
	if err := sess.FlushBlocking(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync trace destination: %w", err)
	}
	return nil
}

// Stop joins the flusher, writes out the session and releases the
// destination. Stopping a closed manager does nothing.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return nil
	}

	close(m.done)
	_ = m.group.Wait()

	var err error
	err = multierr.Append(err, m.sess.FlushBlocking())
	err = multierr.Append(err, m.sess.StopBlocking())
	err = multierr.Append(err, m.file.Sync())
	err = multierr.Append(err, m.file.Close())

	path := m.path
	m.sess, m.file, m.path = nil, nil, ""
	m.done, m.group = nil, nil

	m.writeStatsCompanion(path)
	m.logger.Info("trace session stopped", zap.String("path", path), zap.Error(err))
	return err
}

// FlushNow writes buffered events and syncs the destination without ending
// the session.
func (m *Manager) FlushNow() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return nil
	}
	err := durableFlush(m.sess, m.file)
	m.writeStatsCompanion(m.path)
	return err
}

func (m *Manager) writeStatsCompanion(tracePath string) {
	if tracePath == "" {
		return
	}
	caps := m.resolver.Resolve()
	if caps.DumpPipelineStats == nil {
		return
	}
	statsPath := tracePath + types.SuffixStats
	if !caps.DumpPipelineStats(m.device, statsPath) {
		m.logger.Debug("pipeline stats companion not written", zap.String("path", statsPath))
	}
}

func (m *Manager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess != nil
}

// Path returns the destination of the open session, or "".
func (m *Manager) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}
