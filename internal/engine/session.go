package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrSessionActive = errors.New("engine: another session is already capturing")
	ErrNotStarted    = errors.New("engine: session not started")
	ErrNotConfigured = errors.New("engine: session not configured")
)

// AllCategories enables every category.
const AllCategories = "*"

type Config struct {
	// BufferEvents is the ring buffer capacity in events.
	BufferEvents int
	// EnabledCategories lists the recorded categories. "*" enables all.
	EnabledCategories []string
}

type sessionState int

const (
	stateNew sessionState = iota
	stateConfigured
	stateStarted
	stateStopped
)

// Session is one capture into a destination writer.
type Session struct {
	tracing *Tracing

	cfg        Config
	allEnabled bool
	enabled    map[string]struct{}
	buf        *ring

	mu    sync.Mutex
	state sessionState
	out   *bufio.Writer
	ew    *eventWriter
}

// Setup configures the session. It has no effect once the session started.
func (s *Session) Setup(cfg Config, w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state >= stateStarted {
		return
	}

	s.cfg = cfg
	s.enabled = make(map[string]struct{}, len(cfg.EnabledCategories))
	s.allEnabled = false
	for _, c := range cfg.EnabledCategories {
		if c == AllCategories {
			s.allEnabled = true
		}
		s.enabled[c] = struct{}{}
	}
	s.buf = newRing(cfg.BufferEvents)
	s.out = bufio.NewWriter(w)
	s.ew = newEventWriter(s.out, s.tracing.pid)
	s.state = stateConfigured
}

// StartBlocking writes the trace header and makes s the capturing session.
// It returns once events are being accepted.
func (s *Session) StartBlocking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConfigured {
		return ErrNotConfigured
	}
	if !s.tracing.activate(s) {
		return ErrSessionActive
	}

	err := s.ew.open()
	for _, ev := range s.tracing.descriptorEvents() {
		if err != nil {
			break
		}
		err = s.ew.write(ev)
	}
	if err == nil {
		err = s.out.Flush()
	}
	if err != nil {
		s.tracing.deactivate(s)
		return fmt.Errorf("write trace header: %w", err)
	}

	s.state = stateStarted
	s.tracing.metrics.SessionsStarted.Inc()
	return nil
}

// FlushBlocking writes every buffered event to the destination writer.
func (s *Session) FlushBlocking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStarted {
		return ErrNotStarted
	}
	return s.flushLocked()
}

// StopBlocking stops accepting events, writes what is buffered and closes
// the JSON array. The destination writer itself is left open.
func (s *Session) StopBlocking() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateStarted {
		return ErrNotStarted
	}
	s.tracing.deactivate(s)
	s.state = stateStopped

	err := s.flushLocked()
	if cerr := s.ew.close(); cerr != nil {
		err = multierr.Append(err, cerr)
	} else {
		err = multierr.Append(err, s.out.Flush())
	}
	return err
}

func (s *Session) flushLocked() error {
	s.tracing.metrics.Flushes.Inc()

	for _, ev := range s.buf.Drain() {
		if err := s.ew.write(ev); err != nil {
			s.tracing.metrics.FlushErrors.Inc()
			return err
		}
	}
	if err := s.out.Flush(); err != nil {
		s.tracing.metrics.FlushErrors.Inc()
		return fmt.Errorf("flush trace buffer: %w", err)
	}
	return nil
}

func (s *Session) accepts(ev Event) bool {
	if ev.Phase == PhaseMetadata || s.allEnabled {
		return true
	}
	_, ok := s.enabled[ev.Category]
	return ok
}

func (s *Session) record(ev Event) {
	if !s.accepts(ev) {
		return
	}
	if s.buf.Add(ev) {
		s.tracing.metrics.EventsOverwritten.Inc()
		s.tracing.log.Debug("ring buffer full, oldest event overwritten", zap.String("event", ev.Name))
	}
	s.tracing.metrics.EventsRecorded.Inc()
}

// Buffered reports how many events wait for the next flush.
func (s *Session) Buffered() int {
	s.mu.Lock()
	buf := s.buf
	s.mu.Unlock()
	if buf == nil {
		return 0
	}
	return buf.Len()
}
