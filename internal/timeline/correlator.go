package timeline

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/internal/engine"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

var (
	ErrNoSession   = errors.New("timeline: no trace session open")
	ErrUnsupported = errors.New("timeline: capability not available")
)

const (
	clockAbsolute = "absolute"
	clockRelative = "relative"
)

// Correlator pulls GPU interval dumps from the backend and emits them as
// spans plus a busy counter on the GPU queue track.
type Correlator struct {
	resolver *loaders.Resolver
	state    types.SessionState
	sink     types.TimelineSink
	monoNow  func() uint64
	device   int
	metrics  *metrics.Metrics
	logger   *zap.Logger

	descOnce sync.Once
}

type Option func(*Correlator)

// WithMonotonicClock sets the host monotonic clock the absolute dumps and
// the backend anchor are reported on.
func WithMonotonicClock(now func() uint64) Option {
	return func(c *Correlator) { c.monoNow = now }
}

func WithDevice(device int) Option {
	return func(c *Correlator) { c.device = device }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Correlator) { c.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Correlator) { c.logger = l }
}

func NewCorrelator(resolver *loaders.Resolver, state types.SessionState, sink types.TimelineSink, opts ...Option) *Correlator {
	c := &Correlator{
		resolver: resolver,
		state:    state,
		sink:     sink,
		monoNow:  engine.MonotonicNs,
		metrics:  metrics.Nop(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "timeline"))
	return c
}

// Emit runs one correlation pass. Absolute records are preferred; the
// relative dump is the fallback. Nothing is emitted unless a whole pass
// succeeds.
func (c *Correlator) Emit() error {
	if !c.state.IsOpen() {
		return ErrNoSession
	}
	caps := c.resolver.Resolve()
	if !caps.HasTimeline() {
		return ErrUnsupported
	}
	base := c.state.Path()

	intervals, err := c.absolute(caps, base)
	clk := clockAbsolute
	if err != nil {
		c.logger.Debug("absolute timeline unavailable, falling back to relative", zap.Error(err))
		clk = clockRelative
		if intervals, err = c.relative(caps, base); err != nil {
			return err
		}
	}

	c.emit(intervals, clk)
	return nil
}

func (c *Correlator) absolute(caps *loaders.Capabilities, base string) ([]Interval, error) {
	if caps.DumpTimelineAbs == nil {
		return nil, ErrUnsupported
	}
	records, err := c.dump(caps.DumpTimelineAbs, base+types.SuffixTimelineAbs)
	if err != nil {
		return nil, err
	}

	intervals := AlignAbsolute(records, SampleOffset(c.sink.Now, c.monoNow))
	if len(intervals) == 0 {
		return nil, ErrNoRecords
	}
	return intervals, nil
}

func (c *Correlator) relative(caps *loaders.Capabilities, base string) ([]Interval, error) {
	if caps.DumpTimeline == nil {
		return nil, ErrUnsupported
	}
	records, err := c.dump(caps.DumpTimeline, base+types.SuffixTimeline)
	if err != nil {
		return nil, err
	}
	return AnchorRelative(records, c.anchor(caps))
}

// anchor is the trace-clock instant the latest relative end maps to: the
// backend's fence anchor when it reports one, else trace now.
func (c *Correlator) anchor(caps *loaders.Capabilities) uint64 {
	if caps.TimelineAnchorMonoNs != nil {
		if mono := caps.TimelineAnchorMonoNs(c.device); mono != 0 {
			if ts, ok := SampleOffset(c.sink.Now, c.monoNow).Apply(mono); ok {
				return ts
			}
		}
	}
	return c.sink.Now()
}

// dump asks the backend for a scratch file, reads it and removes it.
func (c *Correlator) dump(fn func(device int, path string) bool, path string) ([]Record, error) {
	// a refused dump may still have left a partial file behind
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("remove scratch file", zap.String("path", path), zap.Error(err))
		}
	}()
	if !fn(c.device, path) {
		return nil, fmt.Errorf("%w: dump to %s refused", ErrUnsupported, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scratch file: %w", err)
	}
	defer f.Close()

	records, skipped, err := ParseRecords(f)
	if skipped > 0 {
		c.metrics.MalformedRecords.Add(float64(skipped))
		c.logger.Debug("skipped malformed records", zap.String("path", path), zap.Int("count", skipped))
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

func (c *Correlator) emit(intervals []Interval, clk string) {
	c.descOnce.Do(func() {
		c.sink.SetTrackDescriptor(types.TrackGPUQueue, types.TrackGPUQueueName)
	})

	for _, iv := range intervals {
		name := iv.Name
		if name == "" {
			name = types.DefaultGPUSpanName
		}
		c.sink.Complete(types.CategoryGPU, name, types.TrackGPUQueue, iv.Start, iv.End)
	}
	for _, s := range Occupancy(intervals) {
		c.sink.CounterAt(types.CategoryGPU, types.CounterGPUBusyPercent, s.Ts, s.Percent)
	}

	c.metrics.TimelineSpans.WithLabelValues(clk).Add(float64(len(intervals)))
	c.logger.Debug("emitted GPU timeline", zap.String("clock", clk), zap.Int("spans", len(intervals)))
}
