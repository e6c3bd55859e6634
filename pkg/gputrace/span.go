package gputrace

import "github.com/ALEYI17/InfraSight_gputrace/pkg/types"

// Span is an open interval. It is recorded when End is called, as one
// complete event. The zero Span, returned while tracing is disabled, ends
// as a no-op.
type Span struct {
	t        *Tracer
	category string
	name     string
	text     string
	hasText  bool
	track    uint64
	start    uint64
}

// Begin opens a CPU span. An empty name is recorded as "op".
func (t *Tracer) Begin(name string) Span {
	return t.begin(types.CategoryML, name, types.DefaultCPUSpanName, types.TrackCPU)
}

// BeginWithText opens a CPU span carrying text as its "text" argument.
func (t *Tracer) BeginWithText(name, text string) Span {
	s := t.begin(types.CategoryML, name, types.DefaultCPUSpanName, types.TrackCPU)
	if s.t != nil {
		s.text, s.hasText = text, true
	}
	return s
}

// GPUBegin opens a GPU span. An empty name is recorded as "vk_dispatch".
func (t *Tracer) GPUBegin(name string) Span {
	return t.begin(types.CategoryGPU, name, types.DefaultGPUSpanName, types.TrackGPU)
}

func (t *Tracer) begin(category, name, fallback string, track uint64) Span {
	if !t.tracing.Enabled() {
		return Span{}
	}
	if name == "" {
		name = fallback
	}
	return Span{t: t, category: category, name: name, track: track, start: t.tracing.Now()}
}

func (s Span) End() {
	if s.t == nil {
		return
	}
	end := s.t.tracing.Now()
	if s.hasText {
		s.t.tracing.CompleteWithText(s.category, s.name, s.text, s.track, s.start, end)
		return
	}
	s.t.tracing.Complete(s.category, s.name, s.track, s.start, end)
}

// Counter posts a sample on the named counter track.
func (t *Tracer) Counter(track string, value float64) {
	t.tracing.Counter(types.CategoryML, track, value)
}

func (t *Tracer) CounterTokensPerSecond(tokensPerSecond float64) {
	t.tracing.Counter(types.CategoryML, types.CounterTokensPerSecond, tokensPerSecond)
}

func (t *Tracer) CounterGPUBusy(percent float64) {
	t.tracing.Counter(types.CategoryGPU, types.CounterGPUBusyPercent, percent)
}
