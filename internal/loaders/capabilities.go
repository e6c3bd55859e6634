package loaders

import (
	"sync"

	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/zap"
)

// Capability names, as reported in logs.
const (
	CapDeviceDescription = "device_description"
	CapDeviceMemory      = "device_memory"
	CapPipelineStats     = "dump_pipeline_stats"
	CapTimeline          = "dump_timeline"
	CapTimelineAbs       = "dump_timeline_abs"
	CapTimelineAnchor    = "timeline_anchor_mono_ns"
)

// Capabilities is the resolved table of optional backend features. A nil
// field means the feature is absent.
type Capabilities struct {
	DeviceDescription    func(device int) string
	DeviceMemory         func(device int) (free, total uint64)
	DumpPipelineStats    func(device int, path string) bool
	DumpTimeline         func(device int, path string) bool
	DumpTimelineAbs      func(device int, path string) bool
	TimelineAnchorMonoNs func(device int) uint64
}

// HasTimeline reports whether either timeline dump is available.
func (c *Capabilities) HasTimeline() bool {
	return c != nil && (c.DumpTimeline != nil || c.DumpTimelineAbs != nil)
}

// Count returns the number of present capabilities.
func (c *Capabilities) Count() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, present := range []bool{
		c.DeviceDescription != nil,
		c.DeviceMemory != nil,
		c.DumpPipelineStats != nil,
		c.DumpTimeline != nil,
		c.DumpTimelineAbs != nil,
		c.TimelineAnchorMonoNs != nil,
	} {
		if present {
			n++
		}
	}
	return n
}

var (
	registryMu sync.RWMutex
	registered types.Backend
)

// Register installs the process GPU backend. A resolver that already
// resolved does not observe it.
func Register(b types.Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registered = b
}

// Registered returns the backend installed with Register, or nil.
func Registered() types.Backend {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registered
}

// Resolver discovers the backend capabilities once and caches the table.
type Resolver struct {
	once   sync.Once
	source func() types.Backend
	caps   *Capabilities
}

// NewResolver returns a resolver reading its backend from source on first
// use. A nil source reads the registry.
func NewResolver(source func() types.Backend) *Resolver {
	if source == nil {
		source = Registered
	}
	return &Resolver{source: source}
}

// Resolve returns the capability table. The first caller resolves, every
// other caller waits for and shares that result.
func (r *Resolver) Resolve() *Capabilities {
	r.once.Do(func() {
		r.caps = resolve(r.source())
	})
	return r.caps
}

func resolve(b types.Backend) *Capabilities {
	logger := logutil.GetLogger().With(zap.String("component", "loaders"))
	caps := &Capabilities{}

	if b == nil {
		logger.Debug("no GPU backend registered, all capabilities absent")
		return caps
	}

	entries := []struct {
		name string
		bind func() bool
	}{
		{CapDeviceDescription, func() bool {
			d, ok := b.(types.DeviceDescriber)
			if ok {
				caps.DeviceDescription = d.DeviceDescription
			}
			return ok
		}},
		{CapDeviceMemory, func() bool {
			m, ok := b.(types.MemoryReporter)
			if ok {
				caps.DeviceMemory = m.DeviceMemory
			}
			return ok
		}},
		{CapPipelineStats, func() bool {
			d, ok := b.(types.PipelineStatsDumper)
			if ok {
				caps.DumpPipelineStats = d.DumpPipelineStats
			}
			return ok
		}},
		{CapTimeline, func() bool {
			d, ok := b.(types.TimelineDumper)
			if ok {
				caps.DumpTimeline = d.DumpTimeline
			}
			return ok
		}},
		{CapTimelineAbs, func() bool {
			d, ok := b.(types.AbsTimelineDumper)
			if ok {
				caps.DumpTimelineAbs = d.DumpTimelineAbs
			}
			return ok
		}},
		{CapTimelineAnchor, func() bool {
			a, ok := b.(types.TimelineAnchorer)
			if ok {
				caps.TimelineAnchorMonoNs = a.TimelineAnchorMonoNs
			}
			return ok
		}},
	}

	for _, e := range entries {
		if !e.bind() {
			logger.Debug("capability not available", zap.String("backend", b.Name()), zap.String("capability", e.name))
			continue // skip this one but keep resolving the others
		}
		logger.Debug("resolved capability", zap.String("backend", b.Name()), zap.String("capability", e.name))
	}

	return caps
}
