package types

// Backend is a GPU backend that may provide any subset of the optional
// capabilities below. Presence is checked with a type assertion.
type Backend interface {
	Name() string
}

type DeviceDescriber interface {
	DeviceDescription(device int) string
}

type MemoryReporter interface {
	DeviceMemory(device int) (free, total uint64)
}

// PipelineStatsDumper writes backend-defined stats lines to path.
// It returns false when the device does not support the feature.
type PipelineStatsDumper interface {
	DumpPipelineStats(device int, path string) bool
}

// TimelineDumper writes "start,end,name" lines relative to a call-local origin.
type TimelineDumper interface {
	DumpTimeline(device int, path string) bool
}

// AbsTimelineDumper writes "start,end,name" lines on the host monotonic clock.
type AbsTimelineDumper interface {
	DumpTimelineAbs(device int, path string) bool
}

// TimelineAnchorer reports the host monotonic time, in ns, at which the last
// dumped batch was observed complete. Zero means no anchor.
type TimelineAnchorer interface {
	TimelineAnchorMonoNs(device int) uint64
}
