package types

const (
	CategoryML  = "ML"
	CategoryGPU = "GPU"

	DefaultCPUSpanName = "op"
	DefaultGPUSpanName = "vk_dispatch"

	CounterTokensPerSecond = "tokens_per_s"
	CounterGPUBusyPercent  = "gpu_busy_percent"
)

// Track ids used in the trace output.
const (
	TrackCPU      uint64 = 1
	TrackGPU      uint64 = 2
	TrackGPUQueue uint64 = 0x47505551304

	TrackGPUQueueName = "GPU Queue 0"
)

// Companion and scratch file suffixes, appended to the trace path.
const (
	SuffixStats       = ".vkstats"
	SuffixTimeline    = ".vktimeline"
	SuffixTimelineAbs = ".vktimeline.abs"
)

const (
	EnvTracePath = "LLAMA_PERFETTO_TRACE"
	EnvEnable    = "LLAMA_PERFETTO"

	DefaultTracePath = "llama.perfetto-trace"
)
