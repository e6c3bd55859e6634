package gputrace

// Package-level helpers operating on Default().

func Begin(name string) Span { return Default().Begin(name) }

func BeginWithText(name, text string) Span { return Default().BeginWithText(name, text) }

func GPUBegin(name string) Span { return Default().GPUBegin(name) }

func Counter(track string, value float64) { Default().Counter(track, value) }

func CounterTokensPerSecond(v float64) { Default().CounterTokensPerSecond(v) }

func CounterGPUBusy(percent float64) { Default().CounterGPUBusy(percent) }

func StartTrace(path string) { Default().StartTrace(path) }

func TryStartFromEnv() { Default().TryStartFromEnv() }

func StopFlush() { Default().StopFlush() }

func FlushDumpStats() { Default().FlushDumpStats() }

func EmitGPUTimeline() { Default().EmitGPUTimeline() }

func PrintGPUStats() { Default().PrintGPUStats() }
