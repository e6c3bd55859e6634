//go:build !linux

package engine

import "time"

var clockBase = time.Now()

// TraceTimeNs falls back to the Go monotonic clock on platforms without
// CLOCK_BOOTTIME. Both clocks share one origin, so their offset is zero.
func TraceTimeNs() uint64 {
	return uint64(time.Since(clockBase)) + 1
}

func MonotonicNs() uint64 {
	return uint64(time.Since(clockBase)) + 1
}
