//go:build linux

package engine

import "golang.org/x/sys/unix"

// TraceTimeNs samples the trace clock (CLOCK_BOOTTIME) in nanoseconds.
func TraceTimeNs() uint64 {
	return clockNs(unix.CLOCK_BOOTTIME)
}

// MonotonicNs samples the host monotonic clock (CLOCK_MONOTONIC) in nanoseconds.
// GPU backends report absolute timestamps on this clock.
func MonotonicNs() uint64 {
	return clockNs(unix.CLOCK_MONOTONIC)
}

func clockNs(id int32) uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(id, &ts); err != nil {
		return 0
	}
	return uint64(ts.Nano())
}
