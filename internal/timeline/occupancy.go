package timeline

import (
	"cmp"
	"slices"
)

const (
	busyPercent = 100.0
	idlePercent = 0.0
)

// Sample is one point of the busy step function.
type Sample struct {
	Ts      uint64
	Percent float64
}

type occupancyEvent struct {
	ts    uint64
	delta int
}

// Occupancy turns intervals into a busy/idle step function: 100 when the
// active count rises from zero, 0 when it returns to zero. Ends sort before
// starts at equal timestamps, so back-to-back intervals still produce a drop.
func Occupancy(intervals []Interval) []Sample {
	evs := make([]occupancyEvent, 0, len(intervals)*2)
	for _, iv := range intervals {
		if iv.End <= iv.Start {
			continue
		}
		evs = append(evs, occupancyEvent{iv.Start, +1}, occupancyEvent{iv.End, -1})
	}
	if len(evs) == 0 {
		return nil
	}

	slices.SortFunc(evs, func(a, b occupancyEvent) int {
		if c := cmp.Compare(a.ts, b.ts); c != 0 {
			return c
		}
		return cmp.Compare(a.delta, b.delta)
	})

	var samples []Sample
	active := 0
	for _, ev := range evs {
		if ev.delta > 0 {
			if active == 0 {
				samples = append(samples, Sample{Ts: ev.ts, Percent: busyPercent})
			}
			active++
			continue
		}
		active--
		if active == 0 {
			samples = append(samples, Sample{Ts: ev.ts, Percent: idlePercent})
		}
	}
	return samples
}
