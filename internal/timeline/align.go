package timeline

import "errors"

var (
	ErrNoRecords      = errors.New("timeline: no valid interval records")
	ErrAnchorTooEarly = errors.New("timeline: anchor earlier than the reported span")
)

// Interval is a span placed on the trace clock.
type Interval struct {
	Name  string
	Start uint64
	End   uint64
}

// ClockOffset is the signed distance from the host monotonic clock to the
// trace clock, in ns. It is only meaningful for the pass that sampled it.
type ClockOffset int64

// SampleOffset samples both clocks back to back and returns trace - mono.
func SampleOffset(traceNow, monoNow func() uint64) ClockOffset {
	t := traceNow()
	m := monoNow()
	return ClockOffset(int64(t) - int64(m))
}

// Apply moves a monotonic timestamp onto the trace clock. It reports false
// when the result would fall before trace-clock zero.
func (o ClockOffset) Apply(mono uint64) (uint64, bool) {
	ts := int64(mono) + int64(o)
	if ts < 0 {
		return 0, false
	}
	return uint64(ts), true
}

// AlignAbsolute places monotonic-clock records at [start+off, end+off].
// Invalid records and intervals landing before zero are dropped.
func AlignAbsolute(records []Record, off ClockOffset) []Interval {
	out := make([]Interval, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		start, ok := off.Apply(r.Start)
		if !ok {
			continue
		}
		end, _ := off.Apply(r.End)
		out = append(out, Interval{Name: r.Name, Start: start, End: end})
	}
	return out
}

// TotalSpan returns the latest end among the valid records.
func TotalSpan(records []Record) uint64 {
	var total uint64
	for _, r := range records {
		if r.Valid() && r.End > total {
			total = r.End
		}
	}
	return total
}

// AnchorRelative places records from a call-local origin so that the latest
// end lands on anchor: x maps to anchor - (total - x).
func AnchorRelative(records []Record, anchor uint64) ([]Interval, error) {
	total := TotalSpan(records)
	if total == 0 {
		return nil, ErrNoRecords
	}
	if anchor < total {
		return nil, ErrAnchorTooEarly
	}

	out := make([]Interval, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		out = append(out, Interval{
			Name:  r.Name,
			Start: anchor - (total - r.Start),
			End:   anchor - (total - r.End),
		})
	}
	return out, nil
}
