package engine

// Phase is the trace-event phase of a record.
type Phase string

const (
	PhaseComplete Phase = "X"
	PhaseCounter  Phase = "C"
	PhaseMetadata Phase = "M"
)

const (
	metaProcessName = "process_name"
	metaThreadName  = "thread_name"
)

// Event is one buffered trace record. Timestamps are trace-clock nanoseconds.
type Event struct {
	Phase    Phase
	Category string
	Name     string
	Track    uint64
	Ts       uint64
	Dur      uint64
	Text     string
	HasText  bool
	Value    float64
}

type wireEvent struct {
	Name string         `json:"name,omitempty"`
	Cat  string         `json:"cat,omitempty"`
	Ph   Phase          `json:"ph"`
	Ts   float64        `json:"ts"`
	Dur  *float64       `json:"dur,omitempty"`
	Pid  int            `json:"pid"`
	Tid  uint64         `json:"tid"`
	Args map[string]any `json:"args,omitempty"`
}

func nsToMicros(ns uint64) float64 {
	return float64(ns) / 1e3
}

func toWire(ev Event, pid int) wireEvent {
	w := wireEvent{
		Name: ev.Name,
		Cat:  ev.Category,
		Ph:   ev.Phase,
		Ts:   nsToMicros(ev.Ts),
		Pid:  pid,
		Tid:  ev.Track,
	}

	switch ev.Phase {
	case PhaseComplete:
		dur := nsToMicros(ev.Dur)
		w.Dur = &dur
		if ev.HasText {
			w.Args = map[string]any{"text": ev.Text}
		}
	case PhaseCounter:
		w.Args = map[string]any{"value": ev.Value}
	case PhaseMetadata:
		w.Args = map[string]any{"name": ev.Text}
	}
	return w
}

func threadName(track uint64, name string) Event {
	return Event{Phase: PhaseMetadata, Name: metaThreadName, Track: track, Text: name}
}

func processName(name string) Event {
	return Event{Phase: PhaseMetadata, Name: metaProcessName, Text: name}
}
