package engine

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// eventWriter appends events to a JSON array, writing the delimiter before
// each event so that a file cut short at any event boundary is still a
// loadable array prefix.
type eventWriter struct {
	w          io.Writer
	pid        int
	wroteFirst bool
}

func newEventWriter(w io.Writer, pid int) *eventWriter {
	return &eventWriter{w: w, pid: pid}
}

func (ew *eventWriter) open() error {
	if _, err := io.WriteString(ew.w, "["); err != nil {
		return fmt.Errorf("write array start: %w", err)
	}
	return nil
}

func (ew *eventWriter) write(ev Event) error {
	delim := ",\n"
	if !ew.wroteFirst {
		delim = "\n"
		ew.wroteFirst = true
	}
	if _, err := io.WriteString(ew.w, delim); err != nil {
		return fmt.Errorf("write event delimiter: %w", err)
	}

	b, err := json.Marshal(toWire(ev, ew.pid))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := ew.w.Write(b); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (ew *eventWriter) close() error {
	if _, err := io.WriteString(ew.w, "\n]\n"); err != nil {
		return fmt.Errorf("write array end: %w", err)
	}
	return nil
}
