// Package timeline reconstructs GPU interval records reported on a foreign
// clock onto the trace clock and derives a GPU busy counter from them.
package timeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Record is one GPU interval as reported by the backend, on the backend's
// clock.
type Record struct {
	Name  string
	Start uint64
	End   uint64
}

// Valid reports whether r describes a real interval. A zero start marks an
// unused slot.
func (r Record) Valid() bool {
	return r.End > r.Start && r.Start != 0
}

// ParseRecord parses one "start,end,name" line. The name is everything after
// the second comma and may itself contain commas.
func ParseRecord(line string) (Record, bool) {
	line = strings.TrimSuffix(line, "\r")

	startField, rest, ok := strings.Cut(line, ",")
	if !ok {
		return Record{}, false
	}
	endField, name, ok := strings.Cut(rest, ",")
	if !ok {
		return Record{}, false
	}

	start, err := strconv.ParseUint(strings.TrimSpace(startField), 10, 64)
	if err != nil {
		return Record{}, false
	}
	end, err := strconv.ParseUint(strings.TrimSpace(endField), 10, 64)
	if err != nil {
		return Record{}, false
	}
	return Record{Name: name, Start: start, End: end}, true
}

// ParseRecords reads one record per line and keeps the valid ones. Lines that
// do not parse or fail Valid are skipped and counted in skipped. Lines have
// no length limit.
func ParseRecords(r io.Reader) (records []Record, skipped int, err error) {
	br := bufio.NewReader(r)
	for {
		line, rerr := br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return nil, skipped, fmt.Errorf("read records: %w", rerr)
		}

		line = strings.TrimSuffix(line, "\n")
		if strings.TrimSpace(line) != "" {
			rec, ok := ParseRecord(line)
			if ok && rec.Valid() {
				records = append(records, rec)
			} else {
				skipped++
			}
		}

		if rerr != nil {
			return records, skipped, nil
		}
	}
}
