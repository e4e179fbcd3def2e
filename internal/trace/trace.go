// Package trace holds the data model shared by the tagging and assertion
// engines: snapshots of window and layer state, ordered traces of them, the
// transitions and transactions traces captured alongside, and the component
// matchers used to pick windows and layers out of a snapshot.
//
// Entries are produced by an external capture/parsing collaborator. This
// package only decodes already-materialized entries (YAML or JSON) and
// enforces the ordering invariants.
package trace

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTrace is returned when a trace would have no entries.
	ErrEmptyTrace = errors.New("trace has no entries")

	// ErrUnordered is returned when entry, window or layer timestamps
	// decrease.
	ErrUnordered = errors.New("trace entries are not ordered by timestamp")
)

// Trace is a non-empty sequence of snapshots with non-decreasing timestamps.
// The window and layer sub-state timestamps are non-decreasing too.
type Trace struct {
	entries []Snapshot
}

// New validates entries and wraps them in a Trace.
// The slice is copied; later changes by the caller are not observed.
func New(entries []Snapshot) (*Trace, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTrace
	}
	for i := 1; i < len(entries); i++ {
		cur, prev := entries[i], entries[i-1]
		if cur.Timestamp < prev.Timestamp {
			return nil, fmt.Errorf("%w: entry %d (%d) precedes entry %d (%d)",
				ErrUnordered, i, cur.Timestamp, i-1, prev.Timestamp)
		}
		if cur.Window.Timestamp < prev.Window.Timestamp {
			return nil, fmt.Errorf("%w: window state of entry %d (%d) precedes entry %d (%d)",
				ErrUnordered, i, cur.Window.Timestamp, i-1, prev.Window.Timestamp)
		}
		if cur.Layer.Timestamp < prev.Layer.Timestamp {
			return nil, fmt.Errorf("%w: layer state of entry %d (%d) precedes entry %d (%d)",
				ErrUnordered, i, cur.Layer.Timestamp, i-1, prev.Layer.Timestamp)
		}
	}
	cp := make([]Snapshot, len(entries))
	copy(cp, entries)
	return &Trace{entries: cp}, nil
}

// Len returns the number of entries.
func (t *Trace) Len() int {
	return len(t.entries)
}

// At returns the i-th entry.
func (t *Trace) At(i int) Snapshot {
	return t.entries[i]
}

// Entries returns a copy of all entries in order.
func (t *Trace) Entries() []Snapshot {
	out := make([]Snapshot, len(t.entries))
	copy(out, t.entries)
	return out
}

// First returns the earliest entry.
func (t *Trace) First() Snapshot {
	return t.entries[0]
}

// Last returns the latest entry.
func (t *Trace) Last() Snapshot {
	return t.entries[len(t.entries)-1]
}

// Slice returns the entries whose timestamps fall within [from, to].
// Returns ErrEmptyTrace if none do.
func (t *Trace) Slice(from, to int64) (*Trace, error) {
	var out []Snapshot
	for _, e := range t.entries {
		if e.Timestamp >= from && e.Timestamp <= to {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("slice [%d, %d]: %w", from, to, ErrEmptyTrace)
	}
	return &Trace{entries: out}, nil
}
