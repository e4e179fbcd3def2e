package subject

import (
	"fmt"

	"github.com/roach88/flicker/internal/trace"
)

// Kind selects which half of a snapshot a subject inspects.
type Kind string

const (
	KindWindows Kind = "windows"
	KindLayers  Kind = "layers"
)

// EntrySubject checks a single snapshot.
type EntrySubject struct {
	kind  Kind
	entry trace.Snapshot
}

// NewEntrySubject wraps entry for checks against the given half.
func NewEntrySubject(kind Kind, entry trace.Snapshot) *EntrySubject {
	return &EntrySubject{kind: kind, entry: entry}
}

// Entry returns the wrapped snapshot.
func (e *EntrySubject) Entry() trace.Snapshot {
	return e.entry
}

// Kind returns the half of the snapshot under check.
func (e *EntrySubject) Kind() Kind {
	return e.kind
}

// Timestamp is the timestamp of the inspected sub-state.
func (e *EntrySubject) Timestamp() int64 {
	if e.kind == KindLayers {
		return e.entry.Layer.Timestamp
	}
	return e.entry.Window.Timestamp
}

// IsVisible fails unless a window or layer matching m is visible.
func (e *EntrySubject) IsVisible(m trace.Matcher) error {
	if e.visible(m) {
		return nil
	}
	return e.Fail("is not visible", "Component", m.String())
}

// IsInvisible fails if a window or layer matching m is visible.
func (e *EntrySubject) IsInvisible(m trace.Matcher) error {
	if !e.visible(m) {
		return nil
	}
	return e.Fail("is visible", "Component", m.String())
}

// IsAppWindowOnTop fails unless the top visible app window matches m.
// Layer subjects use the window half of the same snapshot.
func (e *EntrySubject) IsAppWindowOnTop(m trace.Matcher) error {
	top, ok := e.entry.Window.TopAppWindow()
	if !ok {
		return e.Fail("no app window on top", "Expected", m.String())
	}
	if !m.MatchesWindow(top) {
		return e.Fail("app window is not on top", "Expected", m.String(), "Found", top.Name)
	}
	return nil
}

// IsPinned fails unless a window matching m is pinned.
func (e *EntrySubject) IsPinned(m trace.Matcher) error {
	if e.pinned(m) {
		return nil
	}
	return e.Fail("is not pinned", "Component", m.String())
}

// IsNotPinned fails if a window matching m is pinned.
func (e *EntrySubject) IsNotPinned(m trace.Matcher) error {
	if !e.pinned(m) {
		return nil
	}
	return e.Fail("is pinned", "Component", m.String())
}

// VisibleRegion returns the area covered by visible windows or layers matching m.
func (e *EntrySubject) VisibleRegion(m trace.Matcher) *RegionSubject {
	r := e.entry.Window.VisibleRegion(m)
	if e.kind == KindLayers {
		r = e.entry.Layer.VisibleRegion(m)
	}
	return NewRegionSubject(m.String(), e.Timestamp(), r)
}

// Fail builds a failure located at this entry.
func (e *EntrySubject) Fail(message string, kv ...string) *Failure {
	loc := []string{"Entry", string(e.kind), "Timestamp", fmt.Sprint(e.Timestamp())}
	return Fail(message, append(loc, kv...)...)
}

func (e *EntrySubject) visible(m trace.Matcher) bool {
	if e.kind == KindLayers {
		return e.entry.Layer.IsVisible(m)
	}
	return e.entry.Window.IsVisible(m)
}

func (e *EntrySubject) pinned(m trace.Matcher) bool {
	for _, w := range e.entry.Window.Windows {
		if w.Pinned && m.MatchesWindow(w) {
			return true
		}
	}
	return false
}
