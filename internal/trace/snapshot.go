package trace

import (
	"fmt"

	"github.com/roach88/flicker/internal/region"
)

// WindowKind classifies a window for assertion purposes.
type WindowKind string

const (
	WindowKindApp      WindowKind = "app"
	WindowKindNonApp   WindowKind = "non_app"
	WindowKindStarting WindowKind = "starting"
)

// Display is one logical display of the window state.
type Display struct {
	ID       int
	Bounds   region.Rect
	Rotation int
}

// Window is one window of the window-manager state.
type Window struct {
	Token   string
	Name    string
	TaskID  int
	Kind    WindowKind
	Visible bool
	Pinned  bool
	Frame   region.Rect
}

// IsApp reports whether the window belongs to an application.
func (w Window) IsApp() bool {
	return w.Kind == WindowKindApp || w.Kind == WindowKindStarting
}

// WindowState is the window-manager half of a snapshot.
// Windows are ordered from top to bottom of the z-order.
type WindowState struct {
	Timestamp  int64
	Rotation   int
	FocusedApp string
	Displays   []Display
	Windows    []Window
}

// VisibleWindows returns the visible windows in z-order.
func (s WindowState) VisibleWindows() []Window {
	var out []Window
	for _, w := range s.Windows {
		if w.Visible {
			out = append(out, w)
		}
	}
	return out
}

// TopAppWindow returns the highest visible application window.
func (s WindowState) TopAppWindow() (Window, bool) {
	for _, w := range s.Windows {
		if w.Visible && w.IsApp() {
			return w, true
		}
	}
	return Window{}, false
}

// WindowByToken looks up a window by its token.
func (s WindowState) WindowByToken(token string) (Window, bool) {
	for _, w := range s.Windows {
		if w.Token == token {
			return w, true
		}
	}
	return Window{}, false
}

// IsVisible reports whether any window matching m is visible.
func (s WindowState) IsVisible(m Matcher) bool {
	for _, w := range s.Windows {
		if w.Visible && m.MatchesWindow(w) {
			return true
		}
	}
	return false
}

// VisibleRegion is the union of the frames of visible windows matching m.
func (s WindowState) VisibleRegion(m Matcher) region.Region {
	var rects []region.Rect
	for _, w := range s.Windows {
		if w.Visible && m.MatchesWindow(w) {
			rects = append(rects, w.Frame)
		}
	}
	return region.New(rects...)
}

// PrimaryDisplay returns the display with the lowest id.
func (s WindowState) PrimaryDisplay() (Display, bool) {
	if len(s.Displays) == 0 {
		return Display{}, false
	}
	best := s.Displays[0]
	for _, d := range s.Displays[1:] {
		if d.ID < best.ID {
			best = d
		}
	}
	return best, true
}

// Layer is one composited surface of the layer state.
type Layer struct {
	ID            int
	Name          string
	WindowToken   string
	Visible       bool
	Animating     bool
	Z             int
	VisibleRegion region.Region
}

// LayerState is the compositor half of a snapshot.
type LayerState struct {
	Timestamp int64
	Layers    []Layer
}

// IsVisible reports whether any layer matching m is visible with a non-empty region.
func (s LayerState) IsVisible(m Matcher) bool {
	for _, l := range s.Layers {
		if l.Visible && !l.VisibleRegion.IsEmpty() && m.MatchesLayer(l) {
			return true
		}
	}
	return false
}

// VisibleRegion is the union of the visible regions of visible layers matching m.
func (s LayerState) VisibleRegion(m Matcher) region.Region {
	out := region.Empty
	for _, l := range s.Layers {
		if l.Visible && m.MatchesLayer(l) {
			out = out.Union(l.VisibleRegion)
		}
	}
	return out
}

// LayerForWindow returns the layer backing the window with the given token.
func (s LayerState) LayerForWindow(token string) (Layer, bool) {
	for _, l := range s.Layers {
		if l.WindowToken == token {
			return l, true
		}
	}
	return Layer{}, false
}

// IsAnimating reports whether any layer is mid-animation.
func (s LayerState) IsAnimating() bool {
	for _, l := range s.Layers {
		if l.Animating {
			return true
		}
	}
	return false
}

// Snapshot is an immutable point-in-time capture of window and layer state.
type Snapshot struct {
	Timestamp int64
	Window    WindowState
	Layer     LayerState
}

// StartTimestamp is the earlier of the two sub-state timestamps.
func (s Snapshot) StartTimestamp() int64 {
	return min(s.Window.Timestamp, s.Layer.Timestamp)
}

// EndTimestamp is the later of the two sub-state timestamps.
func (s Snapshot) EndTimestamp() int64 {
	return max(s.Window.Timestamp, s.Layer.Timestamp)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("entry@%d", s.Timestamp)
}
