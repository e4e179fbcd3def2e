package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/region"
	"github.com/roach88/flicker/internal/trace"
)

// Screen is the display frame used by the builders unless overridden.
var Screen = region.Rect{Left: 0, Top: 0, Right: 1080, Bottom: 2400}

// SnapOption customizes a snapshot built by Snap.
type SnapOption func(*trace.Snapshot)

// Snap builds a snapshot at ts. Both sub-states share ts unless WithSkew is used.
// Windows are stacked in the order options add them, topmost first.
func Snap(ts int64, opts ...SnapOption) trace.Snapshot {
	s := trace.Snapshot{
		Timestamp: ts,
		Window: trace.WindowState{
			Timestamp: ts,
			Displays:  []trace.Display{{ID: 0, Bounds: Screen}},
		},
		Layer: trace.LayerState{Timestamp: ts},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// App adds a visible full-screen app window named name with a matching layer.
// The window token is the name itself.
func App(name string) SnapOption {
	return Surface(name, trace.WindowKindApp, true, Screen)
}

// HiddenApp adds an app window and layer that exist but are not visible.
func HiddenApp(name string) SnapOption {
	return Surface(name, trace.WindowKindApp, false, Screen)
}

// Surface adds a window and its backing layer.
func Surface(name string, kind trace.WindowKind, visible bool, frame region.Rect) SnapOption {
	return func(s *trace.Snapshot) {
		s.Window.Windows = append(s.Window.Windows, trace.Window{
			Token:   name,
			Name:    name,
			Kind:    kind,
			Visible: visible,
			Frame:   frame,
		})
		s.Layer.Layers = append(s.Layer.Layers, trace.Layer{
			ID:            len(s.Layer.Layers) + 1,
			Name:          name,
			WindowToken:   name,
			Visible:       visible,
			VisibleRegion: region.New(frame),
		})
	}
}

// LayerOnly adds a visible layer with no window behind it.
func LayerOnly(name string, frame region.Rect) SnapOption {
	return func(s *trace.Snapshot) {
		s.Layer.Layers = append(s.Layer.Layers, trace.Layer{
			ID:            len(s.Layer.Layers) + 1,
			Name:          name,
			Visible:       true,
			VisibleRegion: region.New(frame),
		})
	}
}

// Rotation sets the window-state rotation.
func Rotation(r int) SnapOption {
	return func(s *trace.Snapshot) {
		s.Window.Rotation = r
	}
}

// Animating marks every layer added so far as animating.
func Animating() SnapOption {
	return func(s *trace.Snapshot) {
		for i := range s.Layer.Layers {
			s.Layer.Layers[i].Animating = true
		}
	}
}

// Pinned marks the window with the given token as pinned.
func Pinned(token string) SnapOption {
	return func(s *trace.Snapshot) {
		for i := range s.Window.Windows {
			if s.Window.Windows[i].Token == token {
				s.Window.Windows[i].Pinned = true
			}
		}
	}
}

// WithSkew sets distinct sub-state timestamps.
func WithSkew(windowTS, layerTS int64) SnapOption {
	return func(s *trace.Snapshot) {
		s.Window.Timestamp = windowTS
		s.Layer.Timestamp = layerTS
	}
}

// MustTrace builds a trace and fails the test on invalid input.
func MustTrace(t testing.TB, entries ...trace.Snapshot) *trace.Trace {
	t.Helper()
	tr, err := trace.New(entries)
	require.NoError(t, err)
	return tr
}
