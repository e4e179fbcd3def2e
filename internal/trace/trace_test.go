package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flicker/internal/region"
)

const sampleDump = `
entries:
  - timestamp: 100
    window:
      timestamp: 98
      displays:
        - id: 0
          bounds: {left: 0, top: 0, right: 1080, bottom: 2400}
      windows:
        - token: launcher
          name: com.android.launcher/.NexusLauncherActivity
          visible: true
          frame: {left: 0, top: 0, right: 1080, bottom: 2400}
        - token: nav
          name: NavigationBar0
          kind: non_app
          visible: true
          frame: {left: 0, top: 2300, right: 1080, bottom: 2400}
    layer:
      timestamp: 100
      layers:
        - id: 1
          name: NexusLauncherActivity#1
          window_token: launcher
          visible: true
          region:
            - {left: 0, top: 0, right: 1080, bottom: 2400}
  - timestamp: 200
    window:
      timestamp: 201
      rotation: 1
    layer:
      timestamp: 199
      layers:
        - id: 1
          name: NexusLauncherActivity#1
          window_token: launcher
          visible: false
          animating: true
transitions:
  - id: 7
    type: OPEN
    state: 4
    start: 150
    end: 250
    changes:
      - mode: OPEN
        window_name: com.example.app/.Main
        task_id: 12
transactions:
  - timestamp: 120
    vsync_id: 55
    transactions:
      - {pid: 1, uid: 1000, requested_vsync_id: 54, post_time: 110, id: 900}
      - {pid: 2, uid: 1000, requested_vsync_id: 54, post_time: 111, id: 901}
`

func TestDecode_FullDocument(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleDump))
	require.NoError(t, err)

	require.Equal(t, 2, doc.Trace.Len())
	first := doc.Trace.First()
	assert.Equal(t, int64(100), first.Timestamp)
	assert.Equal(t, int64(98), first.StartTimestamp())
	assert.Equal(t, int64(100), first.EndTimestamp())

	top, ok := first.Window.TopAppWindow()
	require.True(t, ok)
	assert.Equal(t, "launcher", top.Token)
	assert.True(t, first.Window.IsVisible(NavBar))
	assert.True(t, first.Layer.IsVisible(Launcher))

	display, ok := first.Window.PrimaryDisplay()
	require.True(t, ok)
	assert.Equal(t, 1080, display.Bounds.Right)

	last := doc.Trace.Last()
	assert.Equal(t, 1, last.Window.Rotation)
	assert.False(t, last.Layer.IsVisible(Launcher))
	assert.True(t, last.Layer.IsAnimating())

	require.Len(t, doc.Transitions, 1)
	tr := doc.Transitions[0]
	assert.Equal(t, TransitionOpen, tr.Type)
	assert.Equal(t, TransitionFinished, tr.State)
	assert.True(t, tr.HasChange(TransitionOpen))
	assert.False(t, tr.HasChange(TransitionClose))
	name, ok := tr.ChangeWindow(TransitionOpen)
	require.True(t, ok)
	assert.Equal(t, "com.example.app/.Main", name)

	require.NotNil(t, doc.Transactions)
	all := doc.Transactions.AllTransactions()
	require.Len(t, all, 2)
	assert.Equal(t, int64(55), all[0].AppliedVSyncID())
	assert.Equal(t, int64(901), all[1].ID)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("entries: []\nentrys: []\n"))
	require.Error(t, err)
}

func TestDecode_EmptyDocument(t *testing.T) {
	_, err := Decode(strings.NewReader(""))
	require.ErrorIs(t, err, ErrEmptyTrace)

	_, err = Decode(strings.NewReader("entries: []\n"))
	require.ErrorIs(t, err, ErrEmptyTrace)
}

func TestDecode_UnknownTransitionState(t *testing.T) {
	dump := "entries:\n  - timestamp: 1\n    window: {timestamp: 1}\n    layer: {timestamp: 1}\n" +
		"transitions:\n  - {id: 1, type: OPEN, state: 42, start: 0, end: 1}\n"
	_, err := Decode(strings.NewReader(dump))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transition state 42")
}

func TestDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDump), 0o644))

	doc, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Trace.Len())

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNew_Invariants(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrEmptyTrace)

	_, err = New([]Snapshot{{Timestamp: 10}, {Timestamp: 5}})
	require.ErrorIs(t, err, ErrUnordered)

	tr, err := New([]Snapshot{{Timestamp: 10}, {Timestamp: 10}, {Timestamp: 11}})
	require.NoError(t, err)
	assert.Equal(t, 3, tr.Len())
}

func TestNew_SubStateOrder(t *testing.T) {
	tests := []struct {
		name    string
		entries []Snapshot
		want    string
	}{
		{
			name: "window goes backwards",
			entries: []Snapshot{
				{Timestamp: 1, Window: WindowState{Timestamp: 5}, Layer: LayerState{Timestamp: 1}},
				{Timestamp: 2, Window: WindowState{Timestamp: 4}, Layer: LayerState{Timestamp: 2}},
			},
			want: "window state of entry 1 (4)",
		},
		{
			name: "layer goes backwards",
			entries: []Snapshot{
				{Timestamp: 1, Window: WindowState{Timestamp: 1}, Layer: LayerState{Timestamp: 3}},
				{Timestamp: 2, Window: WindowState{Timestamp: 2}, Layer: LayerState{Timestamp: 2}},
			},
			want: "layer state of entry 1 (2)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.entries)
			require.ErrorIs(t, err, ErrUnordered)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	// Skewed sub-states are fine as long as each keeps its own order.
	_, err := New([]Snapshot{
		{Timestamp: 1, Window: WindowState{Timestamp: 1}, Layer: LayerState{Timestamp: 3}},
		{Timestamp: 2, Window: WindowState{Timestamp: 4}, Layer: LayerState{Timestamp: 3}},
	})
	require.NoError(t, err)
}

func TestNew_CopiesEntries(t *testing.T) {
	entries := []Snapshot{{Timestamp: 1}, {Timestamp: 2}}
	tr, err := New(entries)
	require.NoError(t, err)

	entries[0].Timestamp = 99
	assert.Equal(t, int64(1), tr.First().Timestamp)

	out := tr.Entries()
	out[1].Timestamp = 99
	assert.Equal(t, int64(2), tr.Last().Timestamp)
}

func TestTrace_Slice(t *testing.T) {
	tr, err := New([]Snapshot{{Timestamp: 1}, {Timestamp: 5}, {Timestamp: 9}, {Timestamp: 12}})
	require.NoError(t, err)

	sub, err := tr.Slice(5, 9)
	require.NoError(t, err)
	require.Equal(t, 2, sub.Len())
	assert.Equal(t, int64(5), sub.First().Timestamp)
	assert.Equal(t, int64(9), sub.Last().Timestamp)

	_, err = tr.Slice(2, 4)
	require.ErrorIs(t, err, ErrEmptyTrace)
}

func TestLayerState_VisibleRegionUnion(t *testing.T) {
	ls := LayerState{Layers: []Layer{
		{Name: "StatusBar", Visible: true, VisibleRegion: region.FromRect(0, 0, 100, 10)},
		{Name: "StatusBar#2", Visible: true, VisibleRegion: region.FromRect(0, 10, 100, 20)},
		{Name: "StatusBar#3", Visible: false, VisibleRegion: region.FromRect(0, 20, 100, 30)},
	}}

	got := ls.VisibleRegion(StatusBar)
	assert.True(t, got.CoversExactly(region.FromRect(0, 0, 100, 20)))
}

func TestMatchers(t *testing.T) {
	w := Window{Token: "abc", Name: "com.example/.Main"}
	l := Layer{Name: "Surface(com.example/.Main)", WindowToken: "abc"}

	assert.True(t, Component{Name: "com.example"}.MatchesWindow(w))
	assert.False(t, Component{Name: ""}.MatchesWindow(w))
	assert.True(t, Token("abc").MatchesLayer(l))
	assert.False(t, Token("xyz").MatchesWindow(w))

	m := AnyOf(Token("xyz"), Component{Name: "Main"})
	assert.True(t, m.MatchesWindow(w))
	assert.True(t, m.MatchesLayer(l))
	assert.Equal(t, "token:xyz or Main", m.String())
	assert.True(t, Any.MatchesLayer(l))
}

func TestTransitionState_String(t *testing.T) {
	assert.Equal(t, "PLAYING", TransitionPlaying.String())
	assert.Equal(t, "TransitionState(9)", TransitionState(9).String())
}
