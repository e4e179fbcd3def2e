package trace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flicker/internal/region"
)

// Document is a decoded trace dump: the snapshot trace plus the optional
// transitions and transactions traces recorded alongside it.
type Document struct {
	Trace        *Trace
	Transitions  []Transition
	Transactions *TransactionsTrace
}

// Wire format. YAML is a superset of JSON, so both encodings decode here.
type documentWire struct {
	Entries      []snapshotWire     `yaml:"entries"`
	Transitions  []transitionWire   `yaml:"transitions,omitempty"`
	Transactions []transactionsWire `yaml:"transactions,omitempty"`
}

type snapshotWire struct {
	Timestamp int64       `yaml:"timestamp"`
	Window    windowsWire `yaml:"window"`
	Layer     layersWire  `yaml:"layer"`
}

type windowsWire struct {
	Timestamp  int64         `yaml:"timestamp"`
	Rotation   int           `yaml:"rotation,omitempty"`
	FocusedApp string        `yaml:"focused_app,omitempty"`
	Displays   []displayWire `yaml:"displays,omitempty"`
	Windows    []windowWire  `yaml:"windows,omitempty"`
}

type displayWire struct {
	ID       int         `yaml:"id"`
	Bounds   region.Rect `yaml:"bounds"`
	Rotation int         `yaml:"rotation,omitempty"`
}

type windowWire struct {
	Token   string      `yaml:"token"`
	Name    string      `yaml:"name"`
	TaskID  int         `yaml:"task_id,omitempty"`
	Kind    WindowKind  `yaml:"kind,omitempty"`
	Visible bool        `yaml:"visible"`
	Pinned  bool        `yaml:"pinned,omitempty"`
	Frame   region.Rect `yaml:"frame,omitempty"`
}

type layersWire struct {
	Timestamp int64       `yaml:"timestamp"`
	Layers    []layerWire `yaml:"layers,omitempty"`
}

type layerWire struct {
	ID          int           `yaml:"id"`
	Name        string        `yaml:"name"`
	WindowToken string        `yaml:"window_token,omitempty"`
	Visible     bool          `yaml:"visible"`
	Animating   bool          `yaml:"animating,omitempty"`
	Z           int           `yaml:"z,omitempty"`
	Region      []region.Rect `yaml:"region,omitempty"`
}

type transitionWire struct {
	ID      int            `yaml:"id"`
	Type    TransitionType `yaml:"type"`
	State   int            `yaml:"state"`
	Start   int64          `yaml:"start"`
	End     int64          `yaml:"end"`
	Changes []changeWire   `yaml:"changes,omitempty"`
}

type changeWire struct {
	Mode       TransitionType `yaml:"mode"`
	WindowName string         `yaml:"window_name,omitempty"`
	LayerID    int            `yaml:"layer_id,omitempty"`
	TaskID     int            `yaml:"task_id,omitempty"`
}

type transactionsWire struct {
	Timestamp    int64             `yaml:"timestamp"`
	VSyncID      int64             `yaml:"vsync_id"`
	Transactions []transactionWire `yaml:"transactions"`
}

type transactionWire struct {
	PID              int   `yaml:"pid"`
	UID              int   `yaml:"uid"`
	RequestedVSyncID int64 `yaml:"requested_vsync_id"`
	PostTime         int64 `yaml:"post_time"`
	ID               int64 `yaml:"id"`
}

// Decode reads a trace dump. Unknown fields are rejected so that typos in
// hand-written fixtures fail loudly.
func Decode(r io.Reader) (*Document, error) {
	var wire documentWire
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&wire); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode trace: %w", ErrEmptyTrace)
		}
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	return wire.toDocument()
}

// DecodeFile reads a trace dump from path.
func DecodeFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace file: %w", err)
	}
	doc, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

func (w documentWire) toDocument() (*Document, error) {
	entries := make([]Snapshot, len(w.Entries))
	for i, e := range w.Entries {
		entries[i] = e.toSnapshot()
	}
	tr, err := New(entries)
	if err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}

	doc := &Document{Trace: tr}
	for i, t := range w.Transitions {
		state, err := ParseTransitionState(t.State)
		if err != nil {
			return nil, fmt.Errorf("decode trace: transitions[%d]: %w", i, err)
		}
		changes := make([]Change, len(t.Changes))
		for j, c := range t.Changes {
			changes[j] = Change(c)
		}
		doc.Transitions = append(doc.Transitions, Transition{
			ID:      t.ID,
			Type:    t.Type,
			State:   state,
			Start:   t.Start,
			End:     t.End,
			Changes: changes,
		})
	}

	if len(w.Transactions) > 0 {
		txEntries := make([]TransactionsEntry, len(w.Transactions))
		for i, e := range w.Transactions {
			txs := make([]Transaction, len(e.Transactions))
			for j, tx := range e.Transactions {
				txs[j] = Transaction{
					PID:              tx.PID,
					UID:              tx.UID,
					RequestedVSyncID: tx.RequestedVSyncID,
					PostTime:         tx.PostTime,
					ID:               tx.ID,
				}
			}
			txEntries[i] = TransactionsEntry{Timestamp: e.Timestamp, VSyncID: e.VSyncID, Transactions: txs}
		}
		doc.Transactions = NewTransactionsTrace(txEntries)
	}

	return doc, nil
}

func (s snapshotWire) toSnapshot() Snapshot {
	ws := WindowState{
		Timestamp:  s.Window.Timestamp,
		Rotation:   s.Window.Rotation,
		FocusedApp: s.Window.FocusedApp,
	}
	for _, d := range s.Window.Displays {
		ws.Displays = append(ws.Displays, Display(d))
	}
	for _, w := range s.Window.Windows {
		kind := w.Kind
		if kind == "" {
			kind = WindowKindApp
		}
		ws.Windows = append(ws.Windows, Window{
			Token:   w.Token,
			Name:    w.Name,
			TaskID:  w.TaskID,
			Kind:    kind,
			Visible: w.Visible,
			Pinned:  w.Pinned,
			Frame:   w.Frame,
		})
	}

	ls := LayerState{Timestamp: s.Layer.Timestamp}
	for _, l := range s.Layer.Layers {
		ls.Layers = append(ls.Layers, Layer{
			ID:            l.ID,
			Name:          l.Name,
			WindowToken:   l.WindowToken,
			Visible:       l.Visible,
			Animating:     l.Animating,
			Z:             l.Z,
			VisibleRegion: region.New(l.Region...),
		})
	}

	return Snapshot{Timestamp: s.Timestamp, Window: ws, Layer: ls}
}
