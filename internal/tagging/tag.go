// Package tagging detects scenario occurrences in a trace.
//
// Each scenario is a Machine: an explicit set of states and a pure
// transition function evaluated once per snapshot, in trace order. When a
// transition fires the machine emits start or end markers, which a Session
// turns into Tags with ids drawn from an IDSource owned by the caller.
//
// A start tag is stamped with the earlier of the snapshot's window and layer
// timestamps, an end tag with the later one, so a detected interval always
// includes every sub-state event related to it.
package tagging

import (
	"fmt"
	"sync/atomic"
)

// ScenarioType names a detectable scenario.
type ScenarioType string

const (
	ScenarioAppLaunch ScenarioType = "APP_LAUNCH"
	ScenarioAppClose  ScenarioType = "APP_CLOSE"
	ScenarioRotation  ScenarioType = "ROTATION"
	ScenarioImeAppear ScenarioType = "IME_APPEAR"
)

// Tag marks the start or end of one scenario occurrence.
// The start and end of an occurrence share an ID.
type Tag struct {
	ID          int64        `json:"id"`
	Scenario    ScenarioType `json:"scenario"`
	IsStart     bool         `json:"is_start"`
	LayerID     int          `json:"layer_id,omitempty"`
	WindowToken string       `json:"window_token,omitempty"`
	TaskID      int          `json:"task_id,omitempty"`
	Timestamp   int64        `json:"timestamp"`
}

func (t Tag) String() string {
	kind := "end"
	if t.IsStart {
		kind = "start"
	}
	return fmt.Sprintf("%s#%d %s@%d", t.Scenario, t.ID, kind, t.Timestamp)
}

// IDSource hands out tag ids. Ids must be unique; their values carry no meaning.
type IDSource interface {
	Next() int64
}

// Sequence is a monotonic IDSource, safe for concurrent use.
// The first id is 1.
type Sequence struct {
	last atomic.Int64
}

// NewSequence creates a sequence starting at 1.
func NewSequence() *Sequence {
	return &Sequence{}
}

// NewSequenceAt creates a sequence whose next id is start+1.
// Used to continue numbering across stored runs.
func NewSequenceAt(start int64) *Sequence {
	s := &Sequence{}
	s.last.Store(start)
	return s
}

// Next returns the next id.
func (s *Sequence) Next() int64 {
	return s.last.Add(1)
}

// Current returns the last id handed out.
func (s *Sequence) Current() int64 {
	return s.last.Load()
}
