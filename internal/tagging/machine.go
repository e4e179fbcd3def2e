package tagging

import "github.com/roach88/flicker/internal/trace"

// StateName is one state of a scenario machine.
type StateName string

// StateDone ends the scan for the machine that reaches it.
const StateDone StateName = "done"

// State is the current state of a machine plus the subject it is tracking.
type State struct {
	Name        StateName
	WindowToken string
	LayerID     int
	TaskID      int
}

// Done reports whether the machine has finished.
func (s State) Done() bool {
	return s.Name == StateDone
}

// Emission is a tag request produced by a transition.
type Emission struct {
	Start       bool
	At          trace.Snapshot
	LayerID     int
	WindowToken string
	TaskID      int
}

// StartAt requests a start tag at snapshot at, attributed to the subject of s.
func StartAt(at trace.Snapshot, s State) Emission {
	return Emission{Start: true, At: at, LayerID: s.LayerID, WindowToken: s.WindowToken, TaskID: s.TaskID}
}

// EndAt requests an end tag at snapshot at, attributed to the subject of s.
func EndAt(at trace.Snapshot, s State) Emission {
	return Emission{At: at, LayerID: s.LayerID, WindowToken: s.WindowToken, TaskID: s.TaskID}
}

// Timestamp applies the boundary policy: start tags take the earlier
// sub-state timestamp, end tags the later one.
func (e Emission) Timestamp() int64 {
	if e.Start {
		return e.At.StartTimestamp()
	}
	return e.At.EndTimestamp()
}

// TransitionFunc advances a machine by one snapshot. prev and next are nil at
// the trace boundaries. It must not retain or modify its arguments.
type TransitionFunc func(s State, prev, cur, next *trace.Snapshot) (State, []Emission)

// Machine is one scenario's state machine.
type Machine struct {
	Scenario ScenarioType
	Initial  State
	Step     TransitionFunc
}
