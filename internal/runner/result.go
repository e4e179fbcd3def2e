package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/flicker/internal/trace"
)

// RunStatus is the execution status of one iteration.
type RunStatus string

const (
	StatusUnknown        RunStatus = "UNKNOWN"
	StatusRunExecuted    RunStatus = "RUN_EXECUTED"
	StatusRunFailed      RunStatus = "RUN_FAILED"
	StatusParsingFailure RunStatus = "PARSING_FAILURE"
)

// IsFailure reports whether s marks an iteration whose traces cannot be trusted.
func (s RunStatus) IsFailure() bool {
	return s == StatusRunFailed || s == StatusParsingFailure
}

// ErrResultLocked is returned when a locked result is modified.
var ErrResultLocked = errors.New("run result is locked")

// Artifact is a file produced by a monitor during one iteration.
type Artifact struct {
	Monitor string `json:"monitor"`
	Path    string `json:"path"`
}

// TaggedState is a pair of state dumps captured by CreateTag.
type TaggedState struct {
	Label      string `json:"label"`
	WindowDump string `json:"window_dump"`
	LayerDump  string `json:"layer_dump"`
}

// RunResult is the outcome of one iteration. The running iteration owns it
// until TraceProcessing locks it; after that it is read-only except that the
// status may still be downgraded to RUN_FAILED.
type RunResult struct {
	mu           sync.Mutex
	testName     string
	iteration    int
	status       RunStatus
	artifacts    []Artifact
	docs         map[string]*trace.Document
	taggedStates []TaggedState
	locked       bool
}

func newRunResult(testName string, iteration int) *RunResult {
	return &RunResult{testName: testName, iteration: iteration, status: StatusUnknown}
}

func (r *RunResult) TestName() string { return r.testName }
func (r *RunResult) Iteration() int   { return r.iteration }

func (r *RunResult) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Locked reports whether the result has been locked.
func (r *RunResult) Locked() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locked
}

// Artifacts returns a copy of the recorded artifacts.
func (r *RunResult) Artifacts() []Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.artifacts)
}

// TaggedStates returns a copy of the captured tagged states.
func (r *RunResult) TaggedStates() []TaggedState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.taggedStates)
}

// Trace returns the parsed trace produced by the named monitor.
func (r *RunResult) Trace(monitor string) (*trace.Trace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[monitor]
	if !ok || doc == nil || doc.Trace == nil {
		return nil, false
	}
	return doc.Trace, true
}

// Transitions returns the transitions recorded alongside the named
// monitor's trace. It is empty when the monitor recorded none.
func (r *RunResult) Transitions(monitor string) []trace.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[monitor]
	if !ok || doc == nil {
		return nil
	}
	return slices.Clone(doc.Transitions)
}

// setStatus changes the status. Once locked, only a downgrade to RUN_FAILED
// is accepted.
func (r *RunResult) setStatus(s RunStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked && s != StatusRunFailed {
		return fmt.Errorf("set status %s: %w", s, ErrResultLocked)
	}
	r.status = s
	return nil
}

func (r *RunResult) addArtifact(a Artifact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("add artifact %s: %w", a.Path, ErrResultLocked)
	}
	r.artifacts = append(r.artifacts, a)
	return nil
}

// renameArtifacts rewrites artifact paths after files were moved aside.
func (r *RunResult) renameArtifacts(renamed map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.artifacts {
		if p, ok := renamed[a.Path]; ok {
			r.artifacts[i].Path = p
		}
	}
}

func (r *RunResult) setDocuments(docs map[string]*trace.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("set traces: %w", ErrResultLocked)
	}
	r.docs = docs
	return nil
}

func (r *RunResult) addTaggedState(ts TaggedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.locked {
		return fmt.Errorf("add tagged state %s: %w", ts.Label, ErrResultLocked)
	}
	r.taggedStates = append(r.taggedStates, ts)
	return nil
}

func (r *RunResult) lock() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locked = true
}

type runResultJSON struct {
	TestName     string        `json:"test_name"`
	Iteration    int           `json:"iteration"`
	Status       RunStatus     `json:"status"`
	Artifacts    []Artifact    `json:"artifacts"`
	Traces       []string      `json:"traces"`
	TaggedStates []TaggedState `json:"tagged_states"`
}

// MarshalJSON encodes the result's observable state. Parsed traces are
// listed by monitor name only.
func (r *RunResult) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	traces := make([]string, 0, len(r.docs))
	for name := range r.docs {
		traces = append(traces, name)
	}
	slices.Sort(traces)
	return json.Marshal(runResultJSON{
		TestName:     r.testName,
		Iteration:    r.iteration,
		Status:       r.status,
		Artifacts:    nonNil(r.artifacts),
		Traces:       traces,
		TaggedStates: nonNil(r.taggedStates),
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Summary is the outcome of a whole run.
type Summary struct {
	RunID           string        `json:"run_id"`
	TestName        string        `json:"test_name"`
	Results         []*RunResult  `json:"results"`
	Tags            []string      `json:"tags"`
	ExecutionErrors []*PhaseError `json:"-"`
}

// Err joins every execution error, or returns nil for a clean run.
func (s *Summary) Err() error {
	errs := make([]error, len(s.ExecutionErrors))
	for i, e := range s.ExecutionErrors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Failed reports whether any execution error occurred or any result failed.
func (s *Summary) Failed() bool {
	if len(s.ExecutionErrors) > 0 {
		return true
	}
	for _, r := range s.Results {
		if r.Status().IsFailure() {
			return true
		}
	}
	return false
}
