// Package assertor selects and runs named assertions for a transition.
//
// Every assertion belongs to an invocation group. A failing non-blocking
// assertion is recorded and the batch goes on; a failing blocking assertion
// is recorded and the rest of the batch is skipped.
package assertor

import (
	"errors"
	"fmt"

	"github.com/roach88/flicker/internal/subject"
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// Group is an assertion's invocation group.
type Group string

const (
	Blocking    Group = "BLOCKING"
	NonBlocking Group = "NON_BLOCKING"
)

// ScenarioCommon is the scenario whose assertions apply to every transition.
const ScenarioCommon tagging.ScenarioType = "COMMON"

// Components are the transition-specific components an assertion can refer to.
// A nil matcher means the transition has no such participant.
type Components struct {
	Opening trace.Matcher
	Closing trace.Matcher
	// Subject is the window name or token the transition is about.
	Subject string
}

// ComponentsFor resolves the opening and closing app of a transition from
// its changes.
func ComponentsFor(t trace.Transition) Components {
	var c Components
	if name, ok := t.ChangeWindow(trace.TransitionOpen); ok {
		c.Opening = trace.Component{Name: name}
		c.Subject = name
	}
	if name, ok := t.ChangeWindow(trace.TransitionClose); ok {
		c.Closing = trace.Component{Name: name}
		if c.Subject == "" {
			c.Subject = name
		}
	}
	return c
}

// ErrUnresolvedComponent is returned by assertions whose component the
// transition does not provide.
var ErrUnresolvedComponent = errors.New("component not resolved for this transition")

// Predicate checks a trace. It returns nil when the assertion holds.
type Predicate func(tr *trace.Trace, c Components) error

// Assertion is a named predicate over one half of a trace.
type Assertion struct {
	Name      string
	Subject   subject.Kind
	Predicate Predicate
}

// RunAs binds the assertion to an invocation group.
func (a Assertion) RunAs(g Group) AssertionData {
	return AssertionData{Assertion: a, Group: g}
}

// AssertionData is an assertion selected for a scenario.
type AssertionData struct {
	Assertion
	Scenario tagging.ScenarioType
	Group    Group
}

// Outcome is the result of one assertion in a batch.
type Outcome string

const (
	Passed  Outcome = "PASSED"
	Failed  Outcome = "FAILED"
	Skipped Outcome = "SKIPPED"
)

// Result is one assertion's outcome.
type Result struct {
	Name     string               `json:"name"`
	Scenario tagging.ScenarioType `json:"scenario"`
	Group    Group                `json:"group"`
	Outcome  Outcome              `json:"outcome"`
	Message  string               `json:"message,omitempty"`
	Facts    []subject.Fact       `json:"facts,omitempty"`
}

// BatchResult is the outcome of a batch, in batch order.
type BatchResult struct {
	Results []Result `json:"results"`
	// BlockedBy names the blocking assertion that stopped the batch, if any.
	BlockedBy string `json:"blocked_by,omitempty"`
}

// Passed reports whether no assertion failed.
func (b BatchResult) Passed() bool {
	for _, r := range b.Results {
		if r.Outcome == Failed {
			return false
		}
	}
	return true
}

// Failures returns the failed results.
func (b BatchResult) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Outcome == Failed {
			out = append(out, r)
		}
	}
	return out
}

// Evaluate runs batch against tr in order.
func Evaluate(tr *trace.Trace, c Components, batch []AssertionData) BatchResult {
	var out BatchResult
	for _, a := range batch {
		r := Result{Name: a.Name, Scenario: a.Scenario, Group: a.Group}
		if out.BlockedBy != "" {
			r.Outcome = Skipped
			out.Results = append(out.Results, r)
			continue
		}

		err := run(a, tr, c)
		if err == nil {
			r.Outcome = Passed
			out.Results = append(out.Results, r)
			continue
		}

		r.Outcome = Failed
		var f *subject.Failure
		if errors.As(err, &f) {
			r.Message = f.Message
			r.Facts = f.Facts
		} else {
			r.Message = err.Error()
		}
		out.Results = append(out.Results, r)
		if a.Group == Blocking {
			out.BlockedBy = a.Name
		}
	}
	return out
}

// run isolates the batch from panicking predicates.
func run(a AssertionData, tr *trace.Trace, c Components) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("assertion %s panicked: %v", a.Name, r)
		}
	}()
	return a.Predicate(tr, c)
}
