// Package subject evaluates sequencing assertions over a trace.
//
// A TraceSubject collects an ordered list of steps. Each step is a
// conjunction of checks that must hold on a contiguous run of entries; Then
// starts the next step and Optional lets the current one be absent. A
// terminal evaluator (ForAllEntries, ForRange, First, Last) runs the steps
// once; a subject cannot be evaluated twice.
//
//	err := subject.Layers(tr).
//		IsInvisible(app).
//		Then().IsVisible(trace.StartingSnapshot).Optional().
//		Then().IsVisible(app).
//		ForAllEntries()
package subject

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/flicker/internal/trace"
)

// TraceSubject builds and runs a sequence of steps over one trace.
type TraceSubject struct {
	kind     Kind
	trace    *trace.Trace
	steps    []*pendingStep
	opts     MatchOptions
	buildErr error
	executed bool
}

type pendingStep struct {
	names    []string
	checks   []Check
	optional bool
}

// Windows returns a subject checking the window half of each entry.
func Windows(tr *trace.Trace) *TraceSubject {
	return &TraceSubject{kind: KindWindows, trace: tr}
}

// Layers returns a subject checking the layer half of each entry.
func Layers(tr *trace.Trace) *TraceSubject {
	return &TraceSubject{kind: KindLayers, trace: tr}
}

// New returns a subject of the given kind.
func New(kind Kind, tr *trace.Trace) *TraceSubject {
	return &TraceSubject{kind: kind, trace: tr}
}

// IsVisible adds "m is visible" to the current step.
func (s *TraceSubject) IsVisible(m trace.Matcher) *TraceSubject {
	return s.Invoke("isVisible("+m.String()+")", func(e *EntrySubject) error {
		return e.IsVisible(m)
	})
}

// IsInvisible adds "m is not visible" to the current step.
func (s *TraceSubject) IsInvisible(m trace.Matcher) *TraceSubject {
	return s.Invoke("isInvisible("+m.String()+")", func(e *EntrySubject) error {
		return e.IsInvisible(m)
	})
}

// IsAppWindowOnTop adds "m is the top app window" to the current step.
func (s *TraceSubject) IsAppWindowOnTop(m trace.Matcher) *TraceSubject {
	return s.Invoke("isAppWindowOnTop("+m.String()+")", func(e *EntrySubject) error {
		return e.IsAppWindowOnTop(m)
	})
}

// Invoke adds an arbitrary check to the current step.
func (s *TraceSubject) Invoke(name string, check Check) *TraceSubject {
	if len(s.steps) == 0 {
		s.steps = append(s.steps, &pendingStep{})
	}
	cur := s.steps[len(s.steps)-1]
	cur.names = append(cur.names, name)
	cur.checks = append(cur.checks, check)
	return s
}

// Then closes the current step; the next check starts a new one.
func (s *TraceSubject) Then() *TraceSubject {
	if len(s.steps) == 0 || len(s.steps[len(s.steps)-1].checks) == 0 {
		s.setBuildErr(errors.New("then() must follow at least one check"))
		return s
	}
	s.steps = append(s.steps, &pendingStep{})
	return s
}

// Optional marks the current step as optional.
func (s *TraceSubject) Optional() *TraceSubject {
	if len(s.steps) == 0 || len(s.steps[len(s.steps)-1].checks) == 0 {
		s.setBuildErr(errors.New("optional() must follow at least one check"))
		return s
	}
	s.steps[len(s.steps)-1].optional = true
	return s
}

// SkipUntilFirstAssertion ignores leading entries on which the first step fails.
func (s *TraceSubject) SkipUntilFirstAssertion() *TraceSubject {
	s.opts.SkipUntilFirstAssertion = true
	return s
}

// Steps returns the steps built so far.
func (s *TraceSubject) Steps() []Step {
	out := make([]Step, 0, len(s.steps))
	for _, p := range s.steps {
		if len(p.checks) == 0 {
			continue
		}
		checks := p.checks
		out = append(out, Step{
			Name:     strings.Join(p.names, " and "),
			Optional: p.optional,
			Check: func(e *EntrySubject) error {
				for _, c := range checks {
					if err := c(e); err != nil {
						return err
					}
				}
				return nil
			},
		})
	}
	return out
}

// ForAllEntries runs the steps over the whole trace.
func (s *TraceSubject) ForAllEntries() error {
	if err := s.begin(); err != nil {
		return err
	}
	return Match(s.kind, s.trace.Entries(), s.Steps(), s.opts)
}

// ForRange runs the steps over entries with timestamps in [from, to].
func (s *TraceSubject) ForRange(from, to int64) error {
	if err := s.begin(); err != nil {
		return err
	}
	sub, err := s.trace.Slice(from, to)
	if err != nil {
		return Fail("no entries in range",
			"From", fmt.Sprint(from), "To", fmt.Sprint(to),
			"Trace", fmt.Sprintf("%d..%d", s.trace.First().Timestamp, s.trace.Last().Timestamp))
	}
	return Match(s.kind, sub.Entries(), s.Steps(), s.opts)
}

// First checks every step against the first entry.
func (s *TraceSubject) First() error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.checkAll(s.trace.First())
}

// Last checks every step against the last entry.
func (s *TraceSubject) Last() error {
	if err := s.begin(); err != nil {
		return err
	}
	return s.checkAll(s.trace.Last())
}

func (s *TraceSubject) checkAll(entry trace.Snapshot) error {
	es := NewEntrySubject(s.kind, entry)
	for _, step := range s.Steps() {
		if err := step.Check(es); err != nil {
			return with(fmt.Sprintf("assertion %q failed", step.Name), err, "Entry", entry.String())
		}
	}
	return nil
}

// begin marks the subject executed and reports build problems.
func (s *TraceSubject) begin() error {
	if s.executed {
		return ErrAlreadyExecuted
	}
	s.executed = true
	if s.buildErr != nil {
		return s.buildErr
	}
	if len(s.Steps()) == 0 {
		return errors.New("no assertions to evaluate")
	}
	return nil
}

func (s *TraceSubject) setBuildErr(err error) {
	if s.buildErr == nil {
		s.buildErr = err
	}
}
