package harness

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/subject"
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// Env is the environment suite expressions are evaluated in, one entry at
// a time. Component names match by substring of the window or layer name,
// or exactly by window token.
//
//	!visible(app) && windowVisible("NavigationBar0")
//	onTop(app) && area("StatusBar") > 0
type Env struct {
	Timestamp int64  `expr:"timestamp"`
	Rotation  int    `expr:"rotation"`
	Animating bool   `expr:"animating"`
	App       string `expr:"app"`

	// Visible checks the assertion's own subject (windows or layers).
	Visible       func(name string) bool  `expr:"visible"`
	WindowVisible func(name string) bool  `expr:"windowVisible"`
	LayerVisible  func(name string) bool  `expr:"layerVisible"`
	OnTop         func(name string) bool  `expr:"onTop"`
	Pinned        func(name string) bool  `expr:"pinned"`
	Area          func(name string) int64 `expr:"area"`
}

// matcher resolves a component name used in an expression.
func matcher(name string) trace.Matcher {
	return trace.AnyOf(trace.Component{Name: name}, trace.Token(name))
}

// newEnv binds the environment to one entry.
func newEnv(e *subject.EntrySubject, app string) Env {
	s := e.Entry()
	windowVisible := func(name string) bool { return s.Window.IsVisible(matcher(name)) }
	layerVisible := func(name string) bool { return s.Layer.IsVisible(matcher(name)) }
	visible, area := layerVisible, func(name string) int64 { return s.Layer.VisibleRegion(matcher(name)).Area() }
	if e.Kind() == subject.KindWindows {
		visible, area = windowVisible, func(name string) int64 { return s.Window.VisibleRegion(matcher(name)).Area() }
	}
	return Env{
		Timestamp:     e.Timestamp(),
		Rotation:      s.Window.Rotation,
		Animating:     s.Layer.IsAnimating(),
		App:           app,
		Visible:       visible,
		WindowVisible: windowVisible,
		LayerVisible:  layerVisible,
		OnTop:         func(name string) bool { return e.IsAppWindowOnTop(matcher(name)) == nil },
		Pinned:        func(name string) bool { return e.IsPinned(matcher(name)) == nil },
		Area:          area,
	}
}

type compiledStep struct {
	src      string
	program  *vm.Program
	optional bool
}

// compileAssertion type-checks every step expression and returns the
// assertion bound to its scenario and group.
func compileAssertion(a SuiteAssertion) (assertor.AssertionData, error) {
	steps := make([]compiledStep, len(a.Steps))
	for i, def := range a.Steps {
		program, err := expr.Compile(def.Expr, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			return assertor.AssertionData{}, fmt.Errorf("assertion %s: steps[%d]: %w", a.Name, i, err)
		}
		steps[i] = compiledStep{src: def.Expr, program: program, optional: def.Optional}
	}

	kind := a.kind()
	at := a.At
	skip := a.SkipUntilFirst
	predicate := func(tr *trace.Trace, c assertor.Components) error {
		s := subject.New(kind, tr)
		for i, step := range steps {
			if i > 0 && at != AtStart && at != AtEnd {
				s.Then()
			}
			s.Invoke(step.src, step.check(c.Subject))
			if step.optional {
				s.Optional()
			}
		}
		if skip {
			s.SkipUntilFirstAssertion()
		}
		switch at {
		case AtStart:
			return s.First()
		case AtEnd:
			return s.Last()
		}
		return s.ForAllEntries()
	}

	data := assertor.Assertion{Name: a.Name, Subject: kind, Predicate: predicate}.RunAs(a.group())
	data.Scenario = tagging.ScenarioType(a.Scenario)
	return data, nil
}

func (cs compiledStep) check(app string) subject.Check {
	return func(e *subject.EntrySubject) error {
		out, err := expr.Run(cs.program, newEnv(e, app))
		if err != nil {
			return e.Fail("expression evaluation failed", "Expression", cs.src, "Error", err.Error())
		}
		if ok, _ := out.(bool); !ok {
			return e.Fail("expression is false", "Expression", cs.src)
		}
		return nil
	}
}

// Compile compiles every assertion of the suite and resolves its catalog
// references.
func (s *Suite) Compile() ([]assertor.AssertionData, error) {
	var out []assertor.AssertionData
	for _, name := range s.Catalog {
		a, ok := assertor.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("suite %s: unknown catalog assertion %q", s.Name, name)
		}
		a.Scenario = ""
		out = append(out, a)
	}
	for _, a := range s.Assertions {
		data, err := compileAssertion(a)
		if err != nil {
			return nil, fmt.Errorf("suite %s: %w", s.Name, err)
		}
		out = append(out, data)
	}
	return out, nil
}
