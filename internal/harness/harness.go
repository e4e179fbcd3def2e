package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// Options configures Check.
type Options struct {
	// Transitions recorded alongside the trace. Each one is checked against
	// the built-in catalog over its own time window.
	Transitions []trace.Transition

	// Suites contribute user-defined assertions.
	Suites []*Suite

	// Machines detect scenario intervals. Defaults to tagging.Machines().
	Machines []tagging.Machine

	// IDs supplies tag ids. Defaults to a fresh sequence.
	IDs tagging.IDSource

	Logger *slog.Logger
}

// Check detects scenarios in tr, then evaluates the catalog per transition
// and the suites per interval and over the whole trace.
//
// The returned error is reserved for problems that prevent checking, such
// as a suite that does not compile or a canceled context. Assertion
// failures and anomalies are part of the report.
func Check(ctx context.Context, tr *trace.Trace, opts Options) (*Report, error) {
	if tr == nil {
		return nil, errors.New("check: trace is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	machines := opts.Machines
	if machines == nil {
		machines = tagging.Machines()
	}
	ids := opts.IDs
	if ids == nil {
		ids = tagging.NewSequence()
	}

	var suiteAssertions []assertor.AssertionData
	for _, s := range opts.Suites {
		compiled, err := s.Compile()
		if err != nil {
			return nil, fmt.Errorf("check: %w", err)
		}
		suiteAssertions = append(suiteAssertions, compiled...)
	}

	// Scans run concurrently on a scratch sequence; ids are then drawn from
	// ids in scenario order so the report does not depend on scheduling.
	session := tagging.NewSession(tagging.NewSequence(), tagging.WithLogger(logger))
	scans, err := session.ScanAll(ctx, tr, machines)
	if err != nil {
		return nil, fmt.Errorf("check: %w", err)
	}
	renumber(scans, ids)

	report := newReport()
	for _, scan := range scans {
		report.Tags = append(report.Tags, scan.Tags...)
		if a := scan.Anomaly(); a != nil {
			logger.Warn("anomaly", "error", a)
			report.addAnomaly(a.Error())
		}
		intervals, unmatched := tagging.Pairs(scan.Tags)
		for _, tag := range unmatched {
			if !tag.IsStart {
				report.addAnomaly(fmt.Sprintf("end tag without start: %s", tag))
			}
		}
		for _, iv := range intervals {
			report.addInterval(checkInterval(tr, iv, suiteAssertions, logger))
		}
	}

	for _, t := range opts.Transitions {
		report.addTransition(checkTransition(tr, t, logger))
	}

	whole := scoped(suiteAssertions, "")
	if len(whole) > 0 {
		var c assertor.Components
		if len(opts.Transitions) > 0 {
			c = assertor.ComponentsFor(opts.Transitions[0])
		}
		res := assertor.Evaluate(tr, c, whole)
		report.setTrace(res)
	}

	logger.Info("check finished",
		"pass", report.Pass,
		"intervals", len(report.Intervals),
		"transitions", len(report.Transitions),
		"anomalies", len(report.Anomalies))
	return report, nil
}

func checkInterval(tr *trace.Trace, iv tagging.Interval, suite []assertor.AssertionData, logger *slog.Logger) IntervalReport {
	out := IntervalReport{Interval: iv}
	batch := scoped(suite, iv.Scenario)
	if len(batch) == 0 {
		return out
	}
	sub, err := tr.Slice(iv.Start, iv.End)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	c := componentsForInterval(iv)
	logger.Debug("checking interval", "scenario", iv.Scenario, "start", iv.Start, "end", iv.End, "assertions", len(batch))
	out.Results = assertor.Evaluate(sub, c, batch)
	return out
}

func checkTransition(tr *trace.Trace, t trace.Transition, logger *slog.Logger) TransitionReport {
	out := TransitionReport{ID: t.ID, Type: t.Type, Start: t.Start, End: t.End}
	sub, err := tr.Slice(t.Start, t.End)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	batch := assertor.ForTransition(t)
	logger.Debug("checking transition", "id", t.ID, "type", t.Type, "assertions", len(batch))
	out.Results = assertor.Evaluate(sub, assertor.ComponentsFor(t), batch)
	return out
}

// componentsForInterval binds the interval's window to the participant its
// scenario is about.
func componentsForInterval(iv tagging.Interval) assertor.Components {
	c := assertor.Components{Subject: iv.WindowToken}
	if iv.WindowToken == "" {
		return c
	}
	m := trace.Token(iv.WindowToken)
	switch iv.Scenario {
	case tagging.ScenarioAppClose:
		c.Closing = m
	default:
		c.Opening = m
	}
	return c
}

func renumber(scans []tagging.ScanResult, ids tagging.IDSource) {
	mapped := make(map[int64]int64)
	for _, scan := range scans {
		for i, tag := range scan.Tags {
			id, ok := mapped[tag.ID]
			if !ok {
				id = ids.Next()
				mapped[tag.ID] = id
			}
			scan.Tags[i].ID = id
		}
	}
}

func scoped(all []assertor.AssertionData, scenario tagging.ScenarioType) []assertor.AssertionData {
	var out []assertor.AssertionData
	for _, a := range all {
		if a.Scenario == scenario {
			out = append(out, a)
		}
	}
	return out
}

// CheckFile decodes the trace document at path and checks it. Transitions
// recorded in the document are used unless opts already lists some.
func CheckFile(ctx context.Context, path string, opts Options) (*Report, error) {
	doc, err := trace.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	if opts.Transitions == nil {
		opts.Transitions = doc.Transitions
	}
	return Check(ctx, doc.Trace, opts)
}
