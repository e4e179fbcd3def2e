package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/flicker/internal/trace"
)

// ErrInvalidSpec is returned by Execute for specs rejected before any phase runs.
var ErrInvalidSpec = errors.New("invalid run spec")

// ParsingFailurePrefix is prepended to monitor output files whose traces
// could not be processed.
const ParsingFailurePrefix = "PARSING_FAILURE__"

// Action is one step of a phase. h gives access to the running iteration.
type Action interface {
	Run(ctx context.Context, h *Handle) error
}

// ActionFunc adapts a function to Action.
type ActionFunc func(ctx context.Context, h *Handle) error

func (f ActionFunc) Run(ctx context.Context, h *Handle) error {
	return f(ctx, h)
}

// Monitor captures a trace between Start and Stop.
type Monitor interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// FileGenerating is implemented by monitors that write their trace to a file.
type FileGenerating interface {
	OutputFile() string
}

// NoTrace is implemented by monitors that produce no trace to process.
type NoTrace interface {
	ProducesNoTrace()
}

// StateSync blocks until the system under test is stable.
type StateSync interface {
	WaitForStable(ctx context.Context) error
}

// SnapshotSource captures the current window and layer state as raw dumps.
type SnapshotSource interface {
	Capture(ctx context.Context) (window, layer []byte, err error)
}

// TraceParser turns monitor artifacts into trace documents keyed by monitor
// name. Transitions recorded in a document are kept with its trace.
type TraceParser interface {
	Parse(ctx context.Context, artifacts []Artifact) (map[string]*trace.Document, error)
}

// Spec declares one test.
type Spec struct {
	TestName    string
	OutputDir   string
	Repetitions int

	TestSetup          []Action
	TransitionSetup    []Action
	Transitions        []Action
	TransitionTeardown []Action
	TestTeardown       []Action

	// Monitors are started and stopped in this order.
	Monitors []Monitor

	// Optional collaborators.
	StateSync      StateSync
	SnapshotSource SnapshotSource
	Parser         TraceParser
}

func (s Spec) validate() error {
	if s.Repetitions <= 0 {
		return fmt.Errorf("%w: number of repetitions must be greater than 0, got %d", ErrInvalidSpec, s.Repetitions)
	}
	if len(s.Transitions) == 0 && !s.onlyNoTraceMonitors() {
		return fmt.Errorf("%w: a test must include transitions to run", ErrInvalidSpec)
	}
	if s.TestName == "" {
		return fmt.Errorf("%w: test name is required", ErrInvalidSpec)
	}
	return nil
}

// onlyNoTraceMonitors reports whether there is at least one monitor and none
// of them produces a trace.
func (s Spec) onlyNoTraceMonitors() bool {
	if len(s.Monitors) == 0 {
		return false
	}
	for _, m := range s.Monitors {
		if _, ok := m.(NoTrace); !ok {
			return false
		}
	}
	return true
}

// Runner executes specs.
type Runner struct {
	logger *slog.Logger
	ids    RunIDGenerator
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunIDs sets the run id generator. The default generates UUIDv7s.
func WithRunIDs(ids RunIDGenerator) Option {
	return func(r *Runner) {
		r.ids = ids
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs spec and returns its summary. The error is non-nil only when
// the spec is invalid, in which case nothing was run. Failures during the
// run are reported in Summary.ExecutionErrors.
func (r *Runner) Execute(ctx context.Context, spec Spec) (*Summary, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	x := &execution{
		spec:      spec,
		iteration: -1,
		tags:      make(map[string]bool),
		summary:   &Summary{RunID: r.ids.Generate(), TestName: spec.TestName},
	}
	x.logger = r.logger.With("run_id", x.summary.RunID, "test", spec.TestName)
	x.handle = &Handle{x: x}

	x.logger.Info("run starting", "repetitions", spec.Repetitions, "monitors", len(spec.Monitors))
	x.safely(ctx, func() *PhaseError { return x.main(ctx) })

	for _, res := range x.summary.Results {
		res.lock()
	}
	x.summary.Tags = nonNil(slices.Sorted(maps.Keys(x.tags)))
	x.logger.Info("run finished", "results", len(x.summary.Results), "errors", len(x.summary.ExecutionErrors))
	return x.summary, nil
}

// execution is the state of one Execute call.
type execution struct {
	spec      Spec
	logger    *slog.Logger
	handle    *Handle
	iteration int
	current   *RunResult
	tags      map[string]bool
	summary   *Summary
}

func (x *execution) main(ctx context.Context) *PhaseError {
	if err := x.runPhase(ctx, PhaseTestSetup, StatusRunExecuted); err != nil {
		return err
	}
	for i := 0; i < x.spec.Repetitions; i++ {
		x.iteration = i
		x.current = newRunResult(x.spec.TestName, i)
		x.summary.Results = append(x.summary.Results, x.current)
		x.logger.Debug("running iteration", "iteration", i)

		for _, p := range []Phase{PhaseTransitionSetup, PhaseTransitionExecution, PhaseTransitionTeardown, PhaseTraceProcessing} {
			if err := x.runPhase(ctx, p, StatusRunExecuted); err != nil {
				return err
			}
		}
	}
	return x.runPhase(ctx, PhaseTestTeardown, StatusRunExecuted)
}

// safely runs body and applies the recovery table to its failure. Recovery
// phases go through safely as well.
func (x *execution) safely(ctx context.Context, body func() *PhaseError) {
	perr := body()
	if perr == nil {
		return
	}
	x.summary.ExecutionErrors = append(x.summary.ExecutionErrors, perr)
	x.logger.Error("phase failed", "phase", perr.Phase.String(), "iteration", perr.Iteration, "error", perr.Err)

	rec := RecoveryFor(perr.Phase)
	if rec.MarkRunFailed && x.current != nil {
		if err := x.current.setStatus(StatusRunFailed); err != nil {
			x.logger.Warn("unable to mark iteration failed", "error", err)
		}
	}
	if rec.StopMonitors {
		x.stopMonitors(ctx)
	}
	if len(rec.Then) == 0 {
		return
	}
	x.safely(ctx, func() *PhaseError {
		for _, p := range rec.Then {
			if err := x.runPhase(ctx, p, rec.ProcessAs); err != nil {
				return err
			}
		}
		return nil
	})
}

// runPhase runs one phase and wraps its error. status is only used by
// TraceProcessing.
func (x *execution) runPhase(ctx context.Context, p Phase, status RunStatus) *PhaseError {
	var err error
	switch p {
	case PhaseTestSetup:
		err = x.runActions(ctx, x.spec.TestSetup)
	case PhaseTransitionSetup:
		err = x.transitionSetup(ctx)
	case PhaseTransitionExecution:
		err = x.transitionExecution(ctx)
	case PhaseTransitionTeardown:
		err = x.transitionTeardown(ctx)
	case PhaseTraceProcessing:
		err = x.processTraces(ctx, status)
	case PhaseTestTeardown:
		err = x.runActions(ctx, x.spec.TestTeardown)
	default:
		err = fmt.Errorf("unknown phase %d", int(p))
	}
	if err == nil {
		return nil
	}
	iteration := x.iteration
	if p == PhaseTestSetup || p == PhaseTestTeardown {
		iteration = -1
	}
	return &PhaseError{Phase: p, Iteration: iteration, Err: err}
}

func (x *execution) runActions(ctx context.Context, actions []Action) error {
	for _, a := range actions {
		if err := a.Run(ctx, x.handle); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) transitionSetup(ctx context.Context) error {
	if err := x.runActions(ctx, x.spec.TransitionSetup); err != nil {
		return err
	}
	return x.waitForStable(ctx)
}

func (x *execution) transitionExecution(ctx context.Context) error {
	for _, m := range x.spec.Monitors {
		if err := m.Start(ctx); err != nil {
			return fmt.Errorf("start monitor %s: %w", m.Name(), err)
		}
	}
	return x.runActions(ctx, x.spec.Transitions)
}

func (x *execution) transitionTeardown(ctx context.Context) error {
	if err := x.waitForStable(ctx); err != nil {
		return err
	}
	x.stopMonitors(ctx)
	return x.runActions(ctx, x.spec.TransitionTeardown)
}

func (x *execution) waitForStable(ctx context.Context) error {
	if x.spec.StateSync == nil {
		return nil
	}
	if err := x.spec.StateSync.WaitForStable(ctx); err != nil {
		return fmt.Errorf("wait for stable state: %w", err)
	}
	return nil
}

// stopMonitors stops every monitor. A failing stop is logged and ignored so
// it cannot hide the failure that caused it.
func (x *execution) stopMonitors(ctx context.Context) {
	for _, m := range x.spec.Monitors {
		if err := m.Stop(ctx); err != nil {
			x.logger.Error("unable to stop monitor", "monitor", m.Name(), "error", err)
		}
	}
}

// processTraces records monitor output on the current result, parses it and
// locks the result. On failure the output files are renamed so they stand
// out in archives.
func (x *execution) processTraces(ctx context.Context, status RunStatus) error {
	res := x.current
	if res == nil {
		return errors.New("no iteration is running")
	}
	err := x.recordTraces(ctx, res, status)
	if err == nil {
		res.lock()
		return nil
	}

	renamed := x.markParsingFailure()
	res.renameArtifacts(renamed)
	if serr := res.setStatus(StatusParsingFailure); serr != nil {
		x.logger.Warn("unable to mark parsing failure", "error", serr)
	}
	res.lock()
	return err
}

func (x *execution) recordTraces(ctx context.Context, res *RunResult, status RunStatus) error {
	if err := res.setStatus(status); err != nil {
		return err
	}
	var artifacts []Artifact
	for _, m := range x.spec.Monitors {
		if _, ok := m.(NoTrace); ok {
			continue
		}
		fg, ok := m.(FileGenerating)
		if !ok {
			continue
		}
		path := fg.OutputFile()
		if _, err := os.Stat(path); err != nil {
			x.logger.Debug("monitor produced no output", "monitor", m.Name(), "path", path)
			continue
		}
		a := Artifact{Monitor: m.Name(), Path: path}
		if err := res.addArtifact(a); err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	}
	if x.spec.Parser == nil || status.IsFailure() {
		return nil
	}
	docs, err := x.spec.Parser.Parse(ctx, artifacts)
	if err != nil {
		return fmt.Errorf("parse traces: %w", err)
	}
	return res.setDocuments(docs)
}

// markParsingFailure renames every file-generating monitor's output and
// returns the old-to-new path mapping.
func (x *execution) markParsingFailure() map[string]string {
	renamed := make(map[string]string)
	for _, m := range x.spec.Monitors {
		fg, ok := m.(FileGenerating)
		if !ok {
			continue
		}
		path := fg.OutputFile()
		target := filepath.Join(filepath.Dir(path), ParsingFailurePrefix+filepath.Base(path))
		if err := os.Rename(path, target); err != nil {
			x.logger.Warn("unable to rename monitor output", "monitor", m.Name(), "error", err)
			continue
		}
		renamed[path] = target
	}
	return renamed
}
