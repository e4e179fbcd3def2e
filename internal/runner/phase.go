package runner

import (
	"errors"
	"fmt"
)

// Phase identifies a stage of a run.
type Phase int

const (
	PhaseTestSetup Phase = iota
	PhaseTransitionSetup
	PhaseTransitionExecution
	PhaseTransitionTeardown
	PhaseTraceProcessing
	PhaseTestTeardown
)

var phaseNames = [...]string{
	PhaseTestSetup:           "TestSetup",
	PhaseTransitionSetup:     "TransitionSetup",
	PhaseTransitionExecution: "TransitionExecution",
	PhaseTransitionTeardown:  "TransitionTeardown",
	PhaseTraceProcessing:     "TraceProcessing",
	PhaseTestTeardown:        "TestTeardown",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Failure is the name of the failure kind raised at this phase,
// e.g. "TransitionExecutionFailure".
func (p Phase) Failure() string {
	return p.String() + "Failure"
}

// PhaseError is an error raised inside a phase. Iteration is -1 for phases
// outside the repetition loop.
type PhaseError struct {
	Phase     Phase
	Iteration int
	Err       error
}

func (e *PhaseError) Error() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("%s: %v", e.Phase.Failure(), e.Err)
	}
	return fmt.Sprintf("%s (iteration %d): %v", e.Phase.Failure(), e.Iteration, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// IsPhase reports whether err wraps a *PhaseError raised at p.
func IsPhase(err error, p Phase) bool {
	var pe *PhaseError
	return errors.As(err, &pe) && pe.Phase == p
}

// Recovery is what the runner does after a phase fails. The repetition loop
// is always abandoned.
type Recovery struct {
	// MarkRunFailed downgrades the current iteration's result to RUN_FAILED.
	MarkRunFailed bool
	// StopMonitors stops every monitor, swallowing stop errors.
	StopMonitors bool
	// Then lists the phases still attempted, in order.
	Then []Phase
	// ProcessAs is the status TraceProcessing records when it is in Then.
	ProcessAs RunStatus
}

// RecoveryFor returns the recovery for a failure at p.
func RecoveryFor(p Phase) Recovery {
	switch p {
	case PhaseTestSetup:
		return Recovery{}
	case PhaseTransitionSetup:
		return Recovery{MarkRunFailed: true, Then: []Phase{PhaseTestTeardown}}
	case PhaseTransitionExecution, PhaseTransitionTeardown:
		return Recovery{
			StopMonitors: true,
			Then:         []Phase{PhaseTraceProcessing, PhaseTestTeardown},
			ProcessAs:    StatusRunFailed,
		}
	case PhaseTraceProcessing:
		return Recovery{Then: []Phase{PhaseTransitionTeardown, PhaseTestTeardown}}
	case PhaseTestTeardown:
		return Recovery{MarkRunFailed: true}
	}
	return Recovery{}
}
