// Package runner executes one transition test under a staged protocol.
//
// A run is a fixed sequence of phases:
//
//	TestSetup
//	repeat N times:
//	    TransitionSetup → TransitionExecution → TransitionTeardown → TraceProcessing
//	TestTeardown
//
// Each phase boundary is a failure domain. When a phase fails, its error is
// wrapped in a *PhaseError and RecoveryFor decides what still runs: which
// later phases are attempted, whether monitors are stopped, and whether the
// current iteration is marked RUN_FAILED. Recovery phases are executed under
// the same policy, so a failure during recovery is recorded too. No error is
// ever dropped: the Summary carries every one, in the order encountered,
// alongside whatever results were produced.
//
// Iterations run strictly in sequence. Capture from the target system is
// stateful and exclusive, so nothing in this package runs concurrently.
package runner
