package store

import (
	"errors"

	"github.com/roach88/flicker/internal/runner"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// RunRecord is one stored run as listed.
type RunRecord struct {
	ID          string `json:"id"`
	Seq         int64  `json:"seq"`
	TestName    string `json:"test_name"`
	Fingerprint string `json:"fingerprint"`
	Iterations  int    `json:"iterations"`
	ErrorCount  int    `json:"error_count"`
	// Failed is true if any iteration failed or any phase error was recorded.
	Failed bool `json:"failed"`
}

// ResultRecord is one stored iteration.
type ResultRecord struct {
	Iteration    int                  `json:"iteration"`
	Status       runner.RunStatus     `json:"status"`
	Artifacts    []runner.Artifact    `json:"artifacts"`
	TaggedStates []runner.TaggedState `json:"tagged_states"`
}

// ErrorRecord is one stored phase failure.
type ErrorRecord struct {
	Phase     string `json:"phase"`
	Iteration int    `json:"iteration"`
	Message   string `json:"message"`
}

// OutcomeRecord is one stored assertion outcome of a report.
type OutcomeRecord struct {
	Scope    string `json:"scope"`
	Name     string `json:"name"`
	Scenario string `json:"scenario"`
	Group    string `json:"group"`
	Outcome  string `json:"outcome"`
	Message  string `json:"message,omitempty"`
}

// ReportRecord is one stored check report.
type ReportRecord struct {
	ID          int64           `json:"id"`
	RunID       string          `json:"run_id,omitempty"`
	Iteration   int             `json:"iteration"`
	Monitor     string          `json:"monitor"`
	Pass        bool            `json:"pass"`
	Fingerprint string          `json:"fingerprint"`
	Outcomes    []OutcomeRecord `json:"outcomes"`
}

// RunDetail is a run with everything recorded for it.
type RunDetail struct {
	RunRecord
	Tags    []string       `json:"tags"`
	Results []ResultRecord `json:"results"`
	Errors  []ErrorRecord  `json:"errors"`
	Reports []ReportRecord `json:"reports"`
}
