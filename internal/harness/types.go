package harness

import (
	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// IntervalReport is the outcome of the suite assertions scoped to one
// detected scenario interval.
type IntervalReport struct {
	Interval tagging.Interval     `json:"interval"`
	Results  assertor.BatchResult `json:"results"`
	// Error is set when the interval could not be evaluated.
	Error string `json:"error,omitempty"`
}

// TransitionReport is the outcome of the catalog for one recorded transition.
type TransitionReport struct {
	ID      int                  `json:"id"`
	Type    trace.TransitionType `json:"type"`
	Start   int64                `json:"start"`
	End     int64                `json:"end"`
	Results assertor.BatchResult `json:"results"`
	Error   string               `json:"error,omitempty"`
}

// Report is the outcome of Check.
type Report struct {
	// Pass is true if no assertion failed and every interval and transition
	// could be evaluated. Anomalies do not fail a report; the CLI fails on
	// them only with --strict.
	Pass bool `json:"pass"`

	// Tags contains every tag of every scan, grouped by scenario.
	Tags []tagging.Tag `json:"tags"`

	Intervals   []IntervalReport   `json:"intervals"`
	Transitions []TransitionReport `json:"transitions"`

	// Trace holds the suite assertions evaluated over the whole trace.
	Trace *assertor.BatchResult `json:"trace,omitempty"`

	// Anomalies lists open or orphaned tags.
	Anomalies []string `json:"anomalies"`
}

func newReport() *Report {
	return &Report{
		Pass:        true,
		Tags:        []tagging.Tag{},
		Intervals:   []IntervalReport{},
		Transitions: []TransitionReport{},
		Anomalies:   []string{},
	}
}

func (r *Report) addAnomaly(msg string) {
	r.Anomalies = append(r.Anomalies, msg)
}

func (r *Report) addInterval(ir IntervalReport) {
	if ir.Error != "" || !ir.Results.Passed() {
		r.Pass = false
	}
	r.Intervals = append(r.Intervals, ir)
}

func (r *Report) addTransition(tr TransitionReport) {
	if tr.Error != "" || !tr.Results.Passed() {
		r.Pass = false
	}
	r.Transitions = append(r.Transitions, tr)
}

func (r *Report) setTrace(res assertor.BatchResult) {
	if !res.Passed() {
		r.Pass = false
	}
	r.Trace = &res
}

// Failures returns every failed assertion result in report order.
func (r *Report) Failures() []assertor.Result {
	var out []assertor.Result
	for _, iv := range r.Intervals {
		out = append(out, iv.Results.Failures()...)
	}
	for _, t := range r.Transitions {
		out = append(out, t.Results.Failures()...)
	}
	if r.Trace != nil {
		out = append(out, r.Trace.Failures()...)
	}
	return out
}
