package cli

import (
	"fmt"
	"io"

	"github.com/roach88/flicker/internal/harness"
)

func loadSuites(paths []string) ([]*harness.Suite, error) {
	suites := make([]*harness.Suite, 0, len(paths))
	for _, p := range paths {
		s, err := harness.LoadSuite(p)
		if err != nil {
			return nil, err
		}
		if _, err := s.Compile(); err != nil {
			return nil, err
		}
		suites = append(suites, s)
	}
	return suites, nil
}

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}

// writeReport prints a report summary followed by every failure and anomaly.
func writeReport(w io.Writer, label string, r *harness.Report) {
	fmt.Fprintf(w, "%s %s: %d tags, %d intervals, %d transitions\n",
		verdict(r.Pass), label, len(r.Tags), len(r.Intervals), len(r.Transitions))
	for _, iv := range r.Intervals {
		if iv.Error != "" {
			fmt.Fprintf(w, "  error %s#%d: %s\n", iv.Interval.Scenario, iv.Interval.ID, iv.Error)
		}
	}
	for _, t := range r.Transitions {
		if t.Error != "" {
			fmt.Fprintf(w, "  error transition %d: %s\n", t.ID, t.Error)
		}
	}
	for _, f := range r.Failures() {
		if f.Scenario != "" {
			fmt.Fprintf(w, "  FAILED %s [%s]: %s\n", f.Name, f.Scenario, f.Message)
		} else {
			fmt.Fprintf(w, "  FAILED %s: %s\n", f.Name, f.Message)
		}
	}
	for _, a := range r.Anomalies {
		fmt.Fprintf(w, "  anomaly: %s\n", a)
	}
}
