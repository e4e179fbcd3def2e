package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/flicker/internal/canon"
)

// AssertGolden compares the report against testdata/golden/{name}.golden
// using canonical JSON, so the comparison is independent of map order.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, report *Report) error {
	t.Helper()

	data, err := canon.Indent(report)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// CheckWithGolden loads a trace document, checks it and compares the
// report against a golden file.
func CheckWithGolden(t *testing.T, name, tracePath string, suites ...*Suite) (*Report, error) {
	t.Helper()

	report, err := CheckFile(t.Context(), tracePath, Options{Suites: suites})
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, name, report); err != nil {
		return nil, err
	}
	return report, nil
}
