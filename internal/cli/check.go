package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flicker/internal/harness"
	"github.com/roach88/flicker/internal/store"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Suites   []string
	Database string
	Strict   bool
}

// CheckResult is the JSON payload of the check command.
type CheckResult struct {
	Trace    string          `json:"trace"`
	ReportID int64           `json:"report_id,omitempty"`
	Report   *harness.Report `json:"report"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check <trace>",
		Short: "Verify a recorded trace",
		Long: `Detect scenarios in a recorded trace document and verify them.

Transitions recorded in the document are checked against the built-in
assertion catalog. Each --suite adds user-defined assertions.

Exit codes:
  0 - All assertions passed
  1 - One or more assertions failed, or an anomaly was found with --strict
  2 - Command error (unreadable trace or suite, database error)

Examples:
  flicker check trace.yaml
  flicker check trace.yaml --suite suites/launch.yaml --format json
  flicker check trace.yaml --db results.db
  flicker check trace.yaml --strict`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Suites, "suite", nil, "assertion suite file (repeatable)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record the report in")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on open or orphaned tags")

	return cmd
}

func runCheck(opts *CheckOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	suites, err := loadSuites(opts.Suites)
	if err != nil {
		_ = formatter.Error(ErrCodeSuite, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load suites", err)
	}
	formatter.VerboseLog("Loaded %d suite(s)", len(suites))

	report, err := harness.CheckFile(cmd.Context(), path, harness.Options{Suites: suites, Logger: logger})
	if err != nil {
		_ = formatter.Error(ErrCodeTrace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to check trace", err)
	}

	result := CheckResult{Trace: path, Report: report}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		result.ReportID, err = st.WriteReport(cmd.Context(), store.ReportKey{Iteration: -1, Monitor: "file"}, report)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to record report", err)
		}
	}

	err = formatter.Emit(result, func(w io.Writer) {
		writeReport(w, path, report)
		if result.ReportID != 0 {
			fmt.Fprintf(w, "recorded report %d\n", result.ReportID)
		}
	})
	if err != nil {
		return err
	}
	if !report.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d assertion(s) failed", len(report.Failures())))
	}
	if opts.Strict && len(report.Anomalies) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("verification failed: %d anomaly(s)", len(report.Anomalies)))
	}
	return nil
}
