package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/flicker/internal/config"
	"github.com/roach88/flicker/internal/harness"
	"github.com/roach88/flicker/internal/runner"
	"github.com/roach88/flicker/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Strict   bool

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs runner.RunIDGenerator
}

// MonitorReport is the check of one monitor trace of one iteration.
type MonitorReport struct {
	Iteration int             `json:"iteration"`
	Monitor   string          `json:"monitor"`
	ReportID  int64           `json:"report_id,omitempty"`
	Report    *harness.Report `json:"report"`
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Summary *runner.Summary `json:"summary"`
	Errors  []string        `json:"errors"`
	Reports []MonitorReport `json:"reports"`
	Failed  bool            `json:"failed"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Execute a configured transition test",
		Long: `Execute the phases a run config declares, once per repetition, then
check every recorded trace against the suites the config references.

With --db the run summary and every report are recorded in a SQLite
database (created if it doesn't exist).

Exit codes:
  0 - Run executed and all assertions passed
  1 - A phase failed, an assertion failed, or an anomaly was found with --strict
  2 - Command error (invalid config, unreadable suite, database error)

Example:
  flicker run flicker.yaml
  flicker run --db ./results.db flicker.yaml --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigured(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to record results in")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on open or orphaned tags")

	return cmd
}

func runConfigured(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	suites, err := loadSuites(cfg.SuitePaths())
	if err != nil {
		_ = formatter.Error(ErrCodeSuite, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load suites", err)
	}

	var st *store.Store
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	// Interrupts cancel the commands in flight.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runnerOpts := []runner.Option{runner.WithLogger(logger)}
	if opts.RunIDs != nil {
		runnerOpts = append(runnerOpts, runner.WithRunIDs(opts.RunIDs))
	}
	summary, err := runner.New(runnerOpts...).Execute(ctx, cfg.Spec(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid run", err)
	}

	if st != nil {
		if err := st.WriteSummary(ctx, summary); err != nil {
			return WrapExitError(ExitCommandError, "failed to record run", err)
		}
	}

	out := RunOutput{Summary: summary, Errors: []string{}, Failed: summary.Failed()}
	for _, e := range summary.ExecutionErrors {
		out.Errors = append(out.Errors, e.Error())
	}
	out.Reports, err = checkResults(ctx, st, summary, suites, logger)
	if err != nil {
		return err
	}
	for _, r := range out.Reports {
		if !r.Report.Pass || (opts.Strict && len(r.Report.Anomalies) > 0) {
			out.Failed = true
		}
	}

	err = formatter.Emit(out, func(w io.Writer) { writeRun(w, out) })
	if err != nil {
		return err
	}
	if out.Failed {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s failed", summary.RunID))
	}
	return nil
}

// checkResults checks every parsed trace of every iteration, in iteration
// then monitor order. Transitions recorded with a trace are checked against
// the catalog.
func checkResults(ctx context.Context, st *store.Store, summary *runner.Summary, suites []*harness.Suite, logger *slog.Logger) ([]MonitorReport, error) {
	reports := []MonitorReport{}
	for _, res := range summary.Results {
		for _, a := range res.Artifacts() {
			tr, ok := res.Trace(a.Monitor)
			if !ok {
				continue
			}
			report, err := harness.Check(ctx, tr, harness.Options{
				Transitions: res.Transitions(a.Monitor),
				Suites:      suites,
				Logger:      logger.With("iteration", res.Iteration(), "monitor", a.Monitor),
			})
			if err != nil {
				return nil, WrapExitError(ExitCommandError, "failed to check trace", err)
			}
			mr := MonitorReport{Iteration: res.Iteration(), Monitor: a.Monitor, Report: report}
			if st != nil {
				key := store.ReportKey{RunID: summary.RunID, Iteration: res.Iteration(), Monitor: a.Monitor}
				if mr.ReportID, err = st.WriteReport(ctx, key, report); err != nil {
					return nil, WrapExitError(ExitCommandError, "failed to record report", err)
				}
			}
			reports = append(reports, mr)
		}
	}
	return reports, nil
}

func writeRun(w io.Writer, out RunOutput) {
	s := out.Summary
	fmt.Fprintf(w, "%s run %s (%s): %d iteration(s)\n", verdict(!out.Failed), s.RunID, s.TestName, len(s.Results))
	for _, res := range s.Results {
		fmt.Fprintf(w, "  iteration %d: %s\n", res.Iteration(), res.Status())
	}
	for _, e := range out.Errors {
		fmt.Fprintf(w, "  error: %s\n", e)
	}
	for _, r := range out.Reports {
		writeReport(w, fmt.Sprintf("iteration %d %s", r.Iteration, r.Monitor), r.Report)
	}
}
