package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/store"
)

// ResultsOptions holds flags for the results command.
type ResultsOptions struct {
	*RootOptions
	Database string
}

// NewResultsCommand creates the results command.
func NewResultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "results [run-id]",
		Short: "Show recorded runs",
		Long: `List the runs recorded in a results database, oldest first, or show one
run with its iterations, phase errors and check reports.

Examples:
  flicker results --db ./results.db
  flicker results --db ./results.db 0192f0c4-7d1e-7000-8000-000000000000 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResults(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runResults(opts *ResultsOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if len(args) == 0 {
		runs, err := st.ListRuns(cmd.Context())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return formatter.Emit(runs, func(w io.Writer) {
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return
			}
			for _, r := range runs {
				fmt.Fprintf(w, "%d %s %s %s: %d iteration(s), %d error(s)\n",
					r.Seq, verdict(!r.Failed), r.ID, r.TestName, r.Iterations, r.ErrorCount)
			}
		})
	}

	run, err := st.LoadRun(cmd.Context(), args[0])
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	return formatter.Emit(run, func(w io.Writer) { writeRunDetail(w, run) })
}

func writeRunDetail(w io.Writer, run *store.RunDetail) {
	fmt.Fprintf(w, "%s run %s (%s)\n", verdict(!run.Failed), run.ID, run.TestName)
	fmt.Fprintf(w, "  fingerprint: %s\n", run.Fingerprint)
	if len(run.Tags) > 0 {
		fmt.Fprintf(w, "  tags: %v\n", run.Tags)
	}
	for _, r := range run.Results {
		fmt.Fprintf(w, "  iteration %d: %s (%d artifact(s), %d tagged state(s))\n",
			r.Iteration, r.Status, len(r.Artifacts), len(r.TaggedStates))
	}
	for _, e := range run.Errors {
		fmt.Fprintf(w, "  error %s at iteration %d: %s\n", e.Phase, e.Iteration, e.Message)
	}
	for _, rep := range run.Reports {
		failed := 0
		for _, o := range rep.Outcomes {
			if o.Outcome == string(assertor.Failed) {
				failed++
			}
		}
		fmt.Fprintf(w, "  report %d iteration %d %s: %s, %d outcome(s), %d failed\n",
			rep.ID, rep.Iteration, rep.Monitor, verdict(rep.Pass), len(rep.Outcomes), failed)
	}
}
