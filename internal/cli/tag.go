package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flicker/internal/harness"
	"github.com/roach88/flicker/internal/tagging"
	"github.com/roach88/flicker/internal/trace"
)

// TagResult is the JSON payload of the tag command.
type TagResult struct {
	Trace     string             `json:"trace"`
	Tags      []tagging.Tag      `json:"tags"`
	Intervals []tagging.Interval `json:"intervals"`
	Anomalies []string           `json:"anomalies"`
}

// NewTagCommand creates the tag command.
func NewTagCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tag <trace>",
		Short: "Detect scenarios in a trace",
		Long: `Run the scenario detectors over a recorded trace document and print
the tags they emit. Scenarios that start but never finish are reported
as anomalies. No assertions are evaluated.

Examples:
  flicker tag trace.yaml
  flicker tag trace.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTag(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runTag(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	doc, err := trace.DecodeFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodeTrace, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	formatter.VerboseLog("Decoded %d entries from %s", doc.Trace.Len(), path)

	// Recorded transitions are left out so only detection runs.
	report, err := harness.Check(cmd.Context(), doc.Trace, harness.Options{Logger: opts.logger(cmd.ErrOrStderr())})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to tag trace", err)
	}

	intervals := make([]tagging.Interval, len(report.Intervals))
	for i, iv := range report.Intervals {
		intervals[i] = iv.Interval
	}
	result := TagResult{Trace: path, Tags: report.Tags, Intervals: intervals, Anomalies: report.Anomalies}

	return formatter.Emit(result, func(w io.Writer) {
		for _, t := range result.Tags {
			fmt.Fprintln(w, t)
		}
		for _, iv := range result.Intervals {
			fmt.Fprintf(w, "interval %s#%d [%d, %d]\n", iv.Scenario, iv.ID, iv.Start, iv.End)
		}
		for _, a := range result.Anomalies {
			fmt.Fprintf(w, "anomaly: %s\n", a)
		}
	})
}
