package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/flicker/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	TestName string   `json:"test_name,omitempty"`
	Suites   int      `json:"suites"`
	Errors   []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a run config without executing it",
		Long: `Validate a run config against its schema and compile every assertion
suite it references. Nothing is executed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := config.Load(path)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			return outputValidationErrors(formatter, verr.Problems)
		}
		_ = formatter.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	formatter.VerboseLog("Loaded config %s (test %s)", path, cfg.TestName)

	paths := cfg.SuitePaths()
	if _, err := loadSuites(paths); err != nil {
		return outputValidationErrors(formatter, []string{err.Error()})
	}

	result := ValidationResult{Valid: true, TestName: cfg.TestName, Suites: len(paths)}
	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid (test %s, %d suite(s))\n", path, cfg.TestName, len(paths))
	})
}

func outputValidationErrors(formatter *OutputFormatter, problems []string) error {
	if formatter.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: false, Errors: problems}); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "✗ %d problem(s) found\n", len(problems))
		for _, p := range problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return NewExitError(ExitFailure, "validation failed")
}
