package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tryblock/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// FileValidation is the validation result of one scenario file.
type FileValidation struct {
	File   string   `json:"file"`
	Name   string   `json:"name,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>",
		Short: "Check scenario files without running them",
		Long: `Check scenario documents against the scenario schema and check that every
called function is defined. All files are checked; nothing is executed.

Example:
  tryblock validate ./scenarios
  tryblock validate ./scenarios/rethrow.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, target string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	info, err := os.Stat(target)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("path not found: %s", target), nil)
	}

	files := []string{target}
	if info.IsDir() {
		files, err = harness.ScenarioFiles(target)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeGeneric, "failed to list scenarios", err)
		}
	}

	results := make([]FileValidation, 0, len(files))
	invalid := 0
	for _, file := range files {
		res := validateFile(file)
		if !res.Valid {
			invalid++
		}
		results = append(results, res)
	}

	if opts.Format == "json" {
		status := "ok"
		if invalid > 0 {
			status = "failed"
		}
		if err := out.JSON(CLIResponse{Status: status, Data: results}); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Valid {
				fmt.Fprintf(out.Writer, "✓ %s\n", res.File)
				continue
			}
			fmt.Fprintf(out.Writer, "✗ %s\n", res.File)
			for _, msg := range res.Errors {
				fmt.Fprintf(out.Writer, "  %s\n", msg)
			}
		}
		fmt.Fprintf(out.Writer, "%d files, %d invalid\n", len(results), invalid)
	}

	if invalid > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario files are invalid", invalid, len(results)))
	}
	return nil
}

func validateFile(file string) FileValidation {
	sc, err := harness.LoadScenario(file)
	if err == nil {
		return FileValidation{File: file, Name: sc.Name, Valid: true}
	}

	res := FileValidation{File: file}
	var schemaErrs harness.SchemaErrors
	if errors.As(err, &schemaErrs) {
		for _, e := range schemaErrs {
			res.Errors = append(res.Errors, e.Error())
		}
		return res
	}
	res.Errors = []string{err.Error()}
	return res
}
