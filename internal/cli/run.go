package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	suiteFlags

	// Update rewrites golden files instead of comparing against them.
	Update bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenarios-dir>",
		Short: "Run scenario programs",
		Long: `Run every scenario in a directory as one suite.

Each scenario executes on a fresh runtime with a deterministic clock. Its
expectations and assertions are checked, and its trace is compared with
<scenarios-dir>/golden/<name>.golden when that file exists.

Example:
  tryblock run ./scenarios
  tryblock run ./scenarios --filter 'rethrow*' --db ./runs.db
  tryblock run ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name matches this glob")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop after the first failing scenario")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "checkpoint limit for scenarios without max_depth")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runScenarios(opts *RunOptions, dir string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return out.Fail(ExitCommandError, ErrCodeNotFound,
			fmt.Sprintf("scenario directory not found: %s", dir), nil)
	}

	scenarios, err := harness.LoadScenarios(dir)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalid, "failed to load scenarios", err)
	}
	if len(scenarios) == 0 {
		if opts.Format == "json" {
			return out.Success(&harness.Report{Suite: filepath.Base(dir), Results: []harness.TestResult{}})
		}
		fmt.Fprintln(out.Writer, "No scenarios found.")
		return nil
	}
	out.VerboseLog("loaded %d scenarios from %s", len(scenarios), dir)

	cfg := opts.runConfig(opts.RootOptions, out.GetErrWriter())
	suite := harness.ScenarioSuite(filepath.Base(dir), scenarios,
		harness.WithGoldenDir(filepath.Join(dir, "golden"), opts.Update),
		harness.WithExecMaxDepth(opts.MaxDepth),
		harness.WithExecLogger(cfg.Logger),
	)
	report := harness.Run(suite, cfg)

	return finishRun(cmd.Context(), out, &opts.suiteFlags, report)
}
