package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
	"github.com/roach88/tryblock/internal/selftest"
)

// SelftestOptions holds flags for the selftest command.
type SelftestOptions struct {
	*RootOptions
	suiteFlags
}

// NewSelftestCommand creates the selftest command.
func NewSelftestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SelftestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "selftest",
		Short: "Run the engine's conformance suite",
		Long: `Run the built-in suite that exercises the engine through the harness:
catching by kind, bubbling, rethrow, deferred returns and cleanup order.

Example:
  tryblock selftest
  tryblock selftest --format json --db ./runs.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(opts.RootOptions, cmd)
			report := harness.Run(selftest.Suite(), opts.runConfig(opts.RootOptions, out.GetErrWriter()))
			return finishRun(cmd.Context(), out, &opts.suiteFlags, report)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only tests whose name matches this glob")
	cmd.Flags().BoolVar(&opts.FailFast, "fail-fast", false, "stop after the first failing test")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "checkpoint limit of every test runtime")

	return cmd
}
