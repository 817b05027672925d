package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	MaxDepth int
}

// TraceOutput is the JSON payload of the trace command.
type TraceOutput struct {
	Scenario string          `json:"scenario"`
	Digest   string          `json:"digest"`
	Result   *harness.Result `json:"result"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Execute one scenario and print its event trace",
		Long: `Execute a scenario program without checking its expectations and print
every engine event, how the program ended and the trace digest.

Example:
  tryblock trace ./scenarios/bubbling.yaml
  tryblock trace ./scenarios/bubbling.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", engine.DefaultMaxDepth, "checkpoint limit when the scenario sets none")

	return cmd
}

func runTrace(opts *TraceOptions, file string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(file); os.IsNotExist(err) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scenario file not found: %s", file), nil)
	}
	sc, err := harness.LoadScenario(file)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInvalid, "failed to load scenario", err)
	}

	result, err := harness.Execute(sc,
		harness.WithExecMaxDepth(opts.MaxDepth),
		harness.WithExecLogger(newLogger(opts.RootOptions, out.GetErrWriter())),
	)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "scenario program failed", err)
	}
	digest, err := harness.SnapshotDigest(sc.Name, result)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeGeneric, "failed to digest trace", err)
	}

	if opts.Format == "json" {
		return out.Success(TraceOutput{Scenario: sc.Name, Digest: digest, Result: result})
	}

	w := out.Writer
	fmt.Fprintf(w, "scenario %s\n", sc.Name)
	fmt.Fprint(w, harness.FormatTrace(result.Trace))
	fmt.Fprintf(w, "ended: %s\n", describeEnding(result))
	fmt.Fprintf(w, "max depth: %d\n", result.MaxDepth)
	fmt.Fprintf(w, "digest: %s\n", digest)
	return nil
}

func describeEnding(result *harness.Result) string {
	switch {
	case result.Exception != nil:
		e := result.Exception
		return fmt.Sprintf("unhandled %s %q at %s", e.Kind, e.Message, e.Location)
	case result.Fatal != "":
		return fmt.Sprintf("fatal %s", result.Fatal)
	default:
		return "normal"
	}
}
