package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tryblock/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Events   bool
	Test     string
	Verify   bool
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Inspect recorded runs",
		Long: `List the runs recorded with --db, or show one run.

With a run ID, the run's results are printed. --events adds the engine events
of the run (optionally of one test), and --verify recomputes the run digest
and compares it with the stored one.

Example:
  tryblock history --db ./runs.db
  tryblock history --db ./runs.db 01929b5e-... --events --test 'catch*'
  tryblock history --db ./runs.db 01929b5e-... --verify`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().BoolVar(&opts.Events, "events", false, "print the run's engine events")
	cmd.Flags().StringVar(&opts.Test, "test", "", "limit --events to one test")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "recompute and check the run digest")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)

	if _, err := os.Stat(opts.Database); os.IsNotExist(err) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer st.Close()

	if len(args) == 0 {
		return listRuns(cmd, out, st)
	}
	if opts.Verify {
		return verifyRun(cmd, out, st, args[0])
	}
	return showRun(cmd, out, st, args[0], opts)
}

func listRuns(cmd *cobra.Command, out *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to list runs", err)
	}
	if out.Format == "json" {
		return out.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(out.Writer, "%4d  %s  %-20s %d passed, %d failed, %d skipped\n",
			r.Seq, r.ID, r.Suite, r.Passed, r.Failed, r.Skipped)
	}
	return nil
}

// RunDetail is the JSON payload of history with a run ID.
type RunDetail struct {
	Run    store.RunRecord     `json:"run"`
	Events []store.EventRecord `json:"events,omitempty"`
}

func showRun(cmd *cobra.Command, out *OutputFormatter, st *store.Store, id string, opts *HistoryOptions) error {
	ctx := cmd.Context()
	run, err := st.ReadRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to read run", err)
	}

	var events []store.EventRecord
	if opts.Events {
		events, err = st.ReadEvents(ctx, id, opts.Test)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeStore, "failed to read events", err)
		}
	}

	if out.Format == "json" {
		return out.Success(RunDetail{Run: run, Events: events})
	}

	w := out.Writer
	fmt.Fprintf(w, "run %s (seq %d)\n", run.ID, run.Seq)
	fmt.Fprintf(w, "suite %s, max depth %d, engine %s\n", run.Suite, run.MaxDepth, run.EngineVersion)
	fmt.Fprintf(w, "%d tests, %d passed, %d failed, %d skipped, exit %d\n",
		run.Total, run.Passed, run.Failed, run.Skipped, run.ExitCode)
	for _, res := range run.Results {
		fmt.Fprintf(w, "  %-22s %s", res.Outcome, res.Name)
		if res.Message != "" {
			fmt.Fprintf(w, ": %s", res.Message)
		}
		fmt.Fprintln(w)
	}
	if opts.Events {
		fmt.Fprintln(w, "events:")
		for _, ev := range events {
			fmt.Fprintf(w, "  [%d] %-8s depth=%d test=%s", ev.Seq, ev.Type, ev.Depth, ev.TestName)
			if ev.Kind != 0 {
				fmt.Fprintf(w, " kind=%d", ev.Kind)
			}
			if ev.File != "" {
				fmt.Fprintf(w, " at %s:%d", ev.File, ev.Line)
			}
			fmt.Fprintln(w)
		}
	}
	return nil
}

// Verification is the JSON payload of history --verify.
type Verification struct {
	RunID  string `json:"run_id"`
	Digest string `json:"digest"`
	Match  bool   `json:"match"`
}

func verifyRun(cmd *cobra.Command, out *OutputFormatter, st *store.Store, id string) error {
	digest, ok, err := st.VerifyRun(cmd.Context(), id)
	if errors.Is(err, store.ErrRunNotFound) {
		return out.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run not found: %s", id), nil)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeStore, "failed to verify run", err)
	}

	if out.Format == "json" {
		status := "ok"
		if !ok {
			status = "failed"
		}
		if err := out.JSON(CLIResponse{Status: status, Data: Verification{RunID: id, Digest: digest, Match: ok}}); err != nil {
			return err
		}
	} else if ok {
		fmt.Fprintf(out.Writer, "✓ run %s digest %s\n", id, digest)
	} else {
		fmt.Fprintf(out.Writer, "✗ run %s digest mismatch: recomputed %s\n", id, digest)
	}

	if !ok {
		return NewExitError(ExitFailure, fmt.Sprintf("run %s does not match its digest", id))
	}
	return nil
}
