package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/roach88/tryblock/internal/harness"
	"github.com/roach88/tryblock/internal/store"
)

// suiteFlags are the flags shared by commands that run a suite.
type suiteFlags struct {
	Database string
	Filter   string
	FailFast bool
	MaxDepth int
}

func (f *suiteFlags) runConfig(opts *RootOptions, errOut io.Writer) harness.RunConfig {
	return harness.RunConfig{
		MaxDepth: f.MaxDepth,
		Filter:   f.Filter,
		FailFast: f.FailFast,
		Logger:   newLogger(opts, errOut),
	}
}

// finishRun stores the report when a database is configured, prints it and
// maps failures to ExitFailure.
func finishRun(ctx context.Context, out *OutputFormatter, flags *suiteFlags, report *harness.Report) error {
	var runID string
	if flags.Database != "" {
		id, err := storeReport(ctx, flags.Database, report, flags.MaxDepth)
		if err != nil {
			return out.Fail(ExitCommandError, ErrCodeStore, "failed to store run", err)
		}
		runID = id
		out.VerboseLog("stored run %s in %s", runID, flags.Database)
	}

	if out.Format == "json" {
		status := "ok"
		if !report.OK() {
			status = "failed"
		}
		if err := out.JSON(CLIResponse{Status: status, Data: report, RunID: runID}); err != nil {
			return err
		}
	} else {
		printReport(out.Writer, report)
		if runID != "" {
			fmt.Fprintf(out.Writer, "run %s\n", runID)
		}
	}

	if !report.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d tests failed", report.Failed, report.Total()))
	}
	return nil
}

func storeReport(ctx context.Context, path string, report *harness.Report, maxDepth int) (string, error) {
	st, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer st.Close()

	id, err := store.NewRunID()
	if err != nil {
		return "", err
	}
	rec, err := store.NewRunRecord(id, report, maxDepth)
	if err != nil {
		return "", err
	}
	if err := st.WriteRun(ctx, rec); err != nil {
		return "", err
	}
	return id, nil
}

// printReport writes one line per test and a summary.
func printReport(w io.Writer, report *harness.Report) {
	for _, res := range report.Results {
		switch {
		case res.Outcome == harness.OutcomePassed:
			fmt.Fprintf(w, "✓ %s\n", res.Name)
		case res.Outcome == harness.OutcomeSkipped:
			fmt.Fprintf(w, "- %s (skipped: %s)\n", res.Name, res.Message)
		default:
			fmt.Fprintf(w, "✗ %s [%s]\n", res.Name, res.Outcome)
			if res.Message != "" {
				fmt.Fprintf(w, "  %s\n", res.Message)
			}
			for _, line := range res.Logs {
				fmt.Fprintf(w, "  %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s: %d tests, %d passed, %d failed, %d skipped\n",
		report.Suite, report.Total(), report.Passed, report.Failed, report.Skipped)
	if report.Stopped {
		fmt.Fprintln(w, "stopped after first failure")
	}
}
