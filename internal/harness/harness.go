package harness

import (
	"fmt"
	"log/slog"
	"path"
	"slices"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/testutil"
)

// RunConfig configures a suite run.
type RunConfig struct {
	// MaxDepth is the checkpoint limit of every test runtime.
	// Default: engine.DefaultMaxDepth.
	MaxDepth int

	// Filter is a path.Match glob on test names. Empty runs every test.
	Filter string

	// FailFast stops the run after the first failing test.
	FailFast bool

	// Logger receives run progress. Default: discard.
	Logger *slog.Logger

	// Observer receives the engine events of every test runtime.
	Observer engine.Observer

	// Clock stamps events. One clock is shared by the whole run so event
	// sequence numbers are unique across tests. Default: engine.NewClock().
	Clock engine.Sequencer

	// IDGenerator names test runtimes. Default: UUIDv7.
	IDGenerator engine.IDGenerator
}

// runner executes the tests of one suite.
type runner struct {
	suite  *Suite
	cfg    RunConfig
	logger *slog.Logger
}

// Run executes the suite's tests in declaration order and classifies each.
//
// Per test, on a fresh runtime:
//  1. Every setup runs; an exception in a setup is an OutcomeError
//  2. The body runs inside a catch-all block whose handler returns the
//     observed exception
//  3. The observed kind is compared with the expected kind
//  4. Every teardown runs, then the checkpoint stack must be empty
//
// Fatal engine errors are contained per test and reported as OutcomeError.
func Run(suite *Suite, cfg RunConfig) *Report {
	if cfg.Logger == nil {
		cfg.Logger = testutil.QuietLogger()
	}
	if cfg.Clock == nil {
		cfg.Clock = engine.NewClock()
	}
	r := &runner{suite: suite, cfg: cfg, logger: cfg.Logger}

	report := &Report{Suite: suite.name}
	for i, tc := range suite.tests {
		if !matchFilter(cfg.Filter, tc.name) {
			continue
		}
		res := r.runTest(tc)
		r.logger.Info("test finished",
			"suite", suite.name, "test", tc.name, "outcome", res.Outcome)
		report.add(res)
		if cfg.FailFast && res.Outcome.Failed() {
			report.Stopped = slices.ContainsFunc(suite.tests[i+1:], func(next testCase) bool {
				return matchFilter(cfg.Filter, next.name)
			})
			break
		}
	}
	return report
}

func matchFilter(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, name)
	return err == nil && ok
}

func (r *runner) runTest(tc testCase) TestResult {
	rec := engine.NewRecorder()
	var obs engine.Observer = rec
	if r.cfg.Observer != nil {
		obs = multiObserver{rec, r.cfg.Observer}
	}
	rt := engine.New(
		engine.WithMaxDepth(r.cfg.MaxDepth),
		engine.WithLogger(r.logger),
		engine.WithObserver(obs),
		engine.WithClock(r.cfg.Clock),
		engine.WithIDGenerator(r.cfg.IDGenerator),
	)
	t := &T{name: tc.name, rt: rt}
	res := TestResult{Name: tc.name, Expected: tc.expected}

	if p := inGoroutine(func() { r.runBody(tc, t, &res) }); p != nil {
		res.Outcome = OutcomeError
		res.Message = fmt.Sprintf("panic: %v", p)
	}
	if res.Outcome == "" && t.skipped != "" {
		res.Outcome = OutcomeSkipped
		res.Message = t.skipped
	}

	if p := inGoroutine(func() { r.runTeardowns(t, &res) }); p != nil {
		res.Outcome = OutcomeError
		res.Message = fmt.Sprintf("panic in teardown: %v", p)
	}

	if leaked := leakedCheckpoints(rt.Snapshot(), t.abandoned); len(leaked) > 0 {
		snap := engine.StackSnapshot{Depth: len(leaked), Checkpoints: leaked}
		res.Outcome = OutcomeLeak
		res.LeakedDepth = len(leaked)
		res.Leaked = leaked
		res.Message = fmt.Sprintf("test %s left checkpoints behind after teardown\n%s", tc.name, snap)
		r.logger.Error("checkpoint leak", "test", tc.name, "depth", len(leaked))
	}

	if res.Outcome == "" {
		// Goexit without Skip, e.g. runtime.Goexit called by the test itself.
		res.Outcome = OutcomeError
		res.Message = "test exited without completing"
	}
	res.Logs = t.logs
	res.Events = rec.Events()
	return res
}

func (r *runner) runBody(tc testCase, t *T, res *TestResult) {
	err := t.rt.Supervise(func() {
		for _, h := range r.suite.setups {
			if exc, threw := r.runSafely(t, h.loc, h.fn); threw {
				res.Outcome = OutcomeError
				res.Observed = exc.Kind
				res.Message = fmt.Sprintf("setup threw %s: %s", exc.Kind, exc.Message)
				return
			}
		}

		exc, threw := r.runSafely(t, tc.loc, tc.fn)
		observed := engine.KindNone
		if threw {
			observed = exc.Kind
		}
		res.Observed = observed

		switch {
		case observed == engine.KindAssertionFailed && tc.expected != engine.KindAssertionFailed:
			res.Outcome = OutcomeAssertionFailed
			res.Message = exc.Message
		case observed != tc.expected:
			res.Outcome = OutcomeUnexpectedException
			res.Message = unexpectedMessage(tc, exc, threw)
		default:
			res.Outcome = OutcomePassed
		}
	})
	if err != nil {
		res.Outcome = OutcomeError
		res.Message = err.Error()
	}
}

func (r *runner) runTeardowns(t *T, res *TestResult) {
	for _, h := range r.suite.teardowns {
		var exc engine.Exception
		var threw bool
		err := t.rt.Supervise(func() { exc, threw = r.runSafely(t, h.loc, h.fn) })
		switch {
		case err != nil:
			res.Outcome = OutcomeError
			res.Message = err.Error()
		case threw:
			res.Outcome = OutcomeError
			res.Message = fmt.Sprintf("teardown threw %s: %s", exc.Kind, exc.Message)
		}
	}
}

// runSafely runs fn inside a catch-all block and returns the exception that
// reached it.
func (r *runner) runSafely(t *T, loc engine.Location, fn TestFunc) (engine.Exception, bool) {
	return engine.TryAt(t.rt, loc, func(s *engine.Scope[engine.Exception]) {
		t.frame = s.Depth()
		fn(t)
	}).CatchAll(func(s *engine.Scope[engine.Exception], e engine.Exception) {
		s.Return(e)
	}).Finally(func() {
		r.logger.Debug("protected call finished", "test", t.name)
	}).Run()
}

// leakedCheckpoints returns the live checkpoints that do not belong to the
// harness's own protected calls abandoned by Skip.
func leakedCheckpoints(snap engine.StackSnapshot, abandoned []int) []engine.Checkpoint {
	var leaked []engine.Checkpoint
	for _, cp := range snap.Checkpoints {
		if !slices.Contains(abandoned, cp.Depth) {
			leaked = append(leaked, cp)
		}
	}
	return leaked
}

func unexpectedMessage(tc testCase, exc engine.Exception, threw bool) string {
	if !threw {
		return fmt.Sprintf("expected exception %s, but the test completed without one", tc.expected)
	}
	if tc.expected == engine.KindNone {
		return fmt.Sprintf("unexpected exception %s at %s: %s", exc.Kind, exc.Location, exc.Message)
	}
	return fmt.Sprintf("expected exception %s, observed %s at %s: %s",
		tc.expected, exc.Kind, exc.Location, exc.Message)
}

// inGoroutine runs fn on its own goroutine and waits for it. It returns the
// value of a panic that escaped fn. A Goexit (T.Skip) ends fn quietly.
func inGoroutine(fn func()) (panicked any) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			panicked = recover()
		}()
		fn()
	}()
	<-done
	return panicked
}

type multiObserver []engine.Observer

func (m multiObserver) OnEvent(ev engine.Event) {
	for _, o := range m {
		o.OnEvent(ev)
	}
}
