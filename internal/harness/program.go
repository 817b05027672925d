package harness

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/testutil"
)

// maxCallDepth bounds call nesting so a recursive function without a try
// cannot exhaust the Go stack.
const maxCallDepth = 1024

// ExecOption configures a scenario execution.
type ExecOption func(*execConfig)

type execConfig struct {
	logger       *slog.Logger
	observer     engine.Observer
	maxDepth     int
	goldenDir    string
	updateGolden bool
}

func newExecConfig(opts []ExecOption) execConfig {
	cfg := execConfig{maxDepth: engine.DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = testutil.QuietLogger()
	}
	return cfg
}

// WithExecLogger sets the runtime logger. Default: discard.
func WithExecLogger(l *slog.Logger) ExecOption {
	return func(c *execConfig) {
		c.logger = l
	}
}

// WithExecObserver forwards engine events to o in addition to the trace.
func WithExecObserver(o engine.Observer) ExecOption {
	return func(c *execConfig) {
		c.observer = o
	}
}

// WithExecMaxDepth sets the checkpoint limit when the scenario does not.
func WithExecMaxDepth(n int) ExecOption {
	return func(c *execConfig) {
		c.maxDepth = n
	}
}

// WithGoldenDir makes RunScenario compare every execution with
// dir/{name}.golden. With update set, the golden file is written instead.
func WithGoldenDir(dir string, update bool) ExecOption {
	return func(c *execConfig) {
		c.goldenDir = dir
		c.updateGolden = update
	}
}

// ProgramError reports a scenario program that cannot continue, such as a
// return outside any try. It is a defect of the scenario, not an exception.
type ProgramError struct {
	Line    int
	Message string
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	return fmt.Sprintf("program error at line %d: %s", e.Line, e.Message)
}

// interp executes one scenario program on one runtime.
type interp struct {
	sc     *Scenario
	rt     *engine.Runtime
	file   string
	flags  map[string]bool
	values map[string]int
	calls  int
}

// Execute runs the scenario's program and returns its raw result: trace,
// final variables and how the program ended. It does not evaluate
// expectations; see RunScenario.
//
// Every execution uses a deterministic clock and a runtime named after the
// scenario, so identical programs yield identical traces.
func Execute(sc *Scenario, opts ...ExecOption) (*Result, error) {
	cfg := newExecConfig(opts)
	if sc.MaxDepth > 0 {
		cfg.maxDepth = sc.MaxDepth
	}

	rec := engine.NewRecorder()
	var obs engine.Observer = rec
	if cfg.observer != nil {
		obs = multiObserver{rec, cfg.observer}
	}
	rt := engine.New(
		engine.WithMaxDepth(cfg.maxDepth),
		engine.WithLogger(cfg.logger),
		engine.WithObserver(obs),
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithIDGenerator(testutil.NewFixedIDGenerator(sc.Name)),
	)

	x := &interp{
		sc:     sc,
		rt:     rt,
		file:   sc.File(),
		flags:  make(map[string]bool),
		values: make(map[string]int),
	}

	result := NewResult()
	progErr := x.supervise(result)
	if progErr != nil {
		return nil, progErr
	}

	result.Flags = x.flags
	result.Values = x.values
	for _, ev := range rec.Events() {
		result.Trace = append(result.Trace, NewTraceEvent(ev))
		if ev.Type == engine.EventEnter && ev.Depth+1 > result.MaxDepth {
			result.MaxDepth = ev.Depth + 1
		}
	}
	return result, nil
}

// supervise runs Main and records an escaped exception or fatal error.
func (x *interp) supervise(result *Result) (progErr error) {
	defer func() {
		if rec := recover(); rec != nil {
			pe, ok := rec.(*ProgramError)
			if !ok {
				panic(rec)
			}
			progErr = pe
		}
	}()

	err := x.rt.Supervise(func() {
		x.run(x.sc.Main, nil)
	})
	if err == nil {
		return nil
	}
	if exc, ok := engine.UnhandledException(err); ok {
		result.Exception = &exc
		result.Fatal = engine.ErrCodeUnhandled
		return nil
	}
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		result.Fatal = ee.Code
		return nil
	}
	return err
}

// run executes steps. scope is the innermost try's scope, nil at top level.
func (x *interp) run(steps []Step, scope *engine.Scope[int]) {
	for _, st := range steps {
		x.step(st, scope)
	}
}

func (x *interp) step(st Step, scope *engine.Scope[int]) {
	loc := engine.Location{File: x.file, Line: st.Line}
	switch {
	case st.Set != "":
		x.flags[st.Set] = true
	case st.Assign != nil:
		x.values[st.Assign.Name] = st.Assign.Value
	case st.Throw != nil:
		x.rt.ThrowAt(loc, engine.Kind(st.Throw.Kind), st.Throw.Message)
	case st.Rethrow:
		if scope == nil {
			x.abort(st.Line, "rethrow outside any try")
		}
		scope.RethrowAt(loc)
	case st.Return != nil:
		if scope == nil {
			x.abort(st.Line, "return outside any try")
		}
		v := st.Return.Value
		if st.Return.From != "" {
			v = x.values[st.Return.From]
		}
		scope.Return(v)
	case st.Try != nil:
		x.try(st.Try, loc)
	case st.Call != "":
		x.call(st, scope)
	}
}

func (x *interp) try(ts *TryStep, loc engine.Location) {
	var self *engine.Scope[int]
	b := engine.TryAt(x.rt, loc, func(s *engine.Scope[int]) {
		self = s
		x.run(ts.Body, s)
	})
	for _, c := range ts.Catch {
		c := c
		if c.All {
			b.CatchAll(func(s *engine.Scope[int], e engine.Exception) {
				x.bind(c.Bind, e)
				x.run(c.Steps, s)
			})
			continue
		}
		b.Catch(engine.Kind(c.Kind), func(s *engine.Scope[int]) {
			if e, ok := s.Exception(); ok {
				x.bind(c.Bind, e)
			}
			x.run(c.Steps, s)
		})
	}
	if len(ts.Finally) > 0 {
		b.Finally(func() {
			x.run(ts.Finally, self)
		})
	}

	v, returned := b.Run()
	if returned && ts.Result != "" {
		x.values[ts.Result] = v
	}
}

func (x *interp) call(st Step, scope *engine.Scope[int]) {
	if x.calls >= maxCallDepth {
		x.abort(st.Line, fmt.Sprintf("call depth exceeds %d", maxCallDepth))
	}
	x.calls++
	defer func() { x.calls-- }()
	x.run(x.sc.Functions[st.Call], scope)
}

func (x *interp) bind(name string, e engine.Exception) {
	if name != "" {
		x.values[name] = int(e.Kind)
	}
}

func (x *interp) abort(line int, msg string) {
	panic(&ProgramError{Line: line, Message: msg})
}

// RunScenario executes the scenario and evaluates its expectations and
// assertions, and its golden file when WithGoldenDir is set. The result fails
// when any check fails.
func RunScenario(sc *Scenario, opts ...ExecOption) (*Result, error) {
	result, err := Execute(sc, opts...)
	if err != nil {
		return nil, err
	}
	if cfg := newExecConfig(opts); cfg.goldenDir != "" {
		if err := CheckGolden(cfg.goldenDir, sc.Name, result, cfg.updateGolden); err != nil {
			result.AddError(err.Error())
		}
	}
	for _, msg := range EvaluateExpectations(sc, result) {
		result.AddError(msg)
	}
	for _, msg := range EvaluateAssertions(result, sc.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// ScenarioSuite turns scenarios into a suite with one test per scenario, so
// scenarios share the runner's classification, filtering and reporting.
func ScenarioSuite(name string, scenarios []*Scenario, opts ...ExecOption) *Suite {
	suite := NewSuite(name)
	for _, sc := range scenarios {
		sc := sc
		suite.add(sc.Name, engine.KindNone, func(t *T) {
			result, err := RunScenario(sc, opts...)
			if err != nil {
				t.Fail(err.Error())
			}
			for _, msg := range result.Errors {
				t.Logf("%s", msg)
			}
			t.Assert(result.Pass, fmt.Sprintf("scenario %s failed %d check(s)", sc.Name, len(result.Errors)))
		})
	}
	return suite
}
