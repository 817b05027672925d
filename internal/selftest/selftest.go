// Package selftest is the engine's conformance suite, written against the
// harness the same way application suites are.
package selftest

import (
	"strings"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
)

type unit = engine.Scope[engine.Unit]

// Suite returns the conformance suite. Each call builds fresh state, so the
// suite can be run more than once.
func Suite() *harness.Suite {
	var returnFinallyRan bool

	s := harness.NewSuite("engine")
	s.Setup(func(t *harness.T) {
		returnFinallyRan = false
	})

	s.Test("can throw exceptions", func(t *harness.T) {
		rt := t.Runtime()
		thrown := false
		rt.Try(func(*unit) {
			throwsException(rt)
		}).Catch(1, func(*unit) {
			thrown = true
		}).Run()
		t.Assert(thrown, "exception reached the handler")
	})

	s.Test("can handle multiple catches", func(t *harness.T) {
		rt := t.Runtime()
		valueThrown := 0
		rt.Try(func(*unit) {
			throwException(rt, 3)
		}).Catch(1, func(*unit) {
			valueThrown = 1
		}).Catch(2, func(*unit) {
			valueThrown = 2
		}).Catch(3, func(*unit) {
			valueThrown = 3
		}).Run()
		harness.AssertEqual(t, 3, valueThrown)
	})

	s.Test("unhandled exceptions will bubble", func(t *harness.T) {
		rt := t.Runtime()
		handled := false
		rt.Try(func(*unit) {
			doesntHandle(rt)
		}).Catch(3, func(*unit) {
			handled = true
		}).Run()
		t.Assert(handled, "outer frame handled the exception")
	})

	s.Test("handles no exception thrown", func(t *harness.T) {
		handled := false
		t.Runtime().Try(func(*unit) {}).Catch(88, func(*unit) {
			handled = true
		}).Run()
		t.Assert(!handled, "handler must not run")
	})

	s.Test("code in try is executed up to throw", func(t *harness.T) {
		rt := t.Runtime()
		step1, step2 := false, false
		rt.Try(func(*unit) {
			step1 = true
			rt.Throw(5, "testing try statement")
			step2 = true
		}).Catch(5, func(*unit) {}).Run()
		t.Assert(step1, "code before the throw ran")
		t.Assert(!step2, "code after the throw did not run")
	})

	s.Test("can do nested try catches", func(t *harness.T) {
		rt := t.Runtime()
		handled := false
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Try(func(*unit) {
					throwException(rt, 55)
				}).Catch(44, func(*unit) {
					t.Fail("inner handler must not see kind 55")
				}).Run()
			}).Catch(55, func(*unit) {
				throwException(rt, 44)
			}).Run()
		}).Catch(44, func(*unit) {
			handled = true
		}).Run()
		t.Assert(handled, "outermost frame handled kind 44")
	})

	s.Test("finally block executes if there are no exceptions", func(t *harness.T) {
		finallyRan := false
		t.Runtime().Try(func(*unit) {}).Finally(func() {
			finallyRan = true
		}).Run()
		t.Assert(finallyRan, "finally ran")
	})

	s.Test("finally block executes if there was an exception", func(t *harness.T) {
		rt := t.Runtime()
		finallyRan, catchHit := false, false
		rt.Try(func(*unit) {
			rt.Throw(5, "some error")
		}).Catch(5, func(*unit) {
			catchHit = true
		}).Finally(func() {
			finallyRan = true
		}).Run()
		t.Assert(finallyRan, "finally ran")
		t.Assert(catchHit, "handler ran")
	})

	s.Test("finally block executes if it doesn't catch the exception", func(t *harness.T) {
		rt := t.Runtime()
		finallyRan, catchHit := false, false
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Throw(5, "some error")
			}).Finally(func() {
				finallyRan = true
			}).Run()
		}).Catch(5, func(*unit) {
			catchHit = true
		}).Run()
		t.Assert(finallyRan, "inner finally ran")
		t.Assert(catchHit, "outer handler ran")
	})

	s.Test("rethrow allows throwing again in a catch block", func(t *harness.T) {
		rt := t.Runtime()
		firstHit, secondHit := false, false
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Throw(5, "some error")
			}).Catch(5, func(s *unit) {
				firstHit = true
				s.Rethrow()
			}).Run()
		}).Catch(5, func(*unit) {
			secondHit = true
		}).Run()
		t.Assert(firstHit, "first handler ran")
		t.Assert(secondHit, "rethrown exception reached the outer handler")
	})

	s.Test("rethrow runs the frame's finally first", func(t *harness.T) {
		rt := t.Runtime()
		var order []string
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Throw(5, "some error")
			}).Catch(5, func(s *unit) {
				order = append(order, "catch")
				s.Rethrow()
			}).Finally(func() {
				order = append(order, "finally")
			}).Run()
		}).Catch(5, func(*unit) {
			order = append(order, "outer")
		}).Run()
		harness.AssertEqual(t, "catch,finally,outer", strings.Join(order, ","))
	})

	s.Test("try is allowed on its own", func(t *harness.T) {
		called := false
		t.Runtime().Try(func(*unit) {
			called = true
		}).Run()
		t.Assert(called, "body ran")
	})

	s.Test("can catch all exceptions", func(t *harness.T) {
		rt := t.Runtime()
		var code engine.Exception
		rt.Try(func(*unit) {
			rt.Throw(44, "some message")
		}).Catch(88, func(*unit) {
			t.Fail("kind 88 handler must not match")
		}).CatchAll(func(_ *unit, e engine.Exception) {
			code = e
		}).Run()
		harness.AssertEqual(t, engine.Kind(44), code.Kind)
		harness.AssertEqual(t, "some message", code.Message)
	})

	s.Test("can have catch alls and finally's", func(t *harness.T) {
		rt := t.Runtime()
		var code engine.Exception
		finallyRan := false
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Throw(44, "some message")
			}).Finally(func() {
				finallyRan = true
			}).Run()
		}).CatchAll(func(_ *unit, e engine.Exception) {
			code = e
		}).Run()
		harness.AssertEqual(t, engine.Kind(44), code.Kind)
		t.Assert(finallyRan, "inner finally ran")
	})

	s.TestExpecting("can expect exceptions", 5, func(t *harness.T) {
		throwException(t.Runtime(), 5)
	})

	s.Test("can have both a catch all and a finally", func(t *harness.T) {
		rt := t.Runtime()
		code := engine.Exception{Kind: -1}
		finallyRan := false
		rt.Try(func(*unit) {
			rt.Throw(44, "Some message")
		}).CatchAll(func(_ *unit, e engine.Exception) {
			code = e
		}).Finally(func() {
			finallyRan = code.Kind == 44
		}).Run()
		t.Assert(finallyRan, "finally saw the handler's update")
	})

	s.Test("finally runs if return within a try block", func(t *harness.T) {
		harness.AssertEqual(t, 5, return5AndSetFinallyRan(t.Runtime(), &returnFinallyRan))
		t.Assert(returnFinallyRan, "finally ran before the return completed")
	})

	s.Test("finally runs if return within catch block", func(t *harness.T) {
		harness.AssertEqual(t, 5, return5WithinCatchAndSetFinallyRan(t.Runtime(), &returnFinallyRan))
		t.Assert(returnFinallyRan, "finally ran before the return completed")
	})

	s.Test("bits after the return statement don't run", func(t *harness.T) {
		harness.AssertEqual(t, 5, return5WithinTryAndDontSetFinallyRan(t.Runtime(), &returnFinallyRan))
		t.Assert(!returnFinallyRan, "code after Return did not run")
	})

	s.Test("method inside the return statement which throws works as expected", func(t *harness.T) {
		harness.AssertEqual(t, 5, throwInsideReturnThenReturn5(t.Runtime(), &returnFinallyRan))
		t.Assert(returnFinallyRan, "finally ran")
	})

	s.Test("return value is captured at the return site", func(t *harness.T) {
		x := 1
		v, returned := engine.Try(t.Runtime(), func(s *engine.Scope[int]) {
			s.Return(x)
		}).Finally(func() {
			x = 99
		}).Run()
		t.Assert(returned, "deferred return completed")
		harness.AssertEqual(t, 1, v)
		harness.AssertEqual(t, 99, x)
	})

	s.Test("exception in finally replaces the one in flight", func(t *harness.T) {
		rt := t.Runtime()
		var seen engine.Kind
		rt.Try(func(*unit) {
			rt.Try(func(*unit) {
				rt.Throw(1, "original")
			}).Finally(func() {
				rt.Throw(2, "from cleanup")
			}).Run()
		}).CatchAll(func(_ *unit, e engine.Exception) {
			seen = e.Kind
		}).Run()
		harness.AssertEqual(t, engine.Kind(2), seen)
	})

	s.Test("stack depth returns to baseline", func(t *harness.T) {
		rt := t.Runtime()
		before := rt.Depth()
		rt.Try(func(*unit) {
			doesntHandle(rt)
		}).CatchAll(func(*unit, engine.Exception) {}).Run()
		harness.AssertEqual(t, before, rt.Depth())
	})

	return s
}

func throwException(rt *engine.Runtime, kind engine.Kind) {
	rt.Throw(kind, "unit test exception")
}

func throwsException(rt *engine.Runtime) {
	throwException(rt, 1)
}

func doesntHandle(rt *engine.Runtime) {
	rt.Try(func(*unit) {
		throwException(rt, 3)
	}).Catch(1, func(*unit) {}).Run()
}

func return5AndSetFinallyRan(rt *engine.Runtime, ran *bool) int {
	if v, ok := engine.Try(rt, func(s *engine.Scope[int]) {
		s.Return(5)
	}).Finally(func() {
		*ran = true
	}).Run(); ok {
		return v
	}
	return 0
}

func return5WithinCatchAndSetFinallyRan(rt *engine.Runtime, ran *bool) int {
	if v, ok := engine.Try(rt, func(s *engine.Scope[int]) {
		rt.Throw(32, "unit test exception")
	}).Catch(32, func(s *engine.Scope[int]) {
		s.Return(5)
	}).Finally(func() {
		*ran = true
	}).Run(); ok {
		return v
	}
	return 0
}

func return5WithinTryAndDontSetFinallyRan(rt *engine.Runtime, ran *bool) int {
	if v, ok := engine.Try(rt, func(s *engine.Scope[int]) {
		s.Return(5)
		*ran = true
	}).Finally(func() {}).Run(); ok {
		return v
	}
	return 0
}

func claimToReturnAnIntButThrow(rt *engine.Runtime) int {
	rt.Throw(5, "unit test exception")
	return 0
}

func throwInsideReturnThenReturn5(rt *engine.Runtime, ran *bool) int {
	if v, ok := engine.Try(rt, func(s *engine.Scope[int]) {
		s.Return(claimToReturnAnIntButThrow(rt))
	}).Catch(5, func(*engine.Scope[int]) {}).Finally(func() {
		*ran = true
	}).Run(); ok {
		return v
	}
	return 5
}
