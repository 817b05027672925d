// Package harness runs exception-handling tests and scenario programs on
// fresh engine runtimes.
//
// # Suites
//
// A Suite is an ordered list of tests with shared setup and teardown hooks.
// Run gives every test its own runtime, executes the body inside a catch-all
// protected block and classifies the result:
//
//	suite := harness.NewSuite("arith").
//		Test("catches", func(t *harness.T) {
//			rt := t.Runtime()
//			_, _ = rt.Try(func(s *engine.Scope[engine.Unit]) {
//				rt.Throw(engine.KindOutOfRange, "too big")
//			}).Catch(engine.KindOutOfRange, func(*engine.Scope[engine.Unit]) {}).Run()
//		}).
//		TestExpecting("throws", engine.KindBadObjectType, func(t *harness.T) {
//			t.Runtime().Throw(engine.KindBadObjectType, "bad")
//		})
//	report := harness.Run(suite, harness.RunConfig{})
//
// After teardown the checkpoint stack must be empty. Anything left behind is
// reported as OutcomeLeak with the location of every live checkpoint.
//
// # Scenario Format
//
// Scenarios are YAML programs validated against an embedded CUE schema:
//
//	name: rethrow_runs_cleanup
//	description: "What this scenario validates"
//	functions:
//	  fail:
//	    - throw: {kind: 5, message: "boom"}
//	main:
//	  - try:
//	      body:
//	        - call: fail
//	      catch:
//	        - kind: 5
//	          bind: seen
//	          steps:
//	            - set: caught
//	      finally:
//	        - set: cleaned
//	flags: {caught: true, cleaned: true}
//	values: {seen: 5}
//	assertions:
//	  - type: trace_order
//	    events: [throw, catch, finally, leave]
//
// Steps are set, assign, throw, rethrow, return, try and call. A scenario
// may expect an escaping exception (expect_exception) or a fatal engine error
// (expect_fatal); otherwise it must complete normally.
//
// # Assertion Types
//
//   - trace_contains: an event of the type occurs, optionally with kind and depth
//   - trace_order: event types occur as a subsequence
//   - trace_count: an event type occurs exactly N times
//   - max_depth: the deepest checkpoint depth reached
//
// # Deterministic Testing
//
// Scenario executions use testutil.DeterministicClock and a runtime ID taken
// from the scenario name, and report locations as file:line of the YAML
// step. Identical programs produce byte-identical golden snapshots.
package harness
