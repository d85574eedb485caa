// Package runner provides the run controller for gcpressure.
//
// A [Controller] times the deserialization workload in a sequential loop
// while allocation bursts, a memory sampler and a GC monitor run alongside
// it. Each run moves through four states:
//
//	Idle -> Running -> Draining -> Reported
//
// # Basic Usage
//
//	c := runner.New(runner.Options{
//		Workload:   w,
//		Duration:   time.Minute,
//		SlowLogger: output.NewSlowSampleWriter(os.Stdout),
//	})
//	report, err := c.Run(ctx)
//
// # Iterations and Bursts
//
// Every iteration is followed by one pressure burst that is launched and not
// awaited, so bursts overlap the next iterations. Only the last burst of a
// run is joined, after the collectors have stopped. The duration is checked
// between iterations, so a run may overshoot it by one iteration.
//
// [Options.ProbeRate] caps iterations per second using a token bucket from
// golang.org/x/time/rate. [Options.MaxIterations] ends a run after a fixed
// number of iterations.
//
// # Observers
//
// [Observer] implementations receive live figures while the run is in
// progress. The GC callback runs on the runtime's finalizer goroutine and
// must return quickly.
//
// # Errors
//
// A workload error is fatal to the run: Run stops the collectors, joins the
// last burst and returns the error without a [Report]. The Controller returns
// to [StateIdle] and can be run again.
package runner
