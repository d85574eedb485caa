// Package pressure manufactures large-object allocation churn.
//
// A [Generator] runs bounded bursts of concurrent workers. Each worker
// repeatedly allocates a buffer of uniformly random size, fills it with a
// repeated byte and drops it, occasionally sleeping to break lockstep:
//
//	gen := pressure.New(pressure.Options{Workers: 32, BurstDuration: time.Second})
//	gen.RunBurst(ctx)          // blocks until every worker has exited
//	b := gen.Launch(ctx)       // fire-and-forget; b.Wait() joins later
//
// The end of a burst is signalled by cancelling its context. Workers treat
// that as normal termination, so neither RunBurst nor [Burst.Wait] return an
// error.
package pressure
