// Package metrics reduces the probe, memory and GC series of a run into
// summary statistics, and tracks live figures while the run is in progress.
//
// # Summary
//
// [Summarize] is a pure reduction computed once, after every producer has
// stopped:
//
//	summary := metrics.Summarize(metrics.Series{
//		Latency:       samples,
//		Memory:        memorySamples,
//		TotalMemory:   total,
//		GC:            gcEvents,
//		SlowThreshold: 300 * time.Millisecond,
//		Duration:      elapsed,
//	})
//
// Empty series produce zero statistics rather than errors, so a run shorter
// than one sampling interval still yields a valid report.
//
// # Live figures
//
// [Collector] is updated from the probe loop, the memory sampler and the GC
// monitor as they produce data, and is read by the progress line, the
// dashboard and the live feed. It never feeds the final summary.
//
// # Thread Safety
//
// Collector guards its state with a mutex; each Record call is O(1).
package metrics
