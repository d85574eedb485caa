package metrics_test

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/probe"
)

func sampleOf(d time.Duration) probe.Sample {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return probe.Sample{Start: start, End: start.Add(d), Elapsed: d}
}

func TestCollectorLatencyStats(t *testing.T) {
	c := metrics.NewCollector()

	for _, ms := range []int{10, 20, 30, 40, 50} {
		c.RecordLatency(sampleOf(time.Duration(ms)*time.Millisecond), false)
	}
	c.RecordLatency(sampleOf(400*time.Millisecond), true)

	stats := c.Stats()
	if stats.Iterations != 6 {
		t.Errorf("expected 6 iterations, got %d", stats.Iterations)
	}
	if stats.SlowIterations != 1 {
		t.Errorf("expected 1 slow iteration, got %d", stats.SlowIterations)
	}
	if stats.MinLatency != 10*time.Millisecond {
		t.Errorf("expected min 10ms, got %s", stats.MinLatency)
	}
	if stats.MaxLatency != 400*time.Millisecond {
		t.Errorf("expected max 400ms, got %s", stats.MaxLatency)
	}
	if stats.LastLatency != 400*time.Millisecond {
		t.Errorf("expected last 400ms, got %s", stats.LastLatency)
	}
	if stats.MeanLatencyMs < 91 || stats.MeanLatencyMs > 92 {
		t.Errorf("expected mean ~91.67ms, got %s", stats.MeanLatency)
	}
}

func TestCollectorMemoryAndGC(t *testing.T) {
	c := metrics.NewCollector()
	c.SetTotalMemory(1000)
	c.RecordMemory(memsampler.Sample{Used: 250, Heap: 42})

	for i := 0; i < 15; i++ {
		kind := gcmonitor.KindAutomatic
		if i%5 == 0 {
			kind = gcmonitor.KindForced
		}
		c.RecordGC(gcmonitor.Event{Cycle: int64(i + 1), Kind: kind, Pause: time.Duration(i+1) * time.Microsecond})
	}
	c.RecordBurst()

	stats := c.Stats()
	if stats.MemoryPercent() != 25 {
		t.Errorf("expected 25%% memory, got %.2f", stats.MemoryPercent())
	}
	if stats.HeapBytes != 42 {
		t.Errorf("expected heap 42, got %d", stats.HeapBytes)
	}
	if stats.GCCycles != 15 {
		t.Errorf("expected 15 cycles, got %d", stats.GCCycles)
	}
	if stats.GCByKind["forced"] != 3 || stats.GCByKind["automatic"] != 12 {
		t.Errorf("unexpected kind breakdown %v", stats.GCByKind)
	}
	if stats.GCMaxPause != 15*time.Microsecond {
		t.Errorf("expected max pause 15µs, got %s", stats.GCMaxPause)
	}
	if len(stats.RecentGC) != 10 {
		t.Fatalf("expected 10 recent events, got %d", len(stats.RecentGC))
	}
	if stats.RecentGC[0].Cycle != 6 || stats.RecentGC[9].Cycle != 15 {
		t.Errorf("recent window wrong: first=%d last=%d", stats.RecentGC[0].Cycle, stats.RecentGC[9].Cycle)
	}
	if stats.Bursts != 1 {
		t.Errorf("expected 1 burst, got %d", stats.Bursts)
	}
}

func TestCollectorZeroTotalMemory(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordMemory(memsampler.Sample{Used: 250})
	if pct := c.Stats().MemoryPercent(); pct != 0 {
		t.Fatalf("expected 0%% without total, got %.2f", pct)
	}
}

func TestCollectorStatsJSON(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordLatency(sampleOf(15*time.Millisecond), false)

	data, err := json.Marshal(c.Stats())
	if err != nil {
		t.Fatalf("failed to marshal stats: %v", err)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, field := range []string{"iterations", "slow_iterations", "min_latency_ms", "p99_latency_ms", "gc_cycles", "memory_used_bytes"} {
		if _, ok := parsed[field]; !ok {
			t.Errorf("missing field %q in JSON output", field)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	c := metrics.NewCollector()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.RecordLatency(sampleOf(time.Millisecond), false)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.RecordMemory(memsampler.Sample{Used: uint64(i)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.RecordGC(gcmonitor.Event{Kind: gcmonitor.KindAutomatic})
		}
	}()
	wg.Wait()

	stats := c.Stats()
	if stats.Iterations != 100 || stats.GCCycles != 100 {
		t.Errorf("expected 100 iterations and cycles, got %d and %d", stats.Iterations, stats.GCCycles)
	}
}
