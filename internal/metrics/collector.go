package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/probe"
)

// recentGCEvents bounds how many GC events a snapshot carries.
const recentGCEvents = 10

// Collector tracks live run figures in a thread-safe manner.
type Collector struct {
	mu         sync.Mutex
	hist       *hdrhistogram.Histogram
	iterations int64
	slow       int64
	minLatency time.Duration
	maxLatency time.Duration
	sumLatency time.Duration
	last       probe.Sample

	memTotal uint64
	memUsed  uint64
	heap     uint64

	gcCycles int64
	gcTotal  time.Duration
	gcMax    time.Duration
	gcByKind map[gcmonitor.Kind]int64
	gcRecent []gcmonitor.Event
	bursts   int64
	start    time.Time
}

// Stats is a point-in-time view of a Collector.
type Stats struct {
	Iterations     int64             `json:"iterations"`
	SlowIterations int64             `json:"slow_iterations"`
	MinLatency     time.Duration     `json:"-"`
	MaxLatency     time.Duration     `json:"-"`
	MeanLatency    time.Duration     `json:"-"`
	LastLatency    time.Duration     `json:"-"`
	P99Latency     time.Duration     `json:"-"`
	Elapsed        time.Duration     `json:"-"`
	IterationsPerS float64           `json:"iterations_per_sec"`
	MemoryTotal    uint64            `json:"memory_total_bytes"`
	MemoryUsed     uint64            `json:"memory_used_bytes"`
	HeapBytes      uint64            `json:"heap_bytes"`
	GCCycles       int64             `json:"gc_cycles"`
	GCTotalPause   time.Duration     `json:"-"`
	GCMaxPause     time.Duration     `json:"-"`
	GCByKind       map[string]int64  `json:"gc_by_kind,omitempty"`
	RecentGC       []gcmonitor.Event `json:"-"`
	Bursts         int64             `json:"bursts"`

	MinLatencyMs  float64 `json:"min_latency_ms"`
	MaxLatencyMs  float64 `json:"max_latency_ms"`
	MeanLatencyMs float64 `json:"mean_latency_ms"`
	LastLatencyMs float64 `json:"last_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`
}

// MemoryPercent returns used memory as a percentage of total, or 0.
func (s Stats) MemoryPercent() float64 {
	return percentOf(float64(s.MemoryUsed), s.MemoryTotal)
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		hist:     newLatencyHistogram(),
		gcByKind: make(map[gcmonitor.Kind]int64),
		start:    time.Now(),
	}
}

// Start marks the beginning of the run for rate calculations.
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
}

// RecordLatency records one probe iteration.
func (c *Collector) RecordLatency(sample probe.Sample, slow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	recordMicros(c.hist, sample.Elapsed)
	c.sumLatency += sample.Elapsed
	if c.iterations == 0 || sample.Elapsed < c.minLatency {
		c.minLatency = sample.Elapsed
	}
	if sample.Elapsed > c.maxLatency {
		c.maxLatency = sample.Elapsed
	}
	c.iterations++
	if slow {
		c.slow++
	}
	c.last = sample
}

// SetTotalMemory records total system memory.
func (c *Collector) SetTotalMemory(total uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memTotal = total
}

// RecordMemory records the latest memory observation.
func (c *Collector) RecordMemory(sample memsampler.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memUsed = sample.Used
	c.heap = sample.Heap
}

// RecordGC records one GC cycle.
func (c *Collector) RecordGC(ev gcmonitor.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gcCycles++
	c.gcTotal += ev.Pause
	if ev.Pause > c.gcMax {
		c.gcMax = ev.Pause
	}
	c.gcByKind[ev.Kind]++
	if len(c.gcRecent) == recentGCEvents {
		copy(c.gcRecent, c.gcRecent[1:])
		c.gcRecent = c.gcRecent[:recentGCEvents-1]
	}
	c.gcRecent = append(c.gcRecent, ev)
}

// RecordBurst counts a launched pressure burst.
func (c *Collector) RecordBurst() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bursts++
}

// Stats returns the current figures.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.start)
	stats := Stats{
		Iterations:     c.iterations,
		SlowIterations: c.slow,
		MinLatency:     c.minLatency,
		MaxLatency:     c.maxLatency,
		LastLatency:    c.last.Elapsed,
		P99Latency:     quantile(c.hist, 99),
		Elapsed:        elapsed,
		MemoryTotal:    c.memTotal,
		MemoryUsed:     c.memUsed,
		HeapBytes:      c.heap,
		GCCycles:       c.gcCycles,
		GCTotalPause:   c.gcTotal,
		GCMaxPause:     c.gcMax,
		RecentGC:       append([]gcmonitor.Event(nil), c.gcRecent...),
		Bursts:         c.bursts,
	}
	if c.iterations > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / c.iterations)
	}
	if elapsed > 0 {
		stats.IterationsPerS = float64(c.iterations) / elapsed.Seconds()
	}
	if len(c.gcByKind) > 0 {
		stats.GCByKind = make(map[string]int64, len(c.gcByKind))
		for k, v := range c.gcByKind {
			stats.GCByKind[string(k)] = v
		}
	}

	stats.MinLatencyMs = toMs(stats.MinLatency)
	stats.MaxLatencyMs = toMs(stats.MaxLatency)
	stats.MeanLatencyMs = toMs(stats.MeanLatency)
	stats.LastLatencyMs = toMs(stats.LastLatency)
	stats.P99LatencyMs = toMs(stats.P99Latency)
	return stats
}
