package metrics

import (
	"sort"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/probe"
)

// Series holds the three time series of a finished run.
type Series struct {
	Latency       []probe.Sample
	Memory        []memsampler.Sample
	TotalMemory   uint64
	GC            []gcmonitor.Event
	SlowThreshold time.Duration
	Duration      time.Duration
}

// Summary is the final rollup of a run.
type Summary struct {
	Iterations     int64         `json:"iterations" yaml:"iterations"`
	SlowIterations int64         `json:"slow_iterations" yaml:"slow_iterations"`
	SlowThreshold  time.Duration `json:"-" yaml:"-"`
	MinLatency     time.Duration `json:"-" yaml:"-"`
	MaxLatency     time.Duration `json:"-" yaml:"-"`
	MeanLatency    time.Duration `json:"-" yaml:"-"`
	P50Latency     time.Duration `json:"-" yaml:"-"`
	P90Latency     time.Duration `json:"-" yaml:"-"`
	P99Latency     time.Duration `json:"-" yaml:"-"`
	Duration       time.Duration `json:"-" yaml:"-"`

	// JSON-friendly millisecond fields.
	SlowThresholdMs float64 `json:"slow_threshold_ms" yaml:"slow_threshold_ms"`
	MinLatencyMs    float64 `json:"min_latency_ms" yaml:"min_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms" yaml:"max_latency_ms"`
	MeanLatencyMs   float64 `json:"mean_latency_ms" yaml:"mean_latency_ms"`
	P50LatencyMs    float64 `json:"p50_latency_ms" yaml:"p50_latency_ms"`
	P90LatencyMs    float64 `json:"p90_latency_ms" yaml:"p90_latency_ms"`
	P99LatencyMs    float64 `json:"p99_latency_ms" yaml:"p99_latency_ms"`
	DurationMs      float64 `json:"duration_ms" yaml:"duration_ms"`

	Memory MemoryStats `json:"memory" yaml:"memory"`
	GC     GCStats     `json:"gc" yaml:"gc"`
}

// MemoryStats summarizes system memory usage and the Go heap.
type MemoryStats struct {
	Samples      int     `json:"samples" yaml:"samples"`
	TotalBytes   uint64  `json:"total_bytes" yaml:"total_bytes"`
	MinUsedBytes uint64  `json:"min_used_bytes" yaml:"min_used_bytes"`
	MaxUsedBytes uint64  `json:"max_used_bytes" yaml:"max_used_bytes"`
	AvgUsedBytes float64 `json:"avg_used_bytes" yaml:"avg_used_bytes"`
	MinPercent   float64 `json:"min_percent" yaml:"min_percent"`
	MaxPercent   float64 `json:"max_percent" yaml:"max_percent"`
	AvgPercent   float64 `json:"avg_percent" yaml:"avg_percent"`
	MinHeapBytes uint64  `json:"min_heap_bytes" yaml:"min_heap_bytes"`
	MaxHeapBytes uint64  `json:"max_heap_bytes" yaml:"max_heap_bytes"`
	AvgHeapBytes float64 `json:"avg_heap_bytes" yaml:"avg_heap_bytes"`
}

// GCStats summarizes GC pauses overall and per kind.
type GCStats struct {
	PauseStats `yaml:",inline"`
	ByKind     map[string]PauseStats `json:"by_kind,omitempty" yaml:"by_kind,omitempty"`
}

// PauseStats aggregates a set of GC pauses.
type PauseStats struct {
	Count      int           `json:"count" yaml:"count"`
	TotalPause time.Duration `json:"-" yaml:"-"`
	MaxPause   time.Duration `json:"-" yaml:"-"`
	P99Pause   time.Duration `json:"-" yaml:"-"`

	TotalPauseMs float64 `json:"total_pause_ms" yaml:"total_pause_ms"`
	MaxPauseMs   float64 `json:"max_pause_ms" yaml:"max_pause_ms"`
	MeanPauseMs  float64 `json:"mean_pause_ms" yaml:"mean_pause_ms"`
	P99PauseMs   float64 `json:"p99_pause_ms" yaml:"p99_pause_ms"`
}

// Kinds returns the GC kinds present, sorted.
func (g GCStats) Kinds() []string {
	kinds := make([]string, 0, len(g.ByKind))
	for k := range g.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Summarize reduces s into a Summary.
func Summarize(s Series) Summary {
	classifier := probe.NewClassifier(s.SlowThreshold)
	summary := Summary{
		SlowThreshold: classifier.Threshold,
		Duration:      s.Duration,
	}

	if len(s.Latency) > 0 {
		hist := newLatencyHistogram()
		var sum time.Duration
		summary.MinLatency = s.Latency[0].Elapsed
		for _, sample := range s.Latency {
			summary.Iterations++
			if classifier.IsSlow(sample) {
				summary.SlowIterations++
			}
			if sample.Elapsed < summary.MinLatency {
				summary.MinLatency = sample.Elapsed
			}
			if sample.Elapsed > summary.MaxLatency {
				summary.MaxLatency = sample.Elapsed
			}
			sum += sample.Elapsed
			recordMicros(hist, sample.Elapsed)
		}
		summary.MeanLatency = time.Duration(int64(sum) / summary.Iterations)
		summary.P50Latency = quantile(hist, 50)
		summary.P90Latency = quantile(hist, 90)
		summary.P99Latency = quantile(hist, 99)
	}

	summary.SlowThresholdMs = toMs(summary.SlowThreshold)
	summary.MinLatencyMs = toMs(summary.MinLatency)
	summary.MaxLatencyMs = toMs(summary.MaxLatency)
	summary.MeanLatencyMs = toMs(summary.MeanLatency)
	summary.P50LatencyMs = toMs(summary.P50Latency)
	summary.P90LatencyMs = toMs(summary.P90Latency)
	summary.P99LatencyMs = toMs(summary.P99Latency)
	summary.DurationMs = toMs(summary.Duration)

	summary.Memory = summarizeMemory(s.Memory, s.TotalMemory)
	summary.GC = summarizeGC(s.GC)
	return summary
}

func summarizeMemory(samples []memsampler.Sample, total uint64) MemoryStats {
	stats := MemoryStats{Samples: len(samples), TotalBytes: total}
	if len(samples) == 0 {
		return stats
	}

	stats.MinUsedBytes = samples[0].Used
	stats.MinHeapBytes = samples[0].Heap
	var usedSum, heapSum float64
	for _, sample := range samples {
		if sample.Used < stats.MinUsedBytes {
			stats.MinUsedBytes = sample.Used
		}
		if sample.Used > stats.MaxUsedBytes {
			stats.MaxUsedBytes = sample.Used
		}
		if sample.Heap < stats.MinHeapBytes {
			stats.MinHeapBytes = sample.Heap
		}
		if sample.Heap > stats.MaxHeapBytes {
			stats.MaxHeapBytes = sample.Heap
		}
		usedSum += float64(sample.Used)
		heapSum += float64(sample.Heap)
	}
	stats.AvgUsedBytes = usedSum / float64(len(samples))
	stats.AvgHeapBytes = heapSum / float64(len(samples))

	if total > 0 {
		stats.MinPercent = percentOf(float64(stats.MinUsedBytes), total)
		stats.MaxPercent = percentOf(float64(stats.MaxUsedBytes), total)
		stats.AvgPercent = percentOf(stats.AvgUsedBytes, total)
	}
	return stats
}

func summarizeGC(events []gcmonitor.Event) GCStats {
	stats := GCStats{}
	if len(events) == 0 {
		return stats
	}

	overall := newPauseAccumulator()
	byKind := make(map[string]*pauseAccumulator)
	for _, ev := range events {
		overall.add(ev.Pause)
		acc, ok := byKind[string(ev.Kind)]
		if !ok {
			acc = newPauseAccumulator()
			byKind[string(ev.Kind)] = acc
		}
		acc.add(ev.Pause)
	}

	stats.PauseStats = overall.stats()
	stats.ByKind = make(map[string]PauseStats, len(byKind))
	for kind, acc := range byKind {
		stats.ByKind[kind] = acc.stats()
	}
	return stats
}

type pauseAccumulator struct {
	hist  *hdrhistogram.Histogram
	count int
	total time.Duration
	max   time.Duration
}

func newPauseAccumulator() *pauseAccumulator {
	return &pauseAccumulator{hist: newLatencyHistogram()}
}

func (p *pauseAccumulator) add(pause time.Duration) {
	p.count++
	p.total += pause
	if pause > p.max {
		p.max = pause
	}
	recordMicros(p.hist, pause)
}

func (p *pauseAccumulator) stats() PauseStats {
	ps := PauseStats{
		Count:      p.count,
		TotalPause: p.total,
		MaxPause:   p.max,
		P99Pause:   quantile(p.hist, 99),
	}
	ps.TotalPauseMs = toMs(ps.TotalPause)
	ps.MaxPauseMs = toMs(ps.MaxPause)
	ps.P99PauseMs = toMs(ps.P99Pause)
	if p.count > 0 {
		ps.MeanPauseMs = ps.TotalPauseMs / float64(p.count)
	}
	return ps
}

// newLatencyHistogram tracks values from 1µs up to 60s with 3 significant figures.
func newLatencyHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(1, 60_000_000, 3)
}

func recordMicros(h *hdrhistogram.Histogram, d time.Duration) {
	us := d.Microseconds()
	if us < h.LowestTrackableValue() {
		us = h.LowestTrackableValue()
	}
	if us > h.HighestTrackableValue() {
		us = h.HighestTrackableValue()
	}
	_ = h.RecordValue(us)
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	if h.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

func percentOf(v float64, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return v / float64(total) * 100
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
