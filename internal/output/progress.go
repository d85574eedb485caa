package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/torosent/gcpressure/internal/metrics"
)

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	ticker    *time.Ticker
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
}

// NewProgressReporter creates a progress reporter that updates at the given interval.
func NewProgressReporter(collector *metrics.Collector, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	return &ProgressReporter{
		collector: collector,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		p.ticker.Stop()
		<-p.finished
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	for {
		select {
		case <-p.ticker.C:
			fmt.Fprint(p.writer, "\r"+FormatProgress(p.collector.Stats()))
		case <-p.done:
			return
		}
	}
}

// FormatProgress renders a single progress line.
func FormatProgress(stats metrics.Stats) string {
	line := fmt.Sprintf("Iterations: %d | Slow: %d | Last: %.1fms | P99: %.1fms | GC: %d",
		stats.Iterations, stats.SlowIterations, stats.LastLatencyMs, stats.P99LatencyMs, stats.GCCycles)
	if stats.MemoryTotal > 0 {
		line += fmt.Sprintf(" | Mem: %s (%.0f%%)", humanize.IBytes(stats.MemoryUsed), stats.MemoryPercent())
	}
	if stats.HeapBytes > 0 {
		line += fmt.Sprintf(" | Heap: %s", humanize.IBytes(stats.HeapBytes))
	}
	return line
}
