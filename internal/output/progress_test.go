package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/probe"
)

func TestFormatProgress(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.SetTotalMemory(8 << 30)
	collector.RecordMemory(memsampler.Sample{Timestamp: time.Now(), Used: 2 << 30, Heap: 100 << 20})
	collector.RecordLatency(probe.Sample{Elapsed: 12 * time.Millisecond}, false)
	collector.RecordLatency(probe.Sample{Elapsed: 350 * time.Millisecond}, true)

	line := FormatProgress(collector.Stats())
	for _, want := range []string{"Iterations: 2", "Slow: 1", "Last: 350.0ms", "Mem: 2.0 GiB (25%)", "Heap: 100 MiB"} {
		if !strings.Contains(line, want) {
			t.Errorf("progress line missing %q: %s", want, line)
		}
	}
}

func TestFormatProgressWithoutMemory(t *testing.T) {
	line := FormatProgress(metrics.Stats{Iterations: 3})
	if strings.Contains(line, "Mem:") || strings.Contains(line, "Heap:") {
		t.Errorf("unexpected memory fields: %s", line)
	}
}

func TestProgressReporterBasic(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()

	var buf bytes.Buffer
	reporter := NewProgressReporter(collector, 100*time.Millisecond, &buf)

	if reporter == nil {
		t.Fatal("Expected non-nil reporter")
	}

	// Stop before Start is a no-op.
	reporter.Stop()
}

func TestProgressReporterFormatting(t *testing.T) {
	collector := metrics.NewCollector()
	collector.Start()
	collector.RecordLatency(probe.Sample{Elapsed: 50 * time.Millisecond}, false)

	var buf syncBuffer
	reporter := NewProgressReporter(collector, 50*time.Millisecond, &buf)
	reporter.Start()
	reporter.Start()

	time.Sleep(120 * time.Millisecond)
	reporter.Stop()
	reporter.Stop()

	output := buf.String()
	if !strings.Contains(output, "Iterations: 1") {
		t.Errorf("Expected 'Iterations: 1' in progress output, got %q", output)
	}
}
