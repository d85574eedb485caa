package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/probe"
)

func sampleSummary() metrics.Summary {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return metrics.Summarize(metrics.Series{
		Latency: []probe.Sample{
			{Start: base, End: base.Add(20 * time.Millisecond), Elapsed: 20 * time.Millisecond},
			{Start: base, End: base.Add(400 * time.Millisecond), Elapsed: 400 * time.Millisecond},
		},
		Memory: []memsampler.Sample{
			{Timestamp: base, Used: 4 << 30, Heap: 64 << 20},
			{Timestamp: base.Add(time.Second), Used: 6 << 30, Heap: 512 << 20},
		},
		TotalMemory: 16 << 30,
		GC: []gcmonitor.Event{
			{Timestamp: base, Cycle: 1, Kind: gcmonitor.KindAutomatic, Pause: 300 * time.Microsecond},
			{Timestamp: base, Cycle: 2, Kind: gcmonitor.KindForced, Pause: time.Millisecond},
		},
		Duration: 2 * time.Second,
	})
}

func TestPrintReportBasic(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, "01HQRUNID", sampleSummary())

	output := buf.String()
	for _, want := range []string{
		"GC Pressure Results",
		"Run ID:",
		"01HQRUNID",
		"Iterations:        2",
		"(50.0%)",
		"400.000 ms",
		"16 GiB",
		"Cycles:          2",
		"- automatic: cycles=1",
		"- forced: cycles=1",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("report missing %q:\n%s", want, output)
		}
	}
}

func TestPrintReportWithoutMemoryOrGC(t *testing.T) {
	var buf bytes.Buffer
	PrintReport(&buf, "", metrics.Summarize(metrics.Series{}))

	output := buf.String()
	if strings.Contains(output, "Run ID:") {
		t.Errorf("expected no run id line")
	}
	if !strings.Contains(output, "no samples collected") {
		t.Errorf("expected empty memory notice")
	}
	if !strings.Contains(output, "no cycles observed") {
		t.Errorf("expected empty gc notice")
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, sampleSummary()); err != nil {
		t.Fatalf("PrintJSONReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["slow_iterations"] != float64(1) {
		t.Errorf("slow_iterations = %v, want 1", decoded["slow_iterations"])
	}
	gc, ok := decoded["gc"].(map[string]interface{})
	if !ok {
		t.Fatalf("gc section missing")
	}
	if _, ok := gc["by_kind"]; !ok {
		t.Errorf("expected by_kind in gc section")
	}
}

func TestPrintYAMLReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintYAMLReport(&buf, sampleSummary()); err != nil {
		t.Fatalf("PrintYAMLReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if decoded["iterations"] != 2 {
		t.Errorf("iterations = %v, want 2", decoded["iterations"])
	}
	if !strings.Contains(buf.String(), "max_latency_ms: 400") {
		t.Errorf("expected max_latency_ms in YAML:\n%s", buf.String())
	}
}

func TestWriteReportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "report.json")
	if err := WriteReportFile(path, sampleSummary()); err != nil {
		t.Fatalf("WriteReportFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded metrics.Summary
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Iterations != 2 {
		t.Errorf("Iterations = %d, want 2", decoded.Iterations)
	}

	// A second write replaces the first.
	if err := WriteReportFile(path, metrics.Summarize(metrics.Series{})); err != nil {
		t.Fatalf("second WriteReportFile failed: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), `"iterations": 0`) {
		t.Errorf("expected replaced report, got:\n%s", data)
	}
}
