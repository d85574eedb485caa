package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"

	"github.com/torosent/gcpressure/internal/metrics"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#8BE9FD"))
	sectionStyle = lipgloss.NewStyle().Bold(true)
	slowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

// PrintReport outputs a human-readable summary report.
func PrintReport(w io.Writer, runID string, s metrics.Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, headingStyle.Render("--- GC Pressure Results ---"))
	if runID != "" {
		fmt.Fprintf(w, "Run ID:            %s\n", runID)
	}
	fmt.Fprintf(w, "Duration:          %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Iterations:        %d\n", s.Iterations)

	slow := fmt.Sprintf("%d", s.SlowIterations)
	if s.SlowIterations > 0 {
		slow = slowStyle.Render(slow)
	}
	fmt.Fprintf(w, "Slow (> %s):    %s (%.1f%%)\n", s.SlowThreshold, slow, slowShare(s))

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("Latency:"))
	fmt.Fprintf(w, "  Min:             %s\n", formatMs(s.MinLatencyMs))
	fmt.Fprintf(w, "  Max:             %s\n", formatMs(s.MaxLatencyMs))
	fmt.Fprintf(w, "  Mean:            %s\n", formatMs(s.MeanLatencyMs))
	fmt.Fprintf(w, "  P50:             %s\n", formatMs(s.P50LatencyMs))
	fmt.Fprintf(w, "  P90:             %s\n", formatMs(s.P90LatencyMs))
	fmt.Fprintf(w, "  P99:             %s\n", formatMs(s.P99LatencyMs))

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("Memory:"))
	writeMemory(w, s.Memory)

	fmt.Fprintln(w)
	fmt.Fprintln(w, sectionStyle.Render("Garbage Collection:"))
	writeGC(w, s.GC)
}

func writeMemory(w io.Writer, m metrics.MemoryStats) {
	if m.Samples == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("no samples collected"))
		return
	}
	fmt.Fprintf(w, "  Samples:         %d\n", m.Samples)
	fmt.Fprintf(w, "  Total:           %s\n", humanize.IBytes(m.TotalBytes))
	fmt.Fprintf(w, "  Used Min:        %s (%.1f%%)\n", humanize.IBytes(m.MinUsedBytes), m.MinPercent)
	fmt.Fprintf(w, "  Used Max:        %s (%.1f%%)\n", humanize.IBytes(m.MaxUsedBytes), m.MaxPercent)
	fmt.Fprintf(w, "  Used Avg:        %s (%.1f%%)\n", humanize.IBytes(uint64(m.AvgUsedBytes)), m.AvgPercent)
	fmt.Fprintf(w, "  Go Heap Min:     %s\n", humanize.IBytes(m.MinHeapBytes))
	fmt.Fprintf(w, "  Go Heap Max:     %s\n", humanize.IBytes(m.MaxHeapBytes))
	fmt.Fprintf(w, "  Go Heap Avg:     %s\n", humanize.IBytes(uint64(m.AvgHeapBytes)))
}

func writeGC(w io.Writer, g metrics.GCStats) {
	if g.Count == 0 {
		fmt.Fprintf(w, "  %s\n", dimStyle.Render("no cycles observed"))
		return
	}
	fmt.Fprintf(w, "  Cycles:          %d\n", g.Count)
	fmt.Fprintf(w, "  Total Pause:     %s\n", formatMs(g.TotalPauseMs))
	fmt.Fprintf(w, "  Max Pause:       %s\n", formatMs(g.MaxPauseMs))
	fmt.Fprintf(w, "  Mean Pause:      %s\n", formatMs(g.MeanPauseMs))
	fmt.Fprintf(w, "  P99 Pause:       %s\n", formatMs(g.P99PauseMs))
	for _, kind := range g.Kinds() {
		ps := g.ByKind[kind]
		fmt.Fprintf(w, "  - %s: cycles=%d, total=%s, max=%s, p99=%s\n",
			kind, ps.Count, formatMs(ps.TotalPauseMs), formatMs(ps.MaxPauseMs), formatMs(ps.P99PauseMs))
	}
}

func slowShare(s metrics.Summary) float64 {
	if s.Iterations == 0 {
		return 0
	}
	return float64(s.SlowIterations) / float64(s.Iterations) * 100
}

func formatMs(ms float64) string {
	return fmt.Sprintf("%.3f ms", ms)
}

// PrintJSONReport outputs a JSON-formatted report.
func PrintJSONReport(w io.Writer, report interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// PrintYAMLReport outputs a YAML-formatted report.
func PrintYAMLReport(w io.Writer, report interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}

// WriteReportFile writes report as JSON to path while holding an advisory
// lock on path + ".lock", so concurrent runs sharing a report path do not
// interleave their output.
func WriteReportFile(path string, report interface{}) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock report file: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := PrintJSONReport(f, report); err != nil {
		f.Close()
		return fmt.Errorf("write report file: %w", err)
	}
	return f.Close()
}
