package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/torosent/gcpressure/internal/metrics"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt string
	Summary     metrics.Summary
	Metadata    ReportMetadata
	LatencyJSON string
	MemoryJSON  string
	GCJSON      string
	HasSeries   bool
}

// ReportMetadata describes the run that produced a report.
type ReportMetadata struct {
	RunID    string
	Document string
	Format   string
	Workers  int
	Started  time.Time
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts
// of the latency, memory and GC series.
func GenerateHTMLReport(w io.Writer, summary metrics.Summary, series metrics.Series, metadata ReportMetadata) error {
	origin := metadata.Started
	if origin.IsZero() && len(series.Latency) > 0 {
		origin = series.Latency[0].Start
	}

	latency := [2][]float64{}
	for _, s := range series.Latency {
		latency[0] = append(latency[0], offsetSeconds(origin, s.Start))
		latency[1] = append(latency[1], s.ElapsedMs())
	}
	memory := [3][]float64{}
	for _, s := range series.Memory {
		memory[0] = append(memory[0], offsetSeconds(origin, s.Timestamp))
		pct := 0.0
		if series.TotalMemory > 0 {
			pct = float64(s.Used) / float64(series.TotalMemory) * 100
		}
		memory[1] = append(memory[1], pct)
		memory[2] = append(memory[2], float64(s.Heap)/(1<<20))
	}
	gc := [2][]float64{}
	for _, ev := range series.GC {
		gc[0] = append(gc[0], offsetSeconds(origin, ev.Timestamp))
		gc[1] = append(gc[1], float64(ev.Pause)/float64(time.Millisecond))
	}

	latencyJSON, err := json.Marshal(latency)
	if err != nil {
		return fmt.Errorf("failed to marshal latency series: %w", err)
	}
	memoryJSON, err := json.Marshal(memory)
	if err != nil {
		return fmt.Errorf("failed to marshal memory series: %w", err)
	}
	gcJSON, err := json.Marshal(gc)
	if err != nil {
		return fmt.Errorf("failed to marshal gc series: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt: time.Now().Format(time.RFC3339),
		Summary:     summary,
		Metadata:    metadata,
		LatencyJSON: string(latencyJSON),
		MemoryJSON:  string(memoryJSON),
		GCJSON:      string(gcJSON),
		HasSeries:   len(series.Latency) > 0,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"formatDuration": func(d time.Duration) string {
			return d.Round(time.Millisecond).String()
		},
		"formatMs": func(f float64) string {
			return fmt.Sprintf("%.2f ms", f)
		},
		"formatBytes": func(b uint64) string {
			return humanize.IBytes(b)
		},
		"formatPercent": func(part, total int64) string {
			if total == 0 {
				return "0.0"
			}
			return fmt.Sprintf("%.1f", (float64(part)/float64(total))*100)
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

func offsetSeconds(origin, t time.Time) float64 {
	if origin.IsZero() {
		return 0
	}
	return t.Sub(origin).Seconds()
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>gcpressure Run Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif;
            background: #f4f5f7;
            color: #1f2933;
            line-height: 1.5;
            padding: 24px;
        }
        .container { max-width: 1280px; margin: 0 auto; background: #fff; border-radius: 6px; overflow: hidden; }
        header { background: #22313f; color: #fff; padding: 24px 32px; }
        header h1 { font-size: 1.6rem; }
        header .meta { font-size: 0.85rem; opacity: 0.85; }
        .content { padding: 32px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 16px; margin-bottom: 32px; }
        .card { background: #f8f9fa; border-radius: 6px; padding: 16px; border-left: 4px solid #3b82f6; }
        .card.slow { border-left-color: #ef4444; }
        .card h3 { font-size: 0.8rem; color: #6b7280; text-transform: uppercase; }
        .card .value { font-size: 1.7rem; font-weight: bold; }
        .card .subvalue { font-size: 0.8rem; color: #6b7280; }
        .section { margin-bottom: 32px; }
        .section h2 { font-size: 1.2rem; margin-bottom: 12px; }
        .chart { min-height: 280px; margin-bottom: 24px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid #e5e7eb; }
        th { background: #f3f4f6; font-size: 0.8rem; text-transform: uppercase; }
        .no-data { color: #6b7280; font-style: italic; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>gcpressure Run Report</h1>
            {{if .Metadata.RunID}}<div class="meta">Run: {{.Metadata.RunID}}</div>{{end}}
            {{if .Metadata.Document}}<div class="meta">Document: {{.Metadata.Document}} ({{.Metadata.Format}}){{if .Metadata.Workers}}, {{.Metadata.Workers}} pressure workers{{end}}</div>{{end}}
            <div class="meta">Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Summary.Duration}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Iterations</h3>
                    <div class="value">{{.Summary.Iterations}}</div>
                </div>
                <div class="card slow">
                    <h3>Slow Iterations</h3>
                    <div class="value">{{.Summary.SlowIterations}}</div>
                    <div class="subvalue">{{formatPercent .Summary.SlowIterations .Summary.Iterations}}% above {{formatDuration .Summary.SlowThreshold}}</div>
                </div>
                <div class="card">
                    <h3>Max Latency</h3>
                    <div class="value">{{formatMs .Summary.MaxLatencyMs}}</div>
                    <div class="subvalue">P99 {{formatMs .Summary.P99LatencyMs}}</div>
                </div>
                <div class="card">
                    <h3>GC Cycles</h3>
                    <div class="value">{{.Summary.GC.Count}}</div>
                    <div class="subvalue">max pause {{formatMs .Summary.GC.MaxPauseMs}}</div>
                </div>
            </div>

            {{if .HasSeries}}
            <div class="section">
                <h2>Over Time</h2>
                <div id="latency-chart" class="chart"></div>
                <div id="memory-chart" class="chart"></div>
                <div id="gc-chart" class="chart"></div>
            </div>
            {{end}}

            <div class="section">
                <h2>Latency</h2>
                <table>
                    <tr><th>Min</th><th>Mean</th><th>P50</th><th>P90</th><th>P99</th><th>Max</th></tr>
                    <tr>
                        <td>{{formatMs .Summary.MinLatencyMs}}</td>
                        <td>{{formatMs .Summary.MeanLatencyMs}}</td>
                        <td>{{formatMs .Summary.P50LatencyMs}}</td>
                        <td>{{formatMs .Summary.P90LatencyMs}}</td>
                        <td>{{formatMs .Summary.P99LatencyMs}}</td>
                        <td>{{formatMs .Summary.MaxLatencyMs}}</td>
                    </tr>
                </table>
            </div>

            <div class="section">
                <h2>Memory</h2>
                {{if .Summary.Memory.Samples}}
                <table>
                    <tr><th></th><th>Min</th><th>Avg</th><th>Max</th></tr>
                    <tr>
                        <td>System used of {{formatBytes .Summary.Memory.TotalBytes}}</td>
                        <td>{{formatBytes .Summary.Memory.MinUsedBytes}}</td>
                        <td>{{printf "%.1f" .Summary.Memory.AvgPercent}}%</td>
                        <td>{{formatBytes .Summary.Memory.MaxUsedBytes}}</td>
                    </tr>
                    <tr>
                        <td>Go heap</td>
                        <td>{{formatBytes .Summary.Memory.MinHeapBytes}}</td>
                        <td>{{printf "%.0f" .Summary.Memory.AvgHeapBytes}} B</td>
                        <td>{{formatBytes .Summary.Memory.MaxHeapBytes}}</td>
                    </tr>
                </table>
                {{else}}
                <p class="no-data">No memory samples collected.</p>
                {{end}}
            </div>

            <div class="section">
                <h2>Garbage Collection</h2>
                {{if .Summary.GC.Count}}
                <table>
                    <tr><th>Kind</th><th>Cycles</th><th>Total Pause</th><th>Max Pause</th><th>P99 Pause</th></tr>
                    {{range .Summary.GC.Kinds}}
                    {{$ps := index $.Summary.GC.ByKind .}}
                    <tr>
                        <td><strong>{{.}}</strong></td>
                        <td>{{$ps.Count}}</td>
                        <td>{{formatMs $ps.TotalPauseMs}}</td>
                        <td>{{formatMs $ps.MaxPauseMs}}</td>
                        <td>{{formatMs $ps.P99PauseMs}}</td>
                    </tr>
                    {{end}}
                </table>
                {{else}}
                <p class="no-data">No GC cycles observed.</p>
                {{end}}
            </div>
        </div>
    </div>

    {{if .HasSeries}}
    <script>
        const latency = JSON.parse({{.LatencyJSON}});
        const memory = JSON.parse({{.MemoryJSON}});
        const gc = JSON.parse({{.GCJSON}});

        function plot(id, title, series, data, yLabel) {
            const el = document.getElementById(id);
            new uPlot({
                title: title,
                width: el.offsetWidth,
                height: 280,
                scales: { x: { time: false } },
                series: [{ label: "Time (s)" }].concat(series),
                axes: [{ label: "Time (seconds)" }, { label: yLabel }]
            }, data, el);
        }

        plot("latency-chart", "Deserialization Latency", [
            { label: "Latency", stroke: "#3b82f6", width: 1, points: { show: false } }
        ], latency, "ms");

        if (memory[0] && memory[0].length > 0) {
            plot("memory-chart", "Memory", [
                { label: "System used %", stroke: "#10b981", width: 2 },
                { label: "Go heap MiB", stroke: "#f59e0b", width: 2 }
            ], memory, "% / MiB");
        }

        if (gc[0] && gc[0].length > 0) {
            plot("gc-chart", "GC Pauses", [
                { label: "Pause", stroke: "#ef4444", width: 0, points: { show: true, size: 6 } }
            ], gc, "ms");
        }
    </script>
    {{end}}
</body>
</html>
`
