package dashboard

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/metrics"
)

// RunConfig holds run parameters for display.
type RunConfig struct {
	Document      string        // Path of the probed document
	Format        string        // Workload format
	Workers       int           // Pressure workers per burst
	BurstDuration time.Duration // Lifetime of each burst
	Duration      time.Duration // Run duration
	SlowThreshold time.Duration // Latency above which an iteration is slow
	ProbeRate     float64       // Max probe iterations per second (0 = back-to-back)
	ConfigFile    string        // Path to config file if used
}

// Dashboard renders a live terminal UI for a pressure run.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid           *ui.Grid
	latencySparkle *widgets.SparklineGroup
	latencyPara    *widgets.Paragraph
	memoryGauge    *widgets.Gauge
	heapPara       *widgets.Paragraph
	gcList         *widgets.List
	gcPara         *widgets.Paragraph
	summaryPara    *widgets.Paragraph
	latencyHistory []float64
	startTime      time.Time
	runConfig      RunConfig
}

// New creates a new Dashboard.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:      collector,
		ctx:            ctx,
		cancel:         cancel,
		shutdownFunc:   shutdownFunc,
		latencyHistory: make([]float64, 0, 100),
		startTime:      time.Now(),
		runConfig:      cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

// initWidgets initializes all dashboard widgets.
func (d *Dashboard) initWidgets() {
	sparkline := widgets.NewSparkline()
	sparkline.Title = "Deserialization (ms)"
	sparkline.LineColor = ui.ColorGreen
	sparkline.Data = []float64{0}

	d.latencySparkle = widgets.NewSparklineGroup(sparkline)
	d.latencySparkle.Title = "Probe Latency"
	d.latencySparkle.BorderStyle.Fg = ui.ColorCyan

	d.latencyPara = widgets.NewParagraph()
	d.latencyPara.Title = "Latency Stats"
	d.latencyPara.Text = "Min: 0ms\nMean: 0ms\nP99: 0ms\nMax: 0ms"
	d.latencyPara.BorderStyle.Fg = ui.ColorCyan

	d.memoryGauge = widgets.NewGauge()
	d.memoryGauge.Title = "System Memory"
	d.memoryGauge.Percent = 0
	d.memoryGauge.BarColor = ui.ColorBlue
	d.memoryGauge.BorderStyle.Fg = ui.ColorCyan
	d.memoryGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.heapPara = widgets.NewParagraph()
	d.heapPara.Title = "Heap"
	d.heapPara.Text = "Waiting for samples..."
	d.heapPara.BorderStyle.Fg = ui.ColorCyan

	d.gcList = widgets.NewList()
	d.gcList.Title = "Recent GC Cycles"
	d.gcList.Rows = []string{"No cycles yet"}
	d.gcList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.gcList.BorderStyle.Fg = ui.ColorCyan

	d.gcPara = widgets.NewParagraph()
	d.gcPara.Title = "Garbage Collection"
	d.gcPara.Text = "No cycles yet"
	d.gcPara.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Run Summary"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan
}

// setupGrid configures the layout grid.
func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.30,
			ui.NewCol(0.65, d.latencySparkle),
			ui.NewCol(0.35, d.latencyPara),
		),
		ui.NewRow(0.18,
			ui.NewCol(0.5, d.memoryGauge),
			ui.NewCol(0.5, d.heapPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.6, d.gcList),
			ui.NewCol(0.4, d.gcPara),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and cleans up.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

// run is the main dashboard update loop.
func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Do not return here; wait for Stop() to cancel context
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update(d.collector.Stats())
			d.render()
		}
	}
}

// update refreshes all widget data from a collector snapshot.
func (d *Dashboard) update(stats metrics.Stats) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if stats.Iterations > 0 {
		d.latencyHistory = append(d.latencyHistory, stats.LastLatencyMs)
		if len(d.latencyHistory) > 100 {
			d.latencyHistory = d.latencyHistory[1:]
		}
		d.latencySparkle.Sparklines[0].Data = d.latencyHistory
		d.latencySparkle.Title = fmt.Sprintf(
			"Probe Latency | Last: %.0fms | Threshold: %s",
			stats.LastLatencyMs,
			d.runConfig.SlowThreshold,
		)
	}

	slowPct := 0.0
	if stats.Iterations > 0 {
		slowPct = float64(stats.SlowIterations) / float64(stats.Iterations) * 100
	}

	params := d.formatRunParams()
	d.summaryPara.Text = fmt.Sprintf(
		"Document: %s\n%s\nElapsed: %s | Iterations: %d | Slow: %d (%.1f%%) | Bursts: %d",
		d.runConfig.Document,
		params,
		stats.Elapsed.Round(time.Second),
		stats.Iterations,
		stats.SlowIterations,
		slowPct,
		stats.Bursts,
	)

	d.latencyPara.Text = fmt.Sprintf(
		"Min:  %.2fms\nMean: %.2fms\nP99:  %.2fms\nMax:  %.2fms\nRate: %.1f/s",
		stats.MinLatencyMs,
		stats.MeanLatencyMs,
		stats.P99LatencyMs,
		stats.MaxLatencyMs,
		stats.IterationsPerS,
	)

	d.updateMemory(stats)
	d.gcList.Rows = formatGCRows(stats.RecentGC)
	d.gcPara.Text = formatGCTotals(stats)
}

// render draws all widgets to the screen.
func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

func (d *Dashboard) updateMemory(stats metrics.Stats) {
	if stats.MemoryTotal == 0 {
		d.memoryGauge.Percent = 0
		d.memoryGauge.Label = "n/a"
	} else {
		pct := int(stats.MemoryPercent())
		if pct > 100 {
			pct = 100
		}
		d.memoryGauge.Percent = pct
		d.memoryGauge.Label = fmt.Sprintf("%s / %s (%d%%)",
			humanize.IBytes(stats.MemoryUsed),
			humanize.IBytes(stats.MemoryTotal),
			pct,
		)
		if pct >= 90 {
			d.memoryGauge.BarColor = ui.ColorRed
		} else {
			d.memoryGauge.BarColor = ui.ColorBlue
		}
	}
	if stats.HeapBytes == 0 {
		d.heapPara.Text = "Waiting for samples..."
		return
	}
	d.heapPara.Text = fmt.Sprintf("Heap objects: %s", humanize.IBytes(stats.HeapBytes))
}

// formatGCRows renders recent cycles newest first.
func formatGCRows(events []gcmonitor.Event) []string {
	if len(events) == 0 {
		return []string{"[No cycles yet](fg:green)"}
	}
	rows := make([]string, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		color := "yellow"
		if ev.Kind == gcmonitor.KindForced {
			color = "magenta"
		}
		rows = append(rows, fmt.Sprintf("#%-5d [%-9s](fg:%s) pause %7.3fms  goal %s",
			ev.Cycle,
			ev.Kind,
			color,
			float64(ev.Pause.Microseconds())/1000,
			humanize.IBytes(ev.HeapGoal),
		))
	}
	return rows
}

func formatGCTotals(stats metrics.Stats) string {
	if stats.GCCycles == 0 {
		return "[No cycles yet](fg:green)"
	}
	lines := []string{
		fmt.Sprintf("Cycles:      %d", stats.GCCycles),
		fmt.Sprintf("Total pause: %.2fms", float64(stats.GCTotalPause.Microseconds())/1000),
		fmt.Sprintf("Max pause:   %.2fms", float64(stats.GCMaxPause.Microseconds())/1000),
	}
	kinds := make([]string, 0, len(stats.GCByKind))
	for kind := range stats.GCByKind {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		lines = append(lines, fmt.Sprintf("  [%s:](fg:cyan) %d", kind, stats.GCByKind[kind]))
	}
	return joinLines(lines)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	result := lines[0]
	for i := 1; i < len(lines); i++ {
		result += "\n" + lines[i]
	}
	return result
}

// formatRunParams formats the run configuration for display.
func (d *Dashboard) formatRunParams() string {
	var parts []string

	if d.runConfig.Format != "" && d.runConfig.Format != "json" {
		parts = append(parts, fmt.Sprintf("Format: %s", d.runConfig.Format))
	}

	if d.runConfig.Workers > 0 {
		parts = append(parts, fmt.Sprintf("Workers: %d", d.runConfig.Workers))
	}

	if d.runConfig.BurstDuration > 0 {
		parts = append(parts, fmt.Sprintf("Burst: %s", d.runConfig.BurstDuration))
	}

	if d.runConfig.ProbeRate > 0 {
		parts = append(parts, fmt.Sprintf("Rate: %g/s", d.runConfig.ProbeRate))
	} else {
		parts = append(parts, "Rate: back-to-back")
	}

	if d.runConfig.Duration > 0 {
		parts = append(parts, fmt.Sprintf("Duration: %s", d.runConfig.Duration))
	}

	if d.runConfig.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", d.runConfig.ConfigFile))
	}

	if len(parts) == 0 {
		return ""
	}

	return strings.Join(parts, " | ")
}
