package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/torosent/gcpressure/internal/config"
	"github.com/torosent/gcpressure/internal/dashboard"
	"github.com/torosent/gcpressure/internal/livefeed"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/output"
	"github.com/torosent/gcpressure/internal/pressure"
	"github.com/torosent/gcpressure/internal/probe"
	"github.com/torosent/gcpressure/internal/promexport"
	"github.com/torosent/gcpressure/internal/runner"
	"github.com/torosent/gcpressure/internal/storage"
	"github.com/torosent/gcpressure/internal/tracing"
	"github.com/torosent/gcpressure/internal/workload"
)

const (
	progressInterval = time.Second
	uploadTimeout    = 2 * time.Minute
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(args) > 0 {
		switch args[0] {
		case "generate-document":
			return runGenerateDocument(args[1:], os.Stdout)
		case "watch":
			return runWatch(ctx, args[1:], os.Stdout)
		}
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return runPressure(ctx, cfg, os.Stdout, os.Stderr)
}

// runPressure loads the workload, performs one run and writes every
// requested report.
func runPressure(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	w, err := workload.Load(cfg.DocumentPath, workload.Options{
		Format:       cfg.Format,
		ProtoFile:    cfg.ProtoFile,
		ProtoMessage: cfg.ProtoMessage,
	})
	if err != nil {
		return err
	}

	logger := output.NewLogger(stderr)

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("tracing shutdown: %v", err)
		}
	}()

	collector := metrics.NewCollector()
	observers := []runner.Observer{collector}

	if cfg.MetricsAddr != "" {
		exporter := promexport.New()
		observers = append(observers, exporter)

		hub := livefeed.NewHub(collector, livefeed.DefaultInterval)
		hub.Start()
		defer hub.Stop()

		mux := http.NewServeMux()
		mux.Handle("/metrics", exporter.Handler())
		mux.Handle("/live", hub.Handler())

		serveCtx, stopServe := context.WithCancel(context.Background())
		defer stopServe()
		go func() {
			if err := promexport.ListenAndServe(serveCtx, cfg.MetricsAddr, mux); err != nil {
				logger.Warnf("metrics server: %v", err)
			}
		}()
	}

	// Slow lines go to stdout unless stdout carries a structured report or
	// the dashboard owns the terminal.
	var slowOut io.Writer = stdout
	var deferredSlow *bytes.Buffer
	switch {
	case cfg.Dashboard:
		deferredSlow = &bytes.Buffer{}
		slowOut = deferredSlow
	case cfg.JSONOutput || cfg.YAMLOutput:
		slowOut = stderr
	}

	pressureOpts := pressure.Options{
		Workers:          cfg.Workers,
		BurstDuration:    cfg.BurstDuration,
		MinSize:          int(cfg.MinAlloc),
		MaxSize:          int(cfg.MaxAlloc),
		PauseProbability: cfg.PauseProbability,
		PauseDuration:    cfg.PauseDuration,
		Seed:             cfg.Seed,
	}

	ctrl := runner.New(runner.Options{
		Workload:       w,
		Duration:       cfg.Duration,
		MaxIterations:  cfg.Iterations,
		SlowThreshold:  cfg.SlowThreshold,
		Pressure:       pressureOpts,
		SampleInterval: cfg.SampleInterval,
		ProbeRate:      cfg.ProbeRate,
		SlowLogger:     output.NewSlowSampleWriter(slowOut),
		Observers:      observers,
		Logger:         logger,
		Tracer:         tp.Tracer(),
	})

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboardConfig(cfg), stopRun)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if cfg.Progress && !cfg.Dashboard {
		progress = output.NewProgressReporter(collector, progressInterval, stderr)
		progress.Start()
	}

	collector.Start()
	report, runErr := ctrl.Run(runCtx)

	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}
	if deferredSlow != nil {
		_, _ = io.Copy(stdout, deferredSlow)
	}

	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}

	switch {
	case cfg.JSONOutput:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case cfg.YAMLOutput:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report.RunID, report.Summary)
	}

	if err := writeArtifacts(cfg, report); err != nil {
		return err
	}

	if cfg.Upload.Enabled() {
		uploadCtx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()
		if err := uploadArtifacts(uploadCtx, cfg, report.RunID, logger); err != nil {
			return err
		}
	}
	return nil
}

// writeArtifacts writes the report file, HTML report and Parquet series that
// cfg asks for.
func writeArtifacts(cfg *config.Config, report runner.Report) error {
	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(cfg.ReportFile, report); err != nil {
			return fmt.Errorf("write report file: %w", err)
		}
	}

	if cfg.HTMLOutput != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.HTMLOutput), 0o755); err != nil {
			return fmt.Errorf("create HTML report directory: %w", err)
		}
		f, err := os.Create(cfg.HTMLOutput)
		if err != nil {
			return fmt.Errorf("create HTML report: %w", err)
		}
		genErr := output.GenerateHTMLReport(f, report.Summary, report.Series, output.ReportMetadata{
			RunID:    report.RunID,
			Document: cfg.DocumentPath,
			Format:   string(cfg.Format),
			Workers:  effectiveWorkers(cfg),
			Started:  report.Started,
		})
		closeErr := f.Close()
		if genErr != nil {
			return genErr
		}
		if closeErr != nil {
			return fmt.Errorf("close HTML report: %w", closeErr)
		}
	}

	if cfg.ParquetOutput != "" {
		if err := storage.WriteSeries(cfg.ParquetOutput, report.RunID,
			report.Series.Latency,
			probe.NewClassifier(report.Summary.SlowThreshold).IsSlow,
			report.Series.Memory,
			report.Series.GC,
		); err != nil {
			return fmt.Errorf("write parquet series: %w", err)
		}
	}
	return nil
}

func uploadArtifacts(ctx context.Context, cfg *config.Config, runID string, logger *output.Logger) error {
	uploader, err := storage.NewUploader(ctx, storage.UploadConfig{
		Bucket:   cfg.Upload.Bucket,
		Prefix:   cfg.Upload.Prefix,
		Endpoint: cfg.Upload.Endpoint,
		Region:   cfg.Upload.Region,
	})
	if err != nil {
		return err
	}
	for _, path := range cfg.Artifacts() {
		key, err := uploader.UploadFile(ctx, runID, path)
		if err != nil {
			return fmt.Errorf("upload %s: %w", path, err)
		}
		logger.Infof("uploaded %s to s3://%s/%s", path, cfg.Upload.Bucket, key)
	}
	return nil
}

func effectiveWorkers(cfg *config.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return pressure.DefaultWorkers
}

func dashboardConfig(cfg *config.Config) dashboard.RunConfig {
	return dashboard.RunConfig{
		Document:      cfg.DocumentPath,
		Format:        string(cfg.Format),
		Workers:       effectiveWorkers(cfg),
		BurstDuration: cfg.BurstDuration,
		Duration:      cfg.Duration,
		SlowThreshold: probe.NewClassifier(cfg.SlowThreshold).Threshold,
		ProbeRate:     cfg.ProbeRate,
		ConfigFile:    cfg.ConfigFile,
	}
}
