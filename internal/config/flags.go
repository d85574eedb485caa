package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/torosent/gcpressure/internal/pressure"
	"github.com/torosent/gcpressure/internal/probe"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gcpressure [duration-seconds]",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Workload flags
	flags.String("document", "", "Path to the document deserialized by the probe (default: "+DefaultDocumentName+" next to the executable)")
	flags.String("format", "json", "Document format: json, yaml, gjson or protobuf")
	flags.String("proto-file", "", "Path to .proto file describing the document (protobuf format)")
	flags.String("proto-message", "", "Fully-qualified message name of the document (protobuf format)")

	// Run flags
	flags.DurationP("duration", "d", 0, "How long to run (e.g. 30s, 2m); the positional seconds argument takes precedence")
	flags.IntP("iterations", "n", 0, "Stop after this many probe iterations (0 means run for the full duration)")
	flags.Duration("slow-threshold", probe.DefaultSlowThreshold, "Latency above which a probe iteration is reported as slow")
	flags.Duration("sample-interval", 0, "Memory sampling interval (default 1s)")
	flags.Float64("probe-rate", 0, "Maximum probe iterations per second (0 means back-to-back)")
	flags.Int64("seed", 0, "Seed for allocation sizes and pauses (0 picks a random seed)")

	// Pressure flags
	flags.IntP("workers", "w", pressure.DefaultWorkers, "Concurrent allocation workers per burst")
	flags.Duration("burst-duration", pressure.DefaultBurstDuration, "Lifetime of each allocation burst")
	flags.String("min-alloc", humanize.IBytes(pressure.DefaultMinSize), "Smallest buffer allocated by a worker (e.g. 64KiB)")
	flags.String("max-alloc", humanize.IBytes(pressure.DefaultMaxSize), "Largest buffer allocated by a worker (e.g. 500MiB)")
	flags.Float64("pause-probability", pressure.DefaultPauseProbability, "Chance that a worker pauses after an allocation")
	flags.Duration("pause-duration", pressure.DefaultPauseDuration, "Length of a worker pause")

	// Output flags
	flags.Bool("json-output", false, "Emit the final report as JSON")
	flags.Bool("yaml-output", false, "Emit the final report as YAML")
	flags.String("report-file", "", "Also write the JSON report to this file")
	flags.String("html-output", "", "Write an HTML report with latency, memory and GC charts to this file")
	flags.String("parquet-output", "", "Write every latency, memory and GC observation to this Parquet file")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("progress", false, "Print periodic progress lines to stderr")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Upload flags
	flags.String("upload-bucket", "", "Upload written reports to this S3 bucket")
	flags.String("upload-prefix", "", "Key prefix for uploaded reports")
	flags.String("upload-endpoint", "", "Custom S3-compatible endpoint (e.g. MinIO or R2)")
	flags.String("upload-region", "", "Bucket region")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of runs to sample (0.0-1.0)")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("document") {
		val, err := fs.GetString("document")
		if err != nil {
			return err
		}
		cfg.DocumentPath = strings.TrimSpace(val)
	}
	if fs.Changed("format") {
		val, err := fs.GetString("format")
		if err != nil {
			return err
		}
		cfg.Format = workloadFormat(val)
	}
	if fs.Changed("proto-file") {
		val, err := fs.GetString("proto-file")
		if err != nil {
			return err
		}
		cfg.ProtoFile = strings.TrimSpace(val)
	}
	if fs.Changed("proto-message") {
		val, err := fs.GetString("proto-message")
		if err != nil {
			return err
		}
		cfg.ProtoMessage = strings.TrimSpace(val)
	}
	if fs.Changed("duration") {
		val, err := fs.GetDuration("duration")
		if err != nil {
			return err
		}
		cfg.Duration = val
	}
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
	}
	if fs.Changed("slow-threshold") {
		val, err := fs.GetDuration("slow-threshold")
		if err != nil {
			return err
		}
		cfg.SlowThreshold = val
	}
	if fs.Changed("sample-interval") {
		val, err := fs.GetDuration("sample-interval")
		if err != nil {
			return err
		}
		cfg.SampleInterval = val
	}
	if fs.Changed("probe-rate") {
		val, err := fs.GetFloat64("probe-rate")
		if err != nil {
			return err
		}
		cfg.ProbeRate = val
	}
	if fs.Changed("seed") {
		val, err := fs.GetInt64("seed")
		if err != nil {
			return err
		}
		cfg.Seed = val
	}
	if fs.Changed("workers") {
		val, err := fs.GetInt("workers")
		if err != nil {
			return err
		}
		cfg.Workers = val
	}
	if fs.Changed("burst-duration") {
		val, err := fs.GetDuration("burst-duration")
		if err != nil {
			return err
		}
		cfg.BurstDuration = val
	}
	if fs.Changed("min-alloc") {
		val, err := fs.GetString("min-alloc")
		if err != nil {
			return err
		}
		n, err := asBytes(val)
		if err != nil {
			return fmt.Errorf("min-alloc: %w", err)
		}
		cfg.MinAlloc = n
	}
	if fs.Changed("max-alloc") {
		val, err := fs.GetString("max-alloc")
		if err != nil {
			return err
		}
		n, err := asBytes(val)
		if err != nil {
			return fmt.Errorf("max-alloc: %w", err)
		}
		cfg.MaxAlloc = n
	}
	if fs.Changed("pause-probability") {
		val, err := fs.GetFloat64("pause-probability")
		if err != nil {
			return err
		}
		cfg.PauseProbability = val
	}
	if fs.Changed("pause-duration") {
		val, err := fs.GetDuration("pause-duration")
		if err != nil {
			return err
		}
		cfg.PauseDuration = val
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.JSONOutput = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.YAMLOutput = val
	}
	if fs.Changed("report-file") {
		val, err := fs.GetString("report-file")
		if err != nil {
			return err
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("parquet-output") {
		val, err := fs.GetString("parquet-output")
		if err != nil {
			return err
		}
		cfg.ParquetOutput = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Dashboard = val
	}
	if fs.Changed("progress") {
		val, err := fs.GetBool("progress")
		if err != nil {
			return err
		}
		cfg.Progress = val
	}
	if fs.Changed("metrics-addr") {
		val, err := fs.GetString("metrics-addr")
		if err != nil {
			return err
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}
	uploadFlags := map[string]*string{
		"upload-bucket":   &cfg.Upload.Bucket,
		"upload-prefix":   &cfg.Upload.Prefix,
		"upload-endpoint": &cfg.Upload.Endpoint,
		"upload-region":   &cfg.Upload.Region,
	}
	for name, dst := range uploadFlags {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetString(name)
		if err != nil {
			return err
		}
		*dst = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	return nil
}
