package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/torosent/gcpressure/internal/workload"
)

// DefaultDuration is used when no duration argument or setting is given.
const DefaultDuration = 60 * time.Second

// DefaultDocumentName is the workload document looked up next to the executable.
const DefaultDocumentName = "StressTestDocument_300KB.json"

type Config struct {
	Duration         time.Duration   `mapstructure:"duration"`
	Iterations       int             `mapstructure:"iterations"`
	DocumentPath     string          `mapstructure:"document"`
	Format           workload.Format `mapstructure:"format"`
	ProtoFile        string          `mapstructure:"proto_file"`
	ProtoMessage     string          `mapstructure:"proto_message"`
	Workers          int             `mapstructure:"workers"`
	BurstDuration    time.Duration   `mapstructure:"burst_duration"`
	MinAlloc         int64           `mapstructure:"min_alloc"`
	MaxAlloc         int64           `mapstructure:"max_alloc"`
	PauseProbability float64         `mapstructure:"pause_probability"`
	PauseDuration    time.Duration   `mapstructure:"pause_duration"`
	SlowThreshold    time.Duration   `mapstructure:"slow_threshold"`
	SampleInterval   time.Duration   `mapstructure:"sample_interval"`
	ProbeRate        float64         `mapstructure:"probe_rate"`
	Seed             int64           `mapstructure:"seed"`
	JSONOutput       bool            `mapstructure:"json_output"`
	YAMLOutput       bool            `mapstructure:"yaml_output"`
	ReportFile       string          `mapstructure:"report_file"`
	HTMLOutput       string          `mapstructure:"html_output"`
	ParquetOutput    string          `mapstructure:"parquet_output"`
	Dashboard        bool            `mapstructure:"dashboard"`
	Progress         bool            `mapstructure:"progress"`
	MetricsAddr      string          `mapstructure:"metrics_addr"`
	Tracing          TracingConfig   `mapstructure:"tracing"`
	Upload           UploadConfig    `mapstructure:"upload"`
	ConfigFile       string          `mapstructure:"-"`
}

// TracingConfig controls the OTLP span exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"`
	ServiceName string  `mapstructure:"service_name"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// Enabled reports whether spans should be exported.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != ""
}

// UploadConfig selects an S3-compatible bucket that receives run artifacts.
// Credentials come from the AWS default chain.
type UploadConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
}

// Enabled reports whether artifacts should be uploaded.
func (u UploadConfig) Enabled() bool {
	return strings.TrimSpace(u.Bucket) != ""
}

// Artifacts lists the files the run writes, in write order.
func (c Config) Artifacts() []string {
	var out []string
	for _, p := range []string{c.ReportFile, c.HTMLOutput, c.ParquetOutput} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string

	if c.Duration < 0 {
		issues = append(issues, "duration must be non-negative")
	}
	if c.Iterations < 0 {
		issues = append(issues, "iterations must be non-negative")
	}
	if strings.TrimSpace(c.DocumentPath) == "" {
		issues = append(issues, "document path is required")
	}
	if c.Format != "" {
		if _, err := workload.ParseFormat(string(c.Format)); err != nil {
			issues = append(issues, err.Error())
		}
	}
	if c.Format == workload.FormatProtobuf {
		if strings.TrimSpace(c.ProtoFile) == "" {
			issues = append(issues, "protobuf format requires --proto-file")
		}
		if strings.TrimSpace(c.ProtoMessage) == "" {
			issues = append(issues, "protobuf format requires --proto-message")
		}
	}
	if c.Workers < 0 {
		issues = append(issues, "workers must be non-negative")
	}
	if c.BurstDuration < 0 {
		issues = append(issues, "burst duration must be non-negative")
	}
	if c.MinAlloc < 0 || c.MaxAlloc < 0 {
		issues = append(issues, "allocation sizes must be non-negative")
	}
	if c.MinAlloc > 0 && c.MaxAlloc > 0 && c.MinAlloc > c.MaxAlloc {
		issues = append(issues, "min-alloc must not exceed max-alloc")
	}
	if c.PauseProbability < 0 || c.PauseProbability > 1 {
		issues = append(issues, "pause probability must be between 0 and 1")
	}
	if c.PauseDuration < 0 {
		issues = append(issues, "pause duration must be non-negative")
	}
	if c.SlowThreshold < 0 {
		issues = append(issues, "slow threshold must be non-negative")
	}
	if c.SampleInterval < 0 {
		issues = append(issues, "sample interval must be non-negative")
	}
	if c.ProbeRate < 0 {
		issues = append(issues, "probe rate must be non-negative")
	}
	if c.JSONOutput && c.YAMLOutput {
		issues = append(issues, "json-output and yaml-output are mutually exclusive")
	}
	if c.Dashboard && (c.JSONOutput || c.YAMLOutput) {
		issues = append(issues, "dashboard cannot be combined with structured output")
	}

	if c.Upload.Enabled() && len(c.Artifacts()) == 0 {
		issues = append(issues, "upload requires --report-file, --html-output or --parquet-output")
	}

	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing protocol %q is not supported", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, "tracing sample rate must be between 0 and 1")
	}
	return issues
}
