package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/torosent/gcpressure/internal/pressure"
	"github.com/torosent/gcpressure/internal/workload"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	// Executable overrides os.Executable when resolving the default document.
	Executable func() (string, error)
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{Executable: os.Executable}
}

// Load parses command-line arguments and configuration files to produce a Config.
// A single positional argument is the run duration in whole seconds.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := &Config{
		Duration:         DefaultDuration,
		Format:           workload.FormatJSON,
		PauseProbability: pressure.DefaultPauseProbability,
		PauseDuration:    pressure.DefaultPauseDuration,
		ConfigFile:       configPath,
		Tracing:          TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	positional := flagSet.Args()
	switch len(positional) {
	case 0:
	case 1:
		dur, err := parseDurationSeconds(positional[0])
		if err != nil {
			return nil, err
		}
		cfg.Duration = dur
	default:
		return nil, fmt.Errorf("expected at most one duration argument, got %d", len(positional))
	}

	format, err := workload.ParseFormat(string(cfg.Format))
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	if cfg.DocumentPath == "" {
		cfg.DocumentPath = l.defaultDocumentPath()
	}

	return cfg, nil
}

// parseDurationSeconds interprets the positional argument as whole seconds.
func parseDurationSeconds(arg string) (time.Duration, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: expected whole seconds", arg)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid duration %q: must not be negative", arg)
	}
	return time.Duration(n) * time.Second, nil
}

func (l Loader) defaultDocumentPath() string {
	exe := l.Executable
	if exe == nil {
		exe = os.Executable
	}
	path, err := exe()
	if err != nil {
		return DefaultDocumentName
	}
	return filepath.Join(filepath.Dir(path), DefaultDocumentName)
}

func workloadFormat(s string) workload.Format {
	return workload.Format(strings.ToLower(strings.TrimSpace(s)))
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("duration: %w", err)
		}
		cfg.Duration = dur
	}

	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
	}

	if raw, ok := lookupSetting(settings, "document", "document_path", "document-path"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("document: %w", err)
		}
		cfg.DocumentPath = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "format"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("format: %w", err)
		}
		if val != "" {
			cfg.Format = workloadFormat(val)
		}
	}

	if raw, ok := lookupSetting(settings, "protofile", "proto_file", "proto-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protoFile: %w", err)
		}
		cfg.ProtoFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "protomessage", "proto_message", "proto-message"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("protoMessage: %w", err)
		}
		cfg.ProtoMessage = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "workers"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("workers: %w", err)
		}
		cfg.Workers = val
	}

	if raw, ok := lookupSetting(settings, "burstduration", "burst_duration", "burst-duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("burstDuration: %w", err)
		}
		cfg.BurstDuration = dur
	}

	if raw, ok := lookupSetting(settings, "minalloc", "min_alloc", "min-alloc"); ok {
		val, err := asBytes(raw)
		if err != nil {
			return fmt.Errorf("minAlloc: %w", err)
		}
		cfg.MinAlloc = val
	}

	if raw, ok := lookupSetting(settings, "maxalloc", "max_alloc", "max-alloc"); ok {
		val, err := asBytes(raw)
		if err != nil {
			return fmt.Errorf("maxAlloc: %w", err)
		}
		cfg.MaxAlloc = val
	}

	if raw, ok := lookupSetting(settings, "pauseprobability", "pause_probability", "pause-probability"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("pauseProbability: %w", err)
		}
		cfg.PauseProbability = val
	}

	if raw, ok := lookupSetting(settings, "pauseduration", "pause_duration", "pause-duration"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("pauseDuration: %w", err)
		}
		cfg.PauseDuration = dur
	}

	if raw, ok := lookupSetting(settings, "slowthreshold", "slow_threshold", "slow-threshold"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("slowThreshold: %w", err)
		}
		cfg.SlowThreshold = dur
	}

	if raw, ok := lookupSetting(settings, "sampleinterval", "sample_interval", "sample-interval"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("sampleInterval: %w", err)
		}
		cfg.SampleInterval = dur
	}

	if raw, ok := lookupSetting(settings, "proberate", "probe_rate", "probe-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return fmt.Errorf("probeRate: %w", err)
		}
		cfg.ProbeRate = val
	}

	if raw, ok := lookupSetting(settings, "seed"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		cfg.Seed = int64(val)
	}

	if raw, ok := lookupSetting(settings, "jsonoutput", "json_output", "json-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("jsonOutput: %w", err)
		}
		cfg.JSONOutput = val
	}

	if raw, ok := lookupSetting(settings, "yamloutput", "yaml_output", "yaml-output"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("yamlOutput: %w", err)
		}
		cfg.YAMLOutput = val
	}

	if raw, ok := lookupSetting(settings, "reportfile", "report_file", "report-file"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("reportFile: %w", err)
		}
		cfg.ReportFile = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "htmloutput", "html_output", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "parquetoutput", "parquet_output", "parquet-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("parquetOutput: %w", err)
		}
		cfg.ParquetOutput = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("dashboard: %w", err)
		}
		cfg.Dashboard = val
	}

	if raw, ok := lookupSetting(settings, "progress"); ok {
		val, err := asBool(raw)
		if err != nil {
			return fmt.Errorf("progress: %w", err)
		}
		cfg.Progress = val
	}

	if raw, ok := lookupSetting(settings, "metricsaddr", "metrics_addr", "metrics-addr"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("metricsAddr: %w", err)
		}
		cfg.MetricsAddr = strings.TrimSpace(val)
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}

	if raw, ok := lookupSetting(settings, "upload"); ok {
		uc, err := parseUpload(raw)
		if err != nil {
			return fmt.Errorf("upload: %w", err)
		}
		cfg.Upload = uc
	}

	return nil
}

func parseUpload(value interface{}) (UploadConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return UploadConfig{}, err
	}
	var uc UploadConfig
	fields := []struct {
		dst  *string
		keys []string
	}{
		{&uc.Bucket, []string{"bucket"}},
		{&uc.Prefix, []string{"prefix"}},
		{&uc.Endpoint, []string{"endpoint"}},
		{&uc.Region, []string{"region"}},
	}
	for _, f := range fields {
		raw, ok := lookupSetting(settings, f.keys...)
		if !ok {
			continue
		}
		val, err := asString(raw)
		if err != nil {
			return UploadConfig{}, fmt.Errorf("%s: %w", f.keys[0], err)
		}
		*f.dst = strings.TrimSpace(val)
	}
	return uc, nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	tc := base
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tc.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tc.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tc.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tc.SampleRate = val
	}
	return tc, nil
}
