// Package storage persists run series and archives run artifacts.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/probe"
)

// Series names stored in the series column.
const (
	SeriesLatency = "latency"
	SeriesMemory  = "memory"
	SeriesGC      = "gc"
)

// Row is one observation of any series. Columns that do not apply to a
// series are left zero.
type Row struct {
	RunID       string  `parquet:"name=run_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Series      string  `parquet:"name=series, type=BYTE_ARRAY, convertedtype=UTF8"`
	TimestampMs int64   `parquet:"name=ts, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	LatencyMs   float64 `parquet:"name=latency_ms, type=DOUBLE"`
	Slow        bool    `parquet:"name=slow, type=BOOLEAN"`
	UsedBytes   int64   `parquet:"name=used_bytes, type=INT64"`
	HeapBytes   int64   `parquet:"name=heap_bytes, type=INT64"`
	GCCycle     int64   `parquet:"name=gc_cycle, type=INT64"`
	GCKind      string  `parquet:"name=gc_kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	PauseMs     float64 `parquet:"name=pause_ms, type=DOUBLE"`
}

// LatencyRow converts a probe sample.
func LatencyRow(runID string, s probe.Sample, slow bool) Row {
	return Row{
		RunID:       runID,
		Series:      SeriesLatency,
		TimestampMs: s.Start.UnixMilli(),
		LatencyMs:   s.ElapsedMs(),
		Slow:        slow,
	}
}

// MemoryRow converts a memory sample.
func MemoryRow(runID string, s memsampler.Sample) Row {
	return Row{
		RunID:       runID,
		Series:      SeriesMemory,
		TimestampMs: s.Timestamp.UnixMilli(),
		UsedBytes:   int64(s.Used),
		HeapBytes:   int64(s.Heap),
	}
}

// GCRow converts a GC event.
func GCRow(runID string, ev gcmonitor.Event) Row {
	return Row{
		RunID:       runID,
		Series:      SeriesGC,
		TimestampMs: ev.Timestamp.UnixMilli(),
		GCCycle:     ev.Cycle,
		GCKind:      string(ev.Kind),
		PauseMs:     float64(ev.Pause.Microseconds()) / 1000,
	}
}

// ParquetWriter writes series rows to a Parquet file in batches.
type ParquetWriter struct {
	writer    *writer.ParquetWriter
	file      source.ParquetFile
	mutex     sync.Mutex
	filePath  string
	batchSize int
	rows      []Row
}

// NewParquetWriter creates the file at path, creating parent directories.
func NewParquetWriter(path string, batchSize int) (*ParquetWriter, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet file: %w", err)
	}

	pw, err := writer.NewParquetWriter(file, new(Row), 4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	return &ParquetWriter{
		writer:    pw,
		file:      file,
		filePath:  path,
		batchSize: batchSize,
		rows:      make([]Row, 0, batchSize),
	}, nil
}

// Write adds a row to the batch and flushes if the batch is full.
func (pw *ParquetWriter) Write(row Row) error {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()

	pw.rows = append(pw.rows, row)
	if len(pw.rows) >= pw.batchSize {
		return pw.flush()
	}
	return nil
}

func (pw *ParquetWriter) flush() error {
	for _, row := range pw.rows {
		if err := pw.writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	pw.rows = pw.rows[:0]
	return nil
}

// Close flushes any remaining rows and closes the file.
func (pw *ParquetWriter) Close() error {
	pw.mutex.Lock()
	defer pw.mutex.Unlock()

	if err := pw.flush(); err != nil {
		return err
	}
	if err := pw.writer.WriteStop(); err != nil {
		return fmt.Errorf("failed to stop parquet writer: %w", err)
	}
	if err := pw.file.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// Path returns the path of the written file.
func (pw *ParquetWriter) Path() string {
	return pw.filePath
}

// WriteSeries writes every observation of a finished run to path.
func WriteSeries(path, runID string, latency []probe.Sample, classify func(probe.Sample) bool, memory []memsampler.Sample, gc []gcmonitor.Event) error {
	pw, err := NewParquetWriter(path, 0)
	if err != nil {
		return err
	}
	for _, s := range latency {
		if err := pw.Write(LatencyRow(runID, s, classify(s))); err != nil {
			pw.Close()
			return err
		}
	}
	for _, s := range memory {
		if err := pw.Write(MemoryRow(runID, s)); err != nil {
			pw.Close()
			return err
		}
	}
	for _, ev := range gc {
		if err := pw.Write(GCRow(runID, ev)); err != nil {
			pw.Close()
			return err
		}
	}
	return pw.Close()
}
