package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/probe"
)

func readRows(t *testing.T, path string) []Row {
	t.Helper()
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		t.Fatalf("open parquet file: %v", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(Row), 1)
	if err != nil {
		t.Fatalf("create parquet reader: %v", err)
	}
	defer pr.ReadStop()

	n := pr.GetNumRows()
	if n == 0 {
		return nil
	}
	rows := make([]Row, n)
	if err := pr.Read(&rows); err != nil {
		t.Fatalf("read rows: %v", err)
	}
	return rows
}

func TestWriteSeriesRoundTrip(t *testing.T) {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	latency := []probe.Sample{
		{Start: base, End: base.Add(10 * time.Millisecond), Elapsed: 10 * time.Millisecond},
		{Start: base.Add(time.Second), End: base.Add(time.Second + 420*time.Millisecond), Elapsed: 420 * time.Millisecond},
	}
	memory := []memsampler.Sample{{Timestamp: base, Used: 1 << 30, Heap: 32 << 20}}
	gc := []gcmonitor.Event{{Timestamp: base.Add(500 * time.Millisecond), Cycle: 12, Kind: gcmonitor.KindAutomatic, Pause: 1500 * time.Microsecond}}

	classifier := probe.NewClassifier(0)
	path := filepath.Join(t.TempDir(), "out", "series.parquet")
	if err := WriteSeries(path, "run-1", latency, classifier.IsSlow, memory, gc); err != nil {
		t.Fatalf("WriteSeries() error = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want 4", len(rows))
	}

	if rows[0].Series != SeriesLatency || rows[0].Slow {
		t.Errorf("row 0 = %+v, want fast latency row", rows[0])
	}
	if !rows[1].Slow || rows[1].LatencyMs != 420 {
		t.Errorf("row 1 = %+v, want slow 420ms", rows[1])
	}
	if rows[1].TimestampMs != base.Add(time.Second).UnixMilli() {
		t.Errorf("row 1 ts = %d", rows[1].TimestampMs)
	}
	if rows[2].Series != SeriesMemory || rows[2].UsedBytes != 1<<30 || rows[2].HeapBytes != 32<<20 {
		t.Errorf("row 2 = %+v, want memory row", rows[2])
	}
	if rows[3].Series != SeriesGC || rows[3].GCCycle != 12 || rows[3].GCKind != "automatic" || rows[3].PauseMs != 1.5 {
		t.Errorf("row 3 = %+v, want gc row", rows[3])
	}
	for _, row := range rows {
		if row.RunID != "run-1" {
			t.Errorf("RunID = %q, want run-1", row.RunID)
		}
	}
}

func TestParquetWriterFlushesBatches(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batched.parquet")
	pw, err := NewParquetWriter(path, 2)
	if err != nil {
		t.Fatalf("NewParquetWriter() error = %v", err)
	}
	if pw.Path() != path {
		t.Errorf("Path() = %q, want %q", pw.Path(), path)
	}
	for i := 0; i < 5; i++ {
		if err := pw.Write(Row{Series: SeriesLatency, LatencyMs: float64(i)}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := pw.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	for i, row := range rows {
		if row.LatencyMs != float64(i) {
			t.Errorf("row %d latency = %v", i, row.LatencyMs)
		}
	}
}

func TestWriteSeriesEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if err := WriteSeries(path, "run-0", nil, func(probe.Sample) bool { return false }, nil, nil); err != nil {
		t.Fatalf("WriteSeries() error = %v", err)
	}
	if rows := readRows(t, path); len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}
