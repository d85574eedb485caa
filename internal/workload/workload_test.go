package workload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleJSON = `{"id":"doc","version":1,"items":[{"id":1,"name":"a","tags":["x","y"],"attributes":{"k":"v"}},{"id":2,"name":"b","active":true}]}`

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"gjson", FormatGJSON, false},
		{"proto", FormatProtobuf, false},
		{"protobuf", FormatProtobuf, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatsParseValidDocument(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML, FormatGJSON} {
		t.Run(string(format), func(t *testing.T) {
			w, err := New([]byte(sampleJSON), Options{Format: format})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			for i := 0; i < 3; i++ {
				if err := w.Parse(); err != nil {
					t.Fatalf("Parse() error = %v", err)
				}
			}
		})
	}
}

func TestMalformedDocumentFailsAtStartup(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatGJSON} {
		t.Run(string(format), func(t *testing.T) {
			if _, err := New([]byte(`{"id":`), Options{Format: format}); err == nil {
				t.Fatalf("expected error for malformed %s document", format)
			}
		})
	}
}

func TestLoadMissingDocument(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"), Options{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if _, err := Load(path, Options{}); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestProtobufWorkload(t *testing.T) {
	w, err := New([]byte(sampleJSON), Options{
		Format:       FormatProtobuf,
		ProtoFile:    filepath.Join("testdata", "document.proto"),
		ProtoMessage: "gcpressure.test.Document",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	pw, ok := w.(*protobufWorkload)
	if !ok {
		t.Fatalf("expected protobuf workload, got %T", w)
	}
	if pw.WireSize() == 0 {
		t.Fatalf("expected non-empty wire encoding")
	}
	if err := w.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
}

func TestProtobufWorkloadRequiresDescriptor(t *testing.T) {
	if _, err := New([]byte(sampleJSON), Options{Format: FormatProtobuf}); err == nil {
		t.Fatalf("expected error without proto file")
	}
	_, err := New([]byte(sampleJSON), Options{
		Format:       FormatProtobuf,
		ProtoFile:    filepath.Join("testdata", "document.proto"),
		ProtoMessage: "gcpressure.test.Missing",
	})
	if err == nil {
		t.Fatalf("expected error for unknown message")
	}
}

func TestGenerateDocument(t *testing.T) {
	var first, second bytes.Buffer
	if err := GenerateDocument(&first, 64*1024, 7); err != nil {
		t.Fatalf("GenerateDocument() error = %v", err)
	}
	if err := GenerateDocument(&second, 64*1024, 7); err != nil {
		t.Fatalf("GenerateDocument() error = %v", err)
	}
	if !bytes.Equal(first.Bytes(), second.Bytes()) {
		t.Fatalf("same seed produced different documents")
	}
	if first.Len() < 64*1024 || first.Len() > 80*1024 {
		t.Fatalf("document size %d not near 64KiB", first.Len())
	}

	for _, format := range []Format{FormatJSON, FormatGJSON} {
		if _, err := New(first.Bytes(), Options{Format: format}); err != nil {
			t.Fatalf("generated document rejected by %s: %v", format, err)
		}
	}
	_, err := New(first.Bytes(), Options{
		Format:       FormatProtobuf,
		ProtoFile:    filepath.Join("testdata", "document.proto"),
		ProtoMessage: "gcpressure.test.Document",
	})
	if err != nil {
		t.Fatalf("generated document rejected by protobuf schema: %v", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	calls := 0
	var w Workload = Func(func() error { calls++; return nil })
	if err := w.Parse(); err != nil || calls != 1 {
		t.Fatalf("Func adapter did not invoke function")
	}
}
