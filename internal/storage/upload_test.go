package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeBucket(t *testing.T) (*fakeBucket, *httptest.Server) {
	t.Helper()
	b := &fakeBucket{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.objects[r.URL.Path] = body
		b.types[r.URL.Path] = r.Header.Get("Content-Type")
		b.mu.Unlock()
		w.Header().Set("ETag", `"fake"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return b, srv
}

func testUploader(t *testing.T, endpoint string) *Uploader {
	t.Helper()
	u, err := NewUploader(context.Background(), UploadConfig{
		Bucket:          "runs",
		Prefix:          "/gc/",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "secret",
	})
	if err != nil {
		t.Fatalf("NewUploader() error = %v", err)
	}
	return u
}

func TestUploadFilePathStyle(t *testing.T) {
	bucket, srv := newFakeBucket(t)
	u := testUploader(t, srv.URL)

	p := filepath.Join(t.TempDir(), "report.json")
	if err := os.WriteFile(p, []byte(`{"iterations":3}`), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}

	key, err := u.UploadFile(context.Background(), "01HRUN", p)
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
	if key != "gc/01HRUN/report.json" {
		t.Errorf("key = %q, want gc/01HRUN/report.json", key)
	}

	bucket.mu.Lock()
	defer bucket.mu.Unlock()
	got, ok := bucket.objects["/runs/gc/01HRUN/report.json"]
	if !ok {
		t.Fatalf("object not stored; have %v", bucket.objects)
	}
	if string(got) != `{"iterations":3}` {
		t.Errorf("body = %q", got)
	}
	if ct := bucket.types["/runs/gc/01HRUN/report.json"]; ct != "application/json" {
		t.Errorf("content type = %q, want application/json", ct)
	}
}

func TestUploadFileMissing(t *testing.T) {
	_, srv := newFakeBucket(t)
	u := testUploader(t, srv.URL)
	if _, err := u.UploadFile(context.Background(), "run", filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}

func TestUploadServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	u := testUploader(t, srv.URL)
	if err := u.Upload(context.Background(), "k", []byte("x"), ""); err == nil {
		t.Fatal("expected error from forbidden upload")
	}
}

func TestNewUploaderRequiresBucket(t *testing.T) {
	if _, err := NewUploader(context.Background(), UploadConfig{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.json":    "application/json",
		"a.YAML":    "application/yaml",
		"a.html":    "text/html; charset=utf-8",
		"a.parquet": "application/vnd.apache.parquet",
		"a.bin":     "application/octet-stream",
	}
	for in, want := range tests {
		if got := contentTypeFor(in); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}
