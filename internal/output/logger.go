package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/torosent/gcpressure/internal/probe"
)

// SlowTimeLayout formats slow sample wall times in UTC with milliseconds.
const SlowTimeLayout = "2006-01-02 15:04:05.000Z07:00"

// Logger writes prefixed diagnostic lines.
type Logger struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

// NewLogger creates a Logger writing to w. A nil writer discards output.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{w: w, prefix: "[gcpressure]"}
}

// NewStderrLogger returns a Logger on os.Stderr.
func NewStderrLogger() *Logger {
	return NewLogger(os.Stderr)
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.printf("warning: "+format, args...)
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.printf(format, args...)
}

func (l *Logger) printf(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s %s\n", l.prefix, fmt.Sprintf(format, args...))
}

// SlowSampleWriter prints one line per slow probe iteration.
type SlowSampleWriter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewSlowSampleWriter creates a SlowSampleWriter. A nil writer discards output.
func NewSlowSampleWriter(w io.Writer) *SlowSampleWriter {
	if w == nil {
		w = io.Discard
	}
	return &SlowSampleWriter{w: w}
}

// Slow writes the detection line for s.
func (s *SlowSampleWriter) Slow(sample probe.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.w, FormatSlowSample(sample))
}

// FormatSlowSample renders the detection line for a slow sample.
func FormatSlowSample(sample probe.Sample) string {
	return fmt.Sprintf("Slow deserialization detected: start=%s, end=%s, duration=%.0f ms",
		formatWallTime(sample.Start),
		formatWallTime(sample.End),
		sample.ElapsedMs(),
	)
}

func formatWallTime(t time.Time) string {
	return t.UTC().Format(SlowTimeLayout)
}
