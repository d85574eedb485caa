// Package probe times single invocations of the deserialization workload.
package probe

import (
	"context"
	"fmt"
	"time"
)

// DefaultSlowThreshold is the cutoff above which an iteration is reported as slow.
const DefaultSlowThreshold = 300 * time.Millisecond

// Workload is the opaque parse operation being measured.
type Workload interface {
	Parse() error
}

// Sample is one timed workload invocation.
type Sample struct {
	Start   time.Time     `json:"start" yaml:"start"`
	End     time.Time     `json:"end" yaml:"end"`
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// ElapsedMs returns the elapsed duration in fractional milliseconds.
func (s Sample) ElapsedMs() float64 {
	return float64(s.Elapsed) / float64(time.Millisecond)
}

// RunOnce invokes w on the calling goroutine and measures it.
// Elapsed comes from the monotonic clock; Start and End are UTC wall times
// kept for reporting. A workload error is returned and no sample is produced.
func RunOnce(ctx context.Context, w Workload) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	start := time.Now()
	err := w.Parse()
	end := time.Now()
	if err != nil {
		return Sample{}, fmt.Errorf("parse workload: %w", err)
	}

	// Sub uses the monotonic readings; Round(0) strips them for the wall times.
	elapsed := end.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}
	wallStart := start.Round(0).UTC()
	wallEnd := end.Round(0).UTC()
	if wallEnd.Before(wallStart) {
		wallEnd = wallStart.Add(elapsed)
	}
	return Sample{Start: wallStart, End: wallEnd, Elapsed: elapsed}, nil
}

// Classifier decides whether a sample is slow.
type Classifier struct {
	Threshold time.Duration
}

// NewClassifier returns a Classifier, using DefaultSlowThreshold when threshold <= 0.
func NewClassifier(threshold time.Duration) Classifier {
	if threshold <= 0 {
		threshold = DefaultSlowThreshold
	}
	return Classifier{Threshold: threshold}
}

// IsSlow reports whether s took strictly longer than the threshold.
func (c Classifier) IsSlow(s Sample) bool {
	return s.Elapsed > c.Threshold
}
