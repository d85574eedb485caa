package pressure

import (
	"context"
	"testing"
	"time"
)

func smallOptions() Options {
	return Options{
		Workers:          4,
		BurstDuration:    50 * time.Millisecond,
		MinSize:          1024,
		MaxSize:          64 * 1024,
		PauseProbability: 0.05,
		PauseDuration:    5 * time.Millisecond,
		Seed:             42,
	}
}

func TestOptionsNormalizeDefaults(t *testing.T) {
	var o Options
	o.normalize()
	if o.Workers != DefaultWorkers {
		t.Errorf("Workers = %d, want %d", o.Workers, DefaultWorkers)
	}
	if o.BurstDuration != DefaultBurstDuration {
		t.Errorf("BurstDuration = %s, want %s", o.BurstDuration, DefaultBurstDuration)
	}
	if o.MinSize != DefaultMinSize || o.MaxSize != DefaultMaxSize {
		t.Errorf("size range = [%d, %d), want [%d, %d)", o.MinSize, o.MaxSize, DefaultMinSize, DefaultMaxSize)
	}
	if o.Seed == 0 {
		t.Errorf("expected clock seed to be filled in")
	}
}

func TestOptionsNormalizeInvertedRange(t *testing.T) {
	o := Options{MinSize: 4096, MaxSize: 1024, PauseProbability: 3}
	o.normalize()
	if o.MaxSize <= o.MinSize {
		t.Fatalf("expected MaxSize > MinSize, got [%d, %d)", o.MinSize, o.MaxSize)
	}
	if o.PauseProbability != 1 {
		t.Fatalf("expected probability clamped to 1, got %v", o.PauseProbability)
	}
}

func TestRunBurstStopsAllWorkers(t *testing.T) {
	g := New(smallOptions())

	start := time.Now()
	g.RunBurst(context.Background())
	elapsed := time.Since(start)

	if elapsed < 50*time.Millisecond {
		t.Fatalf("burst returned after %s, before its duration", elapsed)
	}
	if elapsed > time.Second {
		t.Fatalf("burst took %s to settle", elapsed)
	}
	if g.Allocations() == 0 {
		t.Fatalf("expected allocations during the burst")
	}
	if g.ActiveBursts() != 0 {
		t.Fatalf("expected no active bursts, got %d", g.ActiveBursts())
	}

	after := g.Allocations()
	time.Sleep(30 * time.Millisecond)
	if got := g.Allocations(); got != after {
		t.Fatalf("allocations continued after RunBurst returned: %d -> %d", after, got)
	}
}

func TestRunBurstHonorsParentCancellation(t *testing.T) {
	opt := smallOptions()
	opt.BurstDuration = 10 * time.Second
	g := New(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	g.RunBurst(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("burst ignored parent cancellation, ran %s", elapsed)
	}
}

func TestLaunchOverlapsAndWaitJoins(t *testing.T) {
	g := New(smallOptions())

	first := g.Launch(context.Background())
	second := g.Launch(context.Background())

	select {
	case <-first.Done():
		t.Fatalf("burst settled immediately after launch")
	default:
	}

	second.Wait()
	first.Wait()

	if g.Bursts() != 2 {
		t.Fatalf("expected 2 bursts, got %d", g.Bursts())
	}
	if g.ActiveBursts() != 0 {
		t.Fatalf("expected no active bursts after Wait, got %d", g.ActiveBursts())
	}
	if second.Started().Before(first.Started()) {
		t.Fatalf("launch order not preserved")
	}
}

func TestNilBurstWait(t *testing.T) {
	var b *Burst
	b.Wait()
}

func TestFillWritesWholeBuffer(t *testing.T) {
	buf := make([]byte, 3*1024+7)
	if !fill(make(chan struct{}), buf, 'a') {
		t.Fatalf("fill reported cancellation without one")
	}
	for i, c := range buf {
		if c != 'a' {
			t.Fatalf("buf[%d] = %q, want 'a'", i, c)
		}
	}
}

func TestFillStopsWhenDone(t *testing.T) {
	done := make(chan struct{})
	close(done)
	buf := make([]byte, 4*fillChunk)
	if fill(done, buf, 'a') {
		t.Fatalf("expected fill to stop early")
	}
	if buf[len(buf)-1] == 'a' {
		t.Fatalf("expected tail of buffer untouched")
	}
}

func TestSleepInterrupted(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if sleep(done, time.Hour) {
		t.Fatalf("expected sleep to be interrupted")
	}
	if !sleep(nil, 0) {
		t.Fatalf("zero sleep should complete")
	}
}
