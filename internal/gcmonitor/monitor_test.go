package gcmonitor

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

func waitForEvents(m *Monitor, n int, timeout time.Duration) []Event {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if events := m.Events(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	return m.Events()
}

func TestMonitorRecordsForcedCycles(t *testing.T) {
	var observed atomic.Int64
	m := New(func(Event) { observed.Add(1) })
	m.Start()

	for i := 0; i < 3; i++ {
		runtime.GC()
	}
	waitForEvents(m, 3, time.Second)
	m.Stop()
	events := m.Events()

	if len(events) < 3 {
		t.Fatalf("expected at least 3 events, got %d", len(events))
	}
	forced := 0
	for i, ev := range events {
		if ev.Kind == KindForced {
			forced++
		}
		if ev.Pause < 0 {
			t.Fatalf("event %d has negative pause %s", i, ev.Pause)
		}
		if i > 0 && ev.Cycle <= events[i-1].Cycle {
			t.Fatalf("cycles not increasing: %d then %d", events[i-1].Cycle, ev.Cycle)
		}
	}
	if forced != 3 {
		t.Fatalf("expected 3 forced cycles, got %d", forced)
	}
	if int(observed.Load()) != len(events) {
		t.Fatalf("observer saw %d events, log has %d", observed.Load(), len(events))
	}
}

func TestMonitorDropsEventsAfterStop(t *testing.T) {
	m := New(nil)
	m.Start()
	runtime.GC()
	m.Stop()

	n := len(m.Events())
	if n == 0 {
		t.Fatalf("expected the cycle before Stop to be recorded")
	}
	runtime.GC()
	runtime.GC()
	time.Sleep(20 * time.Millisecond)
	if got := len(m.Events()); got != n {
		t.Fatalf("events recorded after Stop: %d -> %d", n, got)
	}
}

func TestMonitorIgnoresCyclesBeforeStart(t *testing.T) {
	runtime.GC()
	m := New(nil)
	m.Start()
	m.Stop()
	if got := len(m.Events()); got != 0 {
		t.Fatalf("expected no events for an idle window, got %d", got)
	}
}

func TestMonitorLifecycleNoops(t *testing.T) {
	m := New(nil)
	m.Stop()
	m.Start()
	runtime.GC()
	time.Sleep(10 * time.Millisecond)
	if got := len(m.Events()); got != 0 {
		t.Fatalf("Start after Stop should not subscribe, got %d events", got)
	}
}
