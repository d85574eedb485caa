// Package gcmonitor relays garbage-collection cycles into an append-only log.
//
// The Go runtime has no GC callback API. The monitor instead arms a
// finalizer on a sentinel object: the sentinel dies in the next cycle, its
// finalizer records every cycle completed since the previous notification
// and arms a fresh sentinel. Pause durations come from debug.ReadGCStats,
// which keeps the last 256 pauses, so notifications that coalesce several
// cycles lose nothing.
package gcmonitor

import (
	"runtime"
	"runtime/debug"
	"runtime/metrics"
	"sync"
	"time"
)

// Kind classifies what started a GC cycle. Go's collector is not
// generational, so Kind is the closest analogue to a generation.
type Kind string

const (
	KindAutomatic Kind = "automatic"
	KindForced    Kind = "forced"
)

const (
	forcedCyclesMetric = "/gc/cycles/forced:gc-cycles"
	heapGoalMetric     = "/gc/heap/goal:bytes"
)

// Event is one completed GC cycle.
type Event struct {
	Timestamp time.Time     `json:"timestamp" yaml:"timestamp"`
	Cycle     int64         `json:"cycle" yaml:"cycle"`
	Kind      Kind          `json:"kind" yaml:"kind"`
	Pause     time.Duration `json:"pause" yaml:"pause"`
	HeapGoal  uint64        `json:"heap_goal_bytes" yaml:"heap_goal_bytes"`
}

// Monitor buffers GC events between Start and Stop.
type Monitor struct {
	onEvent func(Event)

	mu      sync.Mutex
	started bool
	stopped bool
	events  []Event

	lastCycle  int64
	lastForced uint64
	stats      debug.GCStats
	rt         []metrics.Sample
}

// sentinel carries a pointer so it is never placed in the tiny allocator,
// whose blocks may keep finalizers from running.
type sentinel struct {
	m *Monitor
}

// New creates a stopped Monitor. onEvent, when non-nil, is invoked for each
// event on the runtime's finalizer goroutine and must be cheap.
func New(onEvent func(Event)) *Monitor {
	return &Monitor{
		onEvent: onEvent,
		rt: []metrics.Sample{
			{Name: forcedCyclesMetric},
			{Name: heapGoalMetric},
		},
	}
}

// Start subscribes to GC notifications. Cycles completed before Start are
// not reported. Calling Start twice, or after Stop, has no effect.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return
	}
	m.started = true
	debug.ReadGCStats(&m.stats)
	metrics.Read(m.rt)
	m.lastCycle = m.stats.NumGC
	m.lastForced = readUint64(m.rt[0])
	m.mu.Unlock()

	m.arm()
}

// Stop records any cycles completed so far and unsubscribes. Cycles
// completed after Stop returns are dropped.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started || m.stopped {
		m.stopped = true
		return
	}
	m.collectLocked()
	m.stopped = true
}

// Events returns a copy of the log in emission order.
func (m *Monitor) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

func (m *Monitor) arm() {
	runtime.SetFinalizer(&sentinel{m: m}, func(s *sentinel) {
		if s.m.notify() {
			s.m.arm()
		}
	})
}

func (m *Monitor) notify() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return false
	}
	m.collectLocked()
	return true
}

func (m *Monitor) collectLocked() {
	debug.ReadGCStats(&m.stats)
	metrics.Read(m.rt)

	fresh := m.stats.NumGC - m.lastCycle
	if fresh <= 0 {
		return
	}
	forced := readUint64(m.rt[0])
	goal := readUint64(m.rt[1])

	forcedDelta := int64(0)
	if forced > m.lastForced {
		forcedDelta = int64(forced - m.lastForced)
	}

	// Pause and PauseEnd are most recent first.
	n := fresh
	if n > int64(len(m.stats.Pause)) {
		n = int64(len(m.stats.Pause))
	}
	for i := n - 1; i >= 0; i-- {
		kind := KindAutomatic
		// Forced cycles are attributed to the most recent cycles of the batch.
		if i < forcedDelta {
			kind = KindForced
		}
		ev := Event{
			Cycle:    m.stats.NumGC - i,
			Kind:     kind,
			Pause:    m.stats.Pause[i],
			HeapGoal: goal,
		}
		if int(i) < len(m.stats.PauseEnd) {
			ev.Timestamp = m.stats.PauseEnd[i].UTC()
		}
		m.events = append(m.events, ev)
		if m.onEvent != nil {
			m.onEvent(ev)
		}
	}

	m.lastCycle = m.stats.NumGC
	m.lastForced = forced
}

func readUint64(s metrics.Sample) uint64 {
	if s.Value.Kind() != metrics.KindUint64 {
		return 0
	}
	return s.Value.Uint64()
}
