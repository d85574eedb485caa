// Package memsampler records system memory usage on a fixed interval.
package memsampler

import (
	"runtime/metrics"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the sampling period used when none is given.
const DefaultInterval = time.Second

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// Sample is one memory observation.
type Sample struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Used      uint64    `json:"used_bytes" yaml:"used_bytes"`
	Heap      uint64    `json:"heap_bytes" yaml:"heap_bytes"`
}

// Logger receives soft-degradation warnings.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// Options configure a Sampler.
type Options struct {
	Reader   Reader       // system memory source; nil uses /proc/meminfo
	OnSample func(Sample) // optional live observer, called on the sampler goroutine
	Logger   Logger       // optional; told once when the reader fails
}

// Sampler owns its sample sequence until Stop returns.
type Sampler struct {
	reader   Reader
	onSample func(Sample)
	logger   Logger
	warnOnce sync.Once

	mu      sync.Mutex
	samples []Sample
	total   uint64

	heap []metrics.Sample

	active   int32
	done     chan struct{}
	finished chan struct{}
}

// New creates a stopped Sampler.
func New(opt Options) *Sampler {
	reader := opt.Reader
	if reader == nil {
		reader = NewMeminfoReader()
	}
	return &Sampler{
		reader:   reader,
		onSample: opt.OnSample,
		logger:   opt.Logger,
		heap:     []metrics.Sample{{Name: heapObjectsMetric}},
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start records one sample immediately and then one per interval on its own
// goroutine. Calling Start twice, or after Stop, has no effect.
func (s *Sampler) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if !atomic.CompareAndSwapInt32(&s.active, 0, 1) {
		return
	}

	total, err := s.reader.Total()
	if err != nil {
		s.warn(err)
		total = 0
	}
	s.mu.Lock()
	s.total = total
	s.mu.Unlock()

	go s.run(interval)
}

// Stop halts sampling. No sample is recorded after Stop returns.
func (s *Sampler) Stop() {
	if atomic.CompareAndSwapInt32(&s.active, 1, 2) {
		close(s.done)
		<-s.finished
	}
}

// Samples returns a copy of the recorded sequence.
func (s *Sampler) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// Total returns the system memory captured at Start, or 0 when unavailable.
func (s *Sampler) Total() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Sampler) run(interval time.Duration) {
	defer close(s.finished)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.record()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			// Stop may have raced the tick; done wins.
			select {
			case <-s.done:
				return
			default:
			}
			s.record()
		}
	}
}

func (s *Sampler) record() {
	used, err := s.reader.Used()
	if err != nil {
		s.warn(err)
		used = 0
	}
	metrics.Read(s.heap)
	var heap uint64
	if s.heap[0].Value.Kind() == metrics.KindUint64 {
		heap = s.heap[0].Value.Uint64()
	}

	sample := Sample{Timestamp: time.Now().UTC(), Used: used, Heap: heap}
	s.mu.Lock()
	s.samples = append(s.samples, sample)
	s.mu.Unlock()

	if s.onSample != nil {
		s.onSample(sample)
	}
}

func (s *Sampler) warn(err error) {
	if s.logger == nil {
		return
	}
	s.warnOnce.Do(func() {
		s.logger.Warnf("system memory unavailable, memory statistics will read as zero: %v", err)
	})
}
