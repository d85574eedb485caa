package runner

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/pressure"
	"github.com/torosent/gcpressure/internal/probe"
)

// SlowLogger is told about each slow iteration as soon as it is detected.
type SlowLogger interface {
	Slow(sample probe.Sample)
}

// Observer receives live figures while a run is in progress. Methods may be
// called concurrently from the probe loop, the memory sampler and the
// runtime's finalizer goroutine.
type Observer interface {
	RecordLatency(sample probe.Sample, slow bool)
	RecordMemory(sample memsampler.Sample)
	RecordGC(ev gcmonitor.Event)
	RecordBurst()
	SetTotalMemory(total uint64)
}

// Options configure a Controller.
type Options struct {
	Workload       probe.Workload   // parse operation being measured (required)
	Duration       time.Duration    // run length; checked between iterations
	MaxIterations  int              // stop after this many iterations (0 means no cap)
	SlowThreshold  time.Duration    // 0 uses probe.DefaultSlowThreshold
	Pressure       pressure.Options // burst shape; zero fields take defaults
	SampleInterval time.Duration    // memory sampling period (0 uses memsampler.DefaultInterval)
	MemoryReader   memsampler.Reader
	ProbeRate      float64 // iterations per second (0 means back-to-back)
	SlowLogger     SlowLogger
	Observers      []Observer
	Logger         memsampler.Logger
	Tracer         trace.Tracer
	LimiterFactory func(rps float64) *rate.Limiter // optional injection for tests
}

func (o *Options) normalize() {
	if o.Duration < 0 {
		o.Duration = 0
	}
	if o.MaxIterations < 0 {
		o.MaxIterations = 0
	}
	if o.SampleInterval <= 0 {
		o.SampleInterval = memsampler.DefaultInterval
	}
	if o.ProbeRate < 0 {
		o.ProbeRate = 0
	}
	if o.Tracer == nil {
		o.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if o.LimiterFactory == nil {
		o.LimiterFactory = func(rps float64) *rate.Limiter {
			if rps <= 0 {
				return nil
			}
			// One iteration at a time: the probe loop is sequential.
			return rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}
