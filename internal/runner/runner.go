package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/pressure"
	"github.com/torosent/gcpressure/internal/probe"
	"github.com/torosent/gcpressure/internal/tracing"
)

// State is the lifecycle phase of a Controller.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateDraining
	StateReported
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateReported:
		return "reported"
	default:
		return "unknown"
	}
}

var (
	// ErrNoWorkload is returned when Options.Workload is nil.
	ErrNoWorkload = errors.New("runner: workload is required")
	// ErrAlreadyRunning is returned when Run is called while a run is in progress.
	ErrAlreadyRunning = errors.New("runner: run already in progress")
)

// Report is the result of one completed run.
type Report struct {
	RunID    string          `json:"run_id" yaml:"run_id"`
	Started  time.Time       `json:"started" yaml:"started"`
	Finished time.Time       `json:"finished" yaml:"finished"`
	Bursts   int64           `json:"bursts" yaml:"bursts"`
	Summary  metrics.Summary `json:"summary" yaml:"summary"`
	Series   metrics.Series  `json:"-" yaml:"-"`
}

// Controller drives the probe loop and owns the collectors for one run at a time.
type Controller struct {
	opt        Options
	classifier probe.Classifier
	state      atomic.Int32
}

// New creates an idle Controller.
func New(opt Options) *Controller {
	opt.normalize()
	return &Controller{
		opt:        opt,
		classifier: probe.NewClassifier(opt.SlowThreshold),
	}
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Run performs one run and returns its report. At least one probe iteration
// always runs; the duration is checked only between iterations. Cancelling
// ctx ends the loop the same way the duration does. A workload error aborts
// the run: collectors are stopped, the last burst is joined and no report is
// produced.
//
// A Controller may Run again once the previous Run has returned.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	if c.opt.Workload == nil {
		return Report{}, ErrNoWorkload
	}
	if !c.transition(StateIdle, StateRunning) && !c.transition(StateReported, StateRunning) {
		return Report{}, ErrAlreadyRunning
	}

	report := Report{RunID: ulid.Make().String()}
	ctx, span := tracing.StartRunSpan(ctx, c.opt.Tracer, report.RunID,
		attribute.Float64("gcpressure.duration_s", c.opt.Duration.Seconds()),
		attribute.Float64("gcpressure.slow_threshold_ms", float64(c.classifier.Threshold)/float64(time.Millisecond)),
	)

	gen := pressure.New(c.opt.Pressure)
	sampler := memsampler.New(memsampler.Options{
		Reader:   c.opt.MemoryReader,
		OnSample: c.recordMemory,
		Logger:   c.opt.Logger,
	})
	monitor := gcmonitor.New(c.recordGC)

	report.Started = time.Now()
	monitor.Start()
	sampler.Start(c.opt.SampleInterval)
	total := sampler.Total()
	for _, obs := range c.opt.Observers {
		obs.SetTotalMemory(total)
	}

	latency, last, err := c.loop(ctx, span, gen, report.Started)

	c.state.Store(int32(StateDraining))
	sampler.Stop()
	monitor.Stop()
	if last != nil {
		last.Wait()
	}
	report.Finished = time.Now()

	events := monitor.Events()
	for _, ev := range events {
		tracing.RecordGCEvent(span, ev)
	}

	if err != nil {
		c.state.Store(int32(StateIdle))
		tracing.EndSpan(span, err)
		return Report{}, err
	}

	report.Bursts = gen.Bursts()
	report.Series = metrics.Series{
		Latency:       latency,
		Memory:        sampler.Samples(),
		TotalMemory:   total,
		GC:            events,
		SlowThreshold: c.classifier.Threshold,
		Duration:      report.Finished.Sub(report.Started),
	}
	report.Summary = metrics.Summarize(report.Series)

	c.state.Store(int32(StateReported))
	tracing.EndSpan(span, nil, tracing.SummaryAttributes(report.Summary)...)
	return report, nil
}

// loop runs probe iterations until the duration, the iteration cap or ctx
// ends the run. It returns the samples, the most recently launched burst and
// the first workload error.
func (c *Controller) loop(ctx context.Context, span trace.Span, gen *pressure.Generator, start time.Time) ([]probe.Sample, *pressure.Burst, error) {
	var (
		samples []probe.Sample
		last    *pressure.Burst
	)

	pacer := c.opt.LimiterFactory(c.opt.ProbeRate)
	deadline, cancel := context.WithDeadline(ctx, start.Add(c.opt.Duration))
	defer cancel()

	for {
		iterCtx := ctx
		if len(samples) == 0 {
			// The first iteration runs even when ctx is already done.
			iterCtx = context.WithoutCancel(ctx)
		} else if pacer != nil {
			// Wait fails when the next slot falls past the deadline.
			if err := pacer.Wait(deadline); err != nil {
				return samples, last, nil
			}
		}

		sample, err := probe.RunOnce(iterCtx, c.opt.Workload)
		if err != nil {
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return samples, last, nil
			}
			return samples, last, err
		}
		samples = append(samples, sample)

		slow := c.classifier.IsSlow(sample)
		if slow {
			if c.opt.SlowLogger != nil {
				c.opt.SlowLogger.Slow(sample)
			}
			tracing.RecordSlowSample(span, sample)
		}
		for _, obs := range c.opt.Observers {
			obs.RecordLatency(sample, slow)
		}

		last = gen.Launch(ctx)
		for _, obs := range c.opt.Observers {
			obs.RecordBurst()
		}

		if time.Since(start) >= c.opt.Duration || ctx.Err() != nil {
			return samples, last, nil
		}
		if c.opt.MaxIterations > 0 && len(samples) >= c.opt.MaxIterations {
			return samples, last, nil
		}
	}
}

func (c *Controller) recordMemory(sample memsampler.Sample) {
	for _, obs := range c.opt.Observers {
		obs.RecordMemory(sample)
	}
}

func (c *Controller) recordGC(ev gcmonitor.Event) {
	for _, obs := range c.opt.Observers {
		obs.RecordGC(ev)
	}
}

func (c *Controller) transition(from, to State) bool {
	return c.state.CompareAndSwap(int32(from), int32(to))
}
