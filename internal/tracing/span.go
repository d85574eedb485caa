package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/metrics"
	"github.com/torosent/gcpressure/internal/probe"
)

// StartRunSpan starts the span covering one whole run.
func StartRunSpan(ctx context.Context, tracer trace.Tracer, runID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "gcpressure run",
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	span.SetAttributes(attribute.String("gcpressure.run_id", runID))
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

// RecordSlowSample adds a slow-iteration event to span.
func RecordSlowSample(span trace.Span, sample probe.Sample) {
	span.AddEvent("slow deserialization",
		trace.WithTimestamp(sample.Start),
		trace.WithAttributes(
			attribute.Float64("gcpressure.latency_ms", sample.ElapsedMs()),
		),
	)
}

// RecordGCEvent adds a GC cycle event to span.
func RecordGCEvent(span trace.Span, ev gcmonitor.Event) {
	span.AddEvent("gc cycle",
		trace.WithTimestamp(ev.Timestamp),
		trace.WithAttributes(
			attribute.Int64("gc.cycle", ev.Cycle),
			attribute.String("gc.kind", string(ev.Kind)),
			attribute.Float64("gc.pause_ms", float64(ev.Pause.Microseconds())/1000),
		),
	)
}

// SummaryAttributes converts the headline figures of s into span attributes.
func SummaryAttributes(s metrics.Summary) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("gcpressure.iterations", s.Iterations),
		attribute.Int64("gcpressure.slow_iterations", s.SlowIterations),
		attribute.Float64("gcpressure.max_latency_ms", s.MaxLatencyMs),
		attribute.Float64("gcpressure.p99_latency_ms", s.P99LatencyMs),
		attribute.Int("gc.cycles", s.GC.Count),
		attribute.Float64("gc.max_pause_ms", s.GC.MaxPauseMs),
	}
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
