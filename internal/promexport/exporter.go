// Package promexport publishes live run figures in the Prometheus text format.
package promexport

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/torosent/gcpressure/internal/gcmonitor"
	"github.com/torosent/gcpressure/internal/memsampler"
	"github.com/torosent/gcpressure/internal/probe"
)

const namespace = "gcpressure"

// Exporter mirrors probe, memory and GC observations into Prometheus metrics.
type Exporter struct {
	registry *prometheus.Registry

	latency     prometheus.Histogram
	iterations  *prometheus.CounterVec
	memoryUsed  prometheus.Gauge
	memoryTotal prometheus.Gauge
	heap        prometheus.Gauge
	gcPause     *prometheus.HistogramVec
	bursts      prometheus.Counter
}

// New creates an Exporter with its own registry.
func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Deserialization latency per probe iteration",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~33s
		}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_iterations_total",
			Help:      "Probe iterations by slow classification",
		}, []string{"slow"}),
		memoryUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_used_bytes",
			Help:      "System memory in use at the last sample",
		}),
		memoryTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_total_bytes",
			Help:      "Total system memory",
		}),
		heap: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_objects_bytes",
			Help:      "Go heap occupied by live and unswept objects at the last sample",
		}),
		gcPause: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gc_pause_seconds",
			Help:      "Stop-the-world pause per GC cycle",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 18), // 10µs to ~1.3s
		}, []string{"kind"}),
		bursts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pressure_bursts_total",
			Help:      "Allocation bursts launched",
		}),
	}

	e.registry.MustRegister(
		e.latency,
		e.iterations,
		e.memoryUsed,
		e.memoryTotal,
		e.heap,
		e.gcPause,
		e.bursts,
	)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// RecordLatency records one probe iteration.
func (e *Exporter) RecordLatency(sample probe.Sample, slow bool) {
	e.latency.Observe(sample.Elapsed.Seconds())
	e.iterations.WithLabelValues(strconv.FormatBool(slow)).Inc()
}

// SetTotalMemory records total system memory.
func (e *Exporter) SetTotalMemory(total uint64) {
	e.memoryTotal.Set(float64(total))
}

// RecordMemory records the latest memory sample.
func (e *Exporter) RecordMemory(sample memsampler.Sample) {
	e.memoryUsed.Set(float64(sample.Used))
	e.heap.Set(float64(sample.Heap))
}

// RecordGC records one GC cycle.
func (e *Exporter) RecordGC(ev gcmonitor.Event) {
	e.gcPause.WithLabelValues(string(ev.Kind)).Observe(ev.Pause.Seconds())
}

// RecordBurst counts a launched burst.
func (e *Exporter) RecordBurst() {
	e.bursts.Inc()
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}
