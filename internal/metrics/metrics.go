// Package metrics exposes exploration counters on a private prometheus registry.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hdlsym"

// Recorder collects the metrics of one run
type Recorder struct {
	registry *prometheus.Registry

	iterations    *prometheus.CounterVec
	iterationTime prometheus.Histogram
	solverCalls   *prometheus.CounterVec
	solverTime    prometheus.Histogram
	batches       prometheus.Counter
	pathEstimate  prometheus.Gauge
}

// NewRecorder registers every collector on a fresh registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Explored schedules by outcome",
		}, []string{"outcome"}),
		iterationTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Wall time spent per schedule",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		solverCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "calls_total",
			Help:      "Counterexample queries by result and cache use",
		}, []string{"result", "cached"}),
		solverTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solver",
			Name:      "duration_seconds",
			Help:      "Solver time per counterexample query",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Piecewise batches started",
		}),
		pathEstimate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "path_estimate",
			Help:      "Static estimate of the schedule space",
		}),
	}
	r.registry.MustRegister(r.iterations, r.iterationTime, r.solverCalls, r.solverTime, r.batches, r.pathEstimate)
	return r
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Iteration(outcome string, d time.Duration) {
	r.iterations.WithLabelValues(outcome).Inc()
	r.iterationTime.Observe(d.Seconds())
}

func (r *Recorder) SolverCall(result string, cached bool, d time.Duration) {
	r.solverCalls.WithLabelValues(result, fmt.Sprint(cached)).Inc()
	if !cached {
		r.solverTime.Observe(d.Seconds())
	}
}

func (r *Recorder) Batch() {
	r.batches.Inc()
}

func (r *Recorder) PathEstimate(v float64) {
	r.pathEstimate.Set(v)
}

// WriteTextfile writes the registry in the node-exporter textfile format
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
