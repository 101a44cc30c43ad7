// Package metrics is a small, backend-agnostic layer for recording
// conversion metrics.
//
// A global backend defaults to a no-op, so every Record* call is safe when no
// backend is configured. Concrete systems live in subpackages (prompush,
// datadog) and are installed once at startup with SetBackend.
package metrics

import (
	"sync"
	"time"
)

// Metric names.
const (
	StepTotal        = "statbatch_step_total"
	StepDuration     = "statbatch_step_duration_seconds"
	RowsTotal        = "statbatch_rows_total"
	BatchesTotal     = "statbatch_batches_total"
	SinkFailureTotal = "statbatch_sink_failures_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a duration-style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it.
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs a concrete backend. Passing nil keeps the existing one.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush delegates to the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStep counts one execution of a conversion stage ("open",
// "assemble", "close") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{"job": job, "step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, lbls)
	b.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind ("assembled", "loaded").
func RecordRows(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(RowsTotal, float64(delta), Labels{"job": job, "kind": kind})
}

// RecordBatches adds delta written batches.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	current().IncCounter(BatchesTotal, float64(delta), Labels{"job": job})
}

// RecordSinkFailure counts one failed batch write on the named sink.
func RecordSinkFailure(job, sink string) {
	current().IncCounter(SinkFailureTotal, 1, Labels{"job": job, "sink": sink})
}
