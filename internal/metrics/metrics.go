// Package metrics is a small, backend-agnostic abstraction for recording
// operational metrics of a pipeline run.
//
// A global, pluggable backend defaults to a no-op implementation, so the
// recording helpers are always safe to call. Concrete systems (Prometheus
// Pushgateway, Datadog) live in subpackages and are installed with
// SetBackend by the command that runs the pipeline.
package metrics

import (
	"context"
	"time"
)

// Metric names.
const (
	StepTotal       = "dq_step_total"
	StepDuration    = "dq_step_duration_seconds"
	RecordsTotal    = "dq_records_total"
	CheckFailedRows = "dq_check_failed_rows_total"
	BatchesTotal    = "dq_batches_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(name string, delta float64, labels Labels)       {}
func (nopBackend) ObserveHistogram(name string, value float64, labels Labels) {}
func (nopBackend) Flush() error                                               { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep measures latency and success/failure of one pipeline step
// (load, evaluate, clean, report, persist).
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}
	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRows adds delta rows of the given kind for a dataset. Kinds used by
// the pipeline: "loaded", "skipped", "dropped", "persisted".
func RecordRows(job, dataset, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":     job,
		"dataset": dataset,
		"kind":    kind,
	})
}

// RecordFinding adds the failed row count of one check. Zero counts are
// recorded too, so every check shows up in the backend.
func RecordFinding(job, dataset, check string, failed int) {
	backend.IncCounter(CheckFailedRows, float64(failed), Labels{
		"job":     job,
		"dataset": dataset,
		"check":   check,
	})
}

// RecordBatches increments a batch-level counter for the given job.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

type jobKey struct{}

// WithJob returns a context carrying the job label for code that records
// metrics without knowing the job, e.g. storage batch loops.
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobKey{}, job)
}

// JobFrom returns the job label set by WithJob, or "".
func JobFrom(ctx context.Context) string {
	job, _ := ctx.Value(jobKey{}).(string)
	return job
}
