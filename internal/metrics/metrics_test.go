package metrics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeBackend records every call in memory.
type fakeBackend struct {
	mu sync.Mutex

	counters   []counterCall
	histograms []histCall
	flushes    int
}

type counterCall struct {
	name   string
	delta  float64
	labels Labels
}

type histCall struct {
	name   string
	value  float64
	labels Labels
}

func (f *fakeBackend) IncCounter(name string, delta float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = append(f.counters, counterCall{name, delta, labels})
}

func (f *fakeBackend) ObserveHistogram(name string, value float64, labels Labels) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.histograms = append(f.histograms, histCall{name, value, labels})
}

func (f *fakeBackend) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return nil
}

func install(t *testing.T) *fakeBackend {
	t.Helper()
	orig := backend
	t.Cleanup(func() { backend = orig })
	fb := &fakeBackend{}
	backend = fb
	return fb
}

func TestRecordStep(t *testing.T) {
	fb := install(t)

	RecordStep("nightly", "load", nil, 2*time.Second)
	RecordStep("nightly", "persist", errors.New("boom"), 1500*time.Millisecond)

	if len(fb.counters) != 2 || len(fb.histograms) != 2 {
		t.Fatalf("calls = %d counters, %d histograms; want 2 and 2", len(fb.counters), len(fb.histograms))
	}

	c0 := fb.counters[0]
	if c0.name != StepTotal || c0.delta != 1 {
		t.Fatalf("counter[0] = %#v; want %s delta 1", c0, StepTotal)
	}
	if c0.labels["job"] != "nightly" || c0.labels["step"] != "load" || c0.labels["status"] != "success" {
		t.Fatalf("counter[0].labels = %v", c0.labels)
	}
	if fb.counters[1].labels["status"] != "failure" {
		t.Fatalf("counter[1].labels[status] = %q; want failure", fb.counters[1].labels["status"])
	}

	h0 := fb.histograms[0]
	if h0.name != StepDuration {
		t.Fatalf("hist[0].name = %q; want %s", h0.name, StepDuration)
	}
	if h0.value < 1.999 || h0.value > 2.001 {
		t.Fatalf("hist[0].value = %v; want ~2.0", h0.value)
	}
	if v := fb.histograms[1].value; v < 1.499 || v > 1.501 {
		t.Fatalf("hist[1].value = %v; want ~1.5", v)
	}
}

func TestRecordRowsAndBatches(t *testing.T) {
	fb := install(t)

	RecordRows("nightly", "policies", "loaded", 4)
	RecordRows("nightly", "policies", "dropped", 0) // ignored
	RecordRows("nightly", "payments", "dropped", 2)
	RecordBatches("nightly", 3)
	RecordBatches("nightly", 0) // ignored

	if len(fb.counters) != 3 {
		t.Fatalf("expected 3 counter calls, got %d", len(fb.counters))
	}

	c0 := fb.counters[0]
	if c0.name != RecordsTotal || c0.delta != 4 {
		t.Fatalf("counter[0] = %#v; want %s delta 4", c0, RecordsTotal)
	}
	if c0.labels["dataset"] != "policies" || c0.labels["kind"] != "loaded" {
		t.Fatalf("counter[0].labels = %v", c0.labels)
	}
	c1 := fb.counters[1]
	if c1.labels["dataset"] != "payments" || c1.labels["kind"] != "dropped" || c1.delta != 2 {
		t.Fatalf("counter[1] = %#v", c1)
	}
	c2 := fb.counters[2]
	if c2.name != BatchesTotal || c2.delta != 3 || c2.labels["job"] != "nightly" {
		t.Fatalf("counter[2] = %#v", c2)
	}
}

func TestRecordFindingKeepsZero(t *testing.T) {
	fb := install(t)

	RecordFinding("nightly", "policies", "Unique policy_id", 1)
	RecordFinding("nightly", "agents", "Unique agent_id", 0)

	if len(fb.counters) != 2 {
		t.Fatalf("expected 2 counter calls, got %d", len(fb.counters))
	}
	if c := fb.counters[1]; c.name != CheckFailedRows || c.delta != 0 || c.labels["check"] != "Unique agent_id" {
		t.Fatalf("counter[1] = %#v", c)
	}
}

func TestSetBackendAndFlush(t *testing.T) {
	orig := backend
	defer func() { backend = orig }()

	fb := &fakeBackend{}
	SetBackend(fb)
	if backend != fb {
		t.Fatal("SetBackend did not replace global backend")
	}
	if err := Flush(); err != nil {
		t.Fatalf("Flush returned error: %v", err)
	}
	if fb.flushes != 1 {
		t.Fatalf("flushes = %d; want 1", fb.flushes)
	}

	SetBackend(nil)
	if backend != fb {
		t.Fatal("SetBackend(nil) should not change backend")
	}
}

func TestJobFromContext(t *testing.T) {
	if got := JobFrom(context.Background()); got != "" {
		t.Fatalf("JobFrom(empty ctx) = %q; want empty", got)
	}
	if got := JobFrom(WithJob(context.Background(), "nightly")); got != "nightly" {
		t.Fatalf("JobFrom = %q; want nightly", got)
	}
}
