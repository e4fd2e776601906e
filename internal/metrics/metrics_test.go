package metrics

import (
	"testing"
	"time"
)

func TestPercentilesOnRead(t *testing.T) {
	m := New(nil)
	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	snap := m.Read()
	if snap.Processed != 100 {
		t.Fatalf("expected 100 processed, got %d", snap.Processed)
	}
	if snap.P50Ms != 50 {
		t.Fatalf("expected p50 of 50ms, got %dms", snap.P50Ms)
	}
	if snap.P95Ms != 95 {
		t.Fatalf("expected p95 of 95ms, got %dms", snap.P95Ms)
	}
	if snap.P99Ms != 99 {
		t.Fatalf("expected p99 of 99ms, got %dms", snap.P99Ms)
	}
}

func TestRingDropsOldestSamples(t *testing.T) {
	m := New(nil)
	// Fill the window with slow samples, then overwrite it with fast ones.
	for i := 0; i < sampleWindow; i++ {
		m.RecordSuccess(10 * time.Second)
	}
	for i := 0; i < sampleWindow; i++ {
		m.RecordSuccess(1 * time.Millisecond)
	}

	snap := m.Read()
	if snap.P99Ms > 1 {
		t.Fatalf("old samples should have been dropped, p99 = %dms", snap.P99Ms)
	}
	if snap.Processed != 2*sampleWindow {
		t.Fatalf("counters must survive the ring, got %d", snap.Processed)
	}
}

func TestErrorKindCounts(t *testing.T) {
	m := New(nil)
	m.RecordFailure("storage", time.Millisecond)
	m.RecordFailure("storage", time.Millisecond)
	m.RecordFailure("describe", time.Millisecond)

	snap := m.Read()
	if snap.Failed != 3 {
		t.Fatalf("expected 3 failures, got %d", snap.Failed)
	}
	if snap.ErrorKinds["storage"] != 2 || snap.ErrorKinds["describe"] != 1 {
		t.Fatalf("unexpected error kinds: %#v", snap.ErrorKinds)
	}
}

func TestEmptyWindow(t *testing.T) {
	m := New(nil)
	snap := m.Read()
	if snap.P50Ms != 0 || snap.P99Ms != 0 {
		t.Fatalf("empty window should report zero percentiles: %+v", snap)
	}
}
