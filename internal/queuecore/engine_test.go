package queuecore

import (
	"testing"
)

// t0 matches spec.md §8's frozen-clock end-to-end scenarios.
const t0 int64 = 1_700_000_000_000

func newTestEngine(t *testing.T) (*Store, *Engine, *int64) {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clock := t0
	engine := &Engine{store: store, now: func() int64 { return clock }}
	return store, engine, &clock
}

func mustMaxAttempts(n int) *int { return &n }

func TestEngineEnqueueDequeueComplete(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	job, err := engine.Enqueue(EnqueueInput{ID: "job-1", Type: "crawl", Target: "https://example.com", CreatedAt: *clock})
	if err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if job.Status != StatusQueued {
		t.Errorf("status = %q, want %q", job.Status, StatusQueued)
	}
	if job.MaxAttempts != defaultMaxAttempts {
		t.Errorf("maxAttempts = %d, want %d", job.MaxAttempts, defaultMaxAttempts)
	}

	res, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res.Job == nil {
		t.Fatal("Dequeue returned no job")
	}
	if res.Job.Status != StatusProcessing {
		t.Errorf("status = %q, want %q", res.Job.Status, StatusProcessing)
	}
	if res.LeaseUntil != *clock+LeaseMS {
		t.Errorf("leaseUntil = %d, want %d", res.LeaseUntil, *clock+LeaseMS)
	}

	if err := engine.Complete("job-1", map[string]any{"ok": true}); err != nil {
		t.Fatalf("Complete error: %v", err)
	}
}

func TestEngineEnqueueDuplicateID(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	if _, err := engine.Enqueue(EnqueueInput{ID: "dup", Type: "crawl", Target: "t", CreatedAt: *clock}); err != nil {
		t.Fatalf("first Enqueue error: %v", err)
	}
	_, err := engine.Enqueue(EnqueueInput{ID: "dup", Type: "crawl", Target: "t", CreatedAt: *clock})
	if err != ErrConflict {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestEngineEnqueueInvalidPayload(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	cases := []EnqueueInput{
		{ID: "", Type: "crawl", Target: "t", CreatedAt: *clock},
		{ID: "x", Type: "bogus", Target: "t", CreatedAt: *clock},
		{ID: "x", Type: "crawl", Target: "", CreatedAt: *clock},
	}
	for _, in := range cases {
		if _, err := engine.Enqueue(in); err != ErrInvalidPayload {
			t.Errorf("Enqueue(%+v) err = %v, want ErrInvalidPayload", in, err)
		}
	}
}

func TestEngineDequeueOrdering(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	for i, id := range []string{"a", "b", "c"} {
		if _, err := engine.Enqueue(EnqueueInput{ID: id, Type: "crawl", Target: "t", CreatedAt: *clock + int64(i)}); err != nil {
			t.Fatalf("Enqueue(%s) error: %v", id, err)
		}
	}

	res, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res.Job.ID != "a" {
		t.Errorf("first dequeued = %q, want %q (oldest createdAt first)", res.Job.ID, "a")
	}
}

func TestEngineDequeueEmpty(t *testing.T) {
	_, engine, _ := newTestEngine(t)

	res, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res.Job != nil {
		t.Errorf("expected no job, got %+v", res.Job)
	}
}

// TestEngineFailRetriesThenFails walks the exact backoff schedule from
// spec.md §4.2/§8: attempts 1 and 2 retry with 10s/60s backoff, attempt 3
// (== maxAttempts) moves the job to failed.
func TestEngineFailRetriesThenFails(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	if _, err := engine.Enqueue(EnqueueInput{ID: "flaky", Type: "crawl", Target: "t", CreatedAt: *clock, MaxAttempts: mustMaxAttempts(3)}); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}

	if _, err := engine.Dequeue(); err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	r1, err := engine.Fail("flaky", "boom-1")
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if !r1.Retried || r1.NextRunAt == nil || *r1.NextRunAt != *clock+10_000 {
		t.Fatalf("first failure = %+v, want retry with 10s backoff", r1)
	}

	*clock += 10_000
	res2, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res2.Job == nil || res2.Job.ID != "flaky" {
		t.Fatalf("expected reclaimed job after backoff elapsed, got %+v", res2.Job)
	}
	r2, err := engine.Fail("flaky", "boom-2")
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if !r2.Retried || *r2.NextRunAt != *clock+60_000 {
		t.Fatalf("second failure = %+v, want retry with 60s backoff", r2)
	}

	*clock += 60_000
	if _, err := engine.Dequeue(); err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	r3, err := engine.Fail("flaky", "boom-3")
	if err != nil {
		t.Fatalf("Fail error: %v", err)
	}
	if r3.Retried {
		t.Fatalf("third failure = %+v, want terminal failed state", r3)
	}

	job, err := NewInspector(engine.store).Get("flaky")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if job.Status != StatusFailed {
		t.Errorf("status = %q, want %q", job.Status, StatusFailed)
	}
	if job.Error == nil || *job.Error != "boom-3" {
		t.Errorf("error = %v, want %q", job.Error, "boom-3")
	}
}

func TestEngineFailUnknownJob(t *testing.T) {
	_, engine, _ := newTestEngine(t)

	if _, err := engine.Fail("nope", "boom"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestEngineDequeueReclaimsExpiredLease verifies that a job whose lease has
// expired is handed out again without its attempts counter moving, and that
// a still-leased job is left alone (spec.md §4.2's reclaim semantics).
func TestEngineDequeueReclaimsExpiredLease(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	if _, err := engine.Enqueue(EnqueueInput{ID: "stuck", Type: "crawl", Target: "t", CreatedAt: *clock}); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if _, err := engine.Dequeue(); err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}

	// Still within the lease: nothing eligible.
	*clock += LeaseMS - 1
	res, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res.Job != nil {
		t.Fatalf("expected no reclaim before lease expiry, got %+v", res.Job)
	}

	// Lease has now expired.
	*clock += 2
	res2, err := engine.Dequeue()
	if err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if res2.Job == nil || res2.Job.ID != "stuck" {
		t.Fatalf("expected reclaim of expired lease, got %+v", res2.Job)
	}
	if res2.Job.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 (reclaim must not count as a failure)", res2.Job.Attempts)
	}
}

func TestEngineRequeue(t *testing.T) {
	_, engine, clock := newTestEngine(t)

	if _, err := engine.Enqueue(EnqueueInput{ID: "dead", Type: "crawl", Target: "t", CreatedAt: *clock, MaxAttempts: mustMaxAttempts(1)}); err != nil {
		t.Fatalf("Enqueue error: %v", err)
	}
	if _, err := engine.Dequeue(); err != nil {
		t.Fatalf("Dequeue error: %v", err)
	}
	if _, err := engine.Fail("dead", "fatal"); err != nil {
		t.Fatalf("Fail error: %v", err)
	}

	job, err := engine.Requeue("dead")
	if err != nil {
		t.Fatalf("Requeue error: %v", err)
	}
	if job.Status != StatusQueued {
		t.Errorf("status = %q, want %q", job.Status, StatusQueued)
	}
	if job.Error != nil {
		t.Errorf("error = %v, want nil", job.Error)
	}

	if _, err := NewEngine(engine.store).Requeue("dead"); err != ErrInvalidState {
		t.Fatalf("err = %v, want ErrInvalidState on already-queued job", err)
	}
}

func TestEngineRequeueUnknown(t *testing.T) {
	_, engine, _ := newTestEngine(t)

	if _, err := engine.Requeue("ghost"); err != ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
