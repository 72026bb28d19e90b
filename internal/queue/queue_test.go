package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitRunsJob(t *testing.T) {
	q := New(2, 8)
	defer q.Shutdown()

	done := make(chan string, 1)
	h := q.Submit("test_job", func(ctx context.Context) {
		done <- "ran"
	})
	if h == nil {
		t.Fatal("Submit returned nil handle")
	}
	if h.Name != "test_job" {
		t.Errorf("handle name = %q", h.Name)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("handle not marked done")
	}
}

func TestShutdownWaitsForInflightJobs(t *testing.T) {
	q := New(1, 8)

	var finished atomic.Bool
	q.Submit("slow_job", func(ctx context.Context) {
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
	})

	q.Shutdown()

	if !finished.Load() {
		t.Error("Shutdown returned before the in-flight job finished")
	}
}

func TestShutdownWithSubmitBlockedOnFullBuffer(t *testing.T) {
	q := New(1, 1)

	release := make(chan struct{})
	q.Submit("occupier", func(ctx context.Context) { <-release })
	q.Submit("buffered", func(ctx context.Context) {})

	// A third submit blocks on the full buffer
	panicked := make(chan any, 1)
	submitted := make(chan *Handle, 1)
	go func() {
		defer func() { panicked <- recover() }()
		submitted <- q.Submit("blocked", func(ctx context.Context) {})
	}()

	time.Sleep(20 * time.Millisecond)
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	q.Shutdown()

	if p := <-panicked; p != nil {
		t.Fatalf("Submit panicked during Shutdown: %v", p)
	}

	// The blocked submit either completed before intake closed (and its
	// job drained) or was rejected cleanly; it must never leave a handle
	// that will not finish.
	if h := <-submitted; h != nil {
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("job accepted during shutdown never ran")
		}
	}
}

func TestSubmitAfterShutdownReturnsNil(t *testing.T) {
	q := New(1, 8)
	q.Shutdown()

	if h := q.Submit("late_job", func(ctx context.Context) {}); h != nil {
		t.Error("Submit after shutdown returned a handle")
	}
}

func TestPanickingJobDoesNotKillWorker(t *testing.T) {
	q := New(1, 8)
	defer q.Shutdown()

	bad := q.Submit("panics", func(ctx context.Context) {
		panic("boom")
	})
	<-bad.Done()

	done := make(chan struct{})
	q.Submit("survivor", func(ctx context.Context) {
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
}
