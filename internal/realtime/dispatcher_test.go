package realtime

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatcherRunsJobs(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{QueueSize: 4, Workers: 2}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		if err := dispatcher.Enqueue(context.Background(), func(context.Context) { ran.Add(1) }); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}

	waitForCondition(t, func() bool { return ran.Load() == 5 }, time.Second)
}

func TestDispatcherRecoversFromPanics(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)

	if err := dispatcher.Enqueue(context.Background(), func(context.Context) { panic("boom") }); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan struct{})
	if err := dispatcher.Enqueue(context.Background(), func(context.Context) { close(done) }); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not survive a panicking job")
	}
}

func TestDispatcherJobTimeout(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{Workers: 1, JobTimeout: 20 * time.Millisecond}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)

	result := make(chan error, 1)
	if err := dispatcher.Enqueue(context.Background(), func(ctx context.Context) {
		<-ctx.Done()
		result <- ctx.Err()
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	select {
	case err := <-result:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("job context was not canceled")
	}
}

func TestDispatcherEnqueueAfterShutdown(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{}, nil)
	shutdownDispatcher(t, dispatcher)

	err := dispatcher.Enqueue(context.Background(), func(context.Context) {})
	if !errors.Is(err, ErrDispatcherClosed) {
		t.Fatalf("expected ErrDispatcherClosed got %v", err)
	}
}

func TestDispatcherEnqueueHonoursCallerContext(t *testing.T) {
	dispatcher := NewDispatcher(DispatcherConfig{QueueSize: 1, Workers: 1}, discardLogger())
	defer shutdownDispatcher(t, dispatcher)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})

	_ = dispatcher.Enqueue(context.Background(), func(context.Context) {
		close(started)
		<-release
	})
	<-started
	_ = dispatcher.Enqueue(context.Background(), func(context.Context) {})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := dispatcher.Enqueue(ctx, func(context.Context) {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded on full queue got %v", err)
	}
}

func shutdownDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown dispatcher: %v", err)
	}
}

func waitForCondition(t *testing.T, predicate func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if predicate() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
