package performance

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestWorkerPoolFunctionality tests worker pool basic functionality.
func TestWorkerPoolFunctionality(t *testing.T) {
	pool := NewWorkerPool(4)
	pool.Start()

	var counter int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := pool.SubmitWait(context.Background(), func() {
				atomic.AddInt64(&counter, 1)
			}); err != nil {
				t.Errorf("submit: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timeout waiting for tasks to complete")
	}

	pool.Stop()

	if counter != 50 {
		t.Errorf("Expected 50 tasks completed, got %d", counter)
	}
	stats := pool.Stats()
	if stats.Running || stats.TasksDone != 50 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestWorkerPoolStopped(t *testing.T) {
	pool := NewWorkerPool(1)
	if err := pool.SubmitWait(context.Background(), func() {}); err != ErrPoolStopped {
		t.Errorf("submit before start: err = %v", err)
	}
	pool.Start()
	pool.Stop()
	pool.Stop()
	if err := pool.SubmitWait(context.Background(), func() {}); err != ErrPoolStopped {
		t.Errorf("err = %v", err)
	}
}

func TestWorkerPoolSubmitWaitHonorsContext(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Start()
	defer pool.Stop()

	// Occupy the only worker, then fill the queue behind it.
	started := make(chan struct{})
	release := make(chan struct{})
	pool.taskQueue <- func() {
		close(started)
		<-release
	}
	<-started
	for i := 0; i < cap(pool.taskQueue); i++ {
		pool.taskQueue <- func() {}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := pool.SubmitWait(ctx, func() {})
	close(release)
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v", err)
	}
}
