package concurrency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestNewSemaphore_InvalidPermits(t *testing.T) {
	for _, permits := range []int{0, -1} {
		if _, err := NewSemaphore(permits); !errors.Is(err, ErrInvalidPermits) {
			t.Errorf("NewSemaphore(%d) error = %v, want ErrInvalidPermits", permits, err)
		}
	}
}

func TestSemaphore_AcquireWithFreePermitDoesNotWait(t *testing.T) {
	sem, err := NewSemaphore(2)
	if err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}

	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if got := sem.AvailablePermits(); got != 1 {
		t.Errorf("AvailablePermits() = %d, want 1", got)
	}
	if got := sem.QueueLength(); got != 0 {
		t.Errorf("QueueLength() = %d, want 0", got)
	}

	sem.Release()
	if got := sem.AvailablePermits(); got != 2 {
		t.Errorf("AvailablePermits() after release = %d, want 2", got)
	}
}

func TestSemaphore_ReleaseServesWaitersInFIFOOrder(t *testing.T) {
	sem, err := NewSemaphore(1)
	if err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}
	ctx := context.Background()
	if err := sem.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)

	for id := 1; id <= 3; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Errorf("waiter %d: %v", id, err)
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			sem.Release()
		}()
		waitForQueueLength(t, sem, id)
	}

	// Freed permit goes to the queue, not the free count.
	sem.Release()
	wg.Wait()

	want := []int{1, 2, 3}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if got := sem.AvailablePermits(); got != 1 {
		t.Errorf("AvailablePermits() = %d, want 1", got)
	}
}

func TestSemaphore_AcquireCancelledLeavesQueue(t *testing.T) {
	sem, err := NewSemaphore(1)
	if err != nil {
		t.Fatalf("NewSemaphore: %v", err)
	}
	if err := sem.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := sem.Acquire(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Acquire error = %v, want deadline exceeded", err)
	}
	if got := sem.QueueLength(); got != 0 {
		t.Errorf("QueueLength() = %d, want 0 after cancellation", got)
	}

	sem.Release()
	if got := sem.AvailablePermits(); got != 1 {
		t.Errorf("AvailablePermits() = %d, want 1", got)
	}
}

func waitForQueueLength(t *testing.T, sem *Semaphore, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for sem.QueueLength() < n {
		if time.Now().After(deadline) {
			t.Fatalf("queue length never reached %d", n)
		}
		time.Sleep(time.Millisecond)
	}
}
