package concurrency

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// ErrInvalidPermits is returned when a semaphore is created without permits.
var ErrInvalidPermits = errors.New("semaphore permits must be greater than zero")

// Semaphore is a counting semaphore with a FIFO wait queue. A released permit
// is handed directly to the oldest waiter, so later callers can never overtake
// a queued one.
type Semaphore struct {
	mu      sync.Mutex
	permits int
	waiters list.List // of chan struct{}
}

// NewSemaphore creates a semaphore with the given number of permits.
func NewSemaphore(permits int) (*Semaphore, error) {
	if permits <= 0 {
		return nil, ErrInvalidPermits
	}
	return &Semaphore{permits: permits}, nil
}

// Acquire takes a permit, waiting in FIFO order when none are free. It returns
// immediately when a permit is available and nobody is queued. If ctx ends
// while waiting, the caller leaves the queue and ctx.Err() is returned.
func (s *Semaphore) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if s.permits > 0 && s.waiters.Len() == 0 {
		s.permits--
		s.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := s.waiters.PushBack(ready)
	s.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		select {
		case <-ready:
			// Release handed us the permit after ctx ended; pass it on.
			s.mu.Unlock()
			s.Release()
		default:
			s.waiters.Remove(elem)
			s.mu.Unlock()
		}
		return ctx.Err()
	}
}

// Release returns a permit. The oldest waiter, if any, receives it directly.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if front := s.waiters.Front(); front != nil {
		s.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}
	s.permits++
}

// AvailablePermits reports the free permits. For monitoring only.
func (s *Semaphore) AvailablePermits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permits
}

// QueueLength reports how many callers are waiting. For monitoring only.
func (s *Semaphore) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}
