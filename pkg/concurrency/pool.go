package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrTaskPanicked wraps a panic recovered from a pool task.
var ErrTaskPanicked = errors.New("pool task panicked")

// WorkerFunc processes one item. index is the item's position in the input.
type WorkerFunc[T, R any] func(ctx context.Context, item T, index int) (R, error)

// ProgressFunc is invoked after every completed item. Calls are serialized.
type ProgressFunc func(Progress)

// Progress is a snapshot taken right after an item completes.
type Progress struct {
	Completed          int
	Total              int
	Active             int
	Percentage         float64
	Elapsed            time.Duration
	EstimatedRemaining time.Duration
}

// Result holds per-item outcomes in input order. For a failed item Errors[i]
// is set and Results[i] is the zero value.
type Result[R any] struct {
	Results      []R
	Errors       []error
	SuccessCount int
	ErrorCount   int
	TotalElapsed time.Duration
	// PeakActive is the highest number of items observed in flight.
	PeakActive int
}

// Pool runs a worker over a slice with at most `concurrency` items in flight.
// A failing item never stops its siblings.
type Pool[T, R any] struct {
	sem         *Semaphore
	concurrency int
	now         func() time.Time
}

// NewPool creates a pool bounded to concurrency in-flight items.
func NewPool[T, R any](concurrency int) (*Pool[T, R], error) {
	sem, err := NewSemaphore(concurrency)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	return &Pool[T, R]{sem: sem, concurrency: concurrency, now: time.Now}, nil
}

// Concurrency returns the configured bound.
func (p *Pool[T, R]) Concurrency() int {
	return p.concurrency
}

// Process runs worker over items and waits for all of them. Permits are taken
// in input order, so items start in the order given. An empty input returns
// at once with zero counts.
func (p *Pool[T, R]) Process(ctx context.Context, items []T, worker WorkerFunc[T, R], onProgress ProgressFunc) Result[R] {
	total := len(items)
	if total == 0 {
		return Result[R]{Results: []R{}, Errors: []error{}}
	}

	start := p.now()
	out := Result[R]{
		Results: make([]R, total),
		Errors:  make([]error, total),
	}

	var (
		mu        sync.Mutex
		completed int
		active    atomic.Int64
		peak      atomic.Int64
		g         errgroup.Group
	)

	finish := func(index int, r R, err error) {
		mu.Lock()
		defer mu.Unlock()

		if err != nil {
			out.Errors[index] = err
			out.ErrorCount++
		} else {
			out.Results[index] = r
			out.SuccessCount++
		}
		completed++

		if onProgress == nil {
			return
		}
		elapsed := p.now().Sub(start)
		var remaining time.Duration
		if completed > 0 {
			remaining = time.Duration(float64(elapsed) / float64(completed) * float64(total-completed))
		}
		onProgress(Progress{
			Completed:          completed,
			Total:              total,
			Active:             int(active.Load()),
			Percentage:         float64(completed) * 100 / float64(total),
			Elapsed:            elapsed,
			EstimatedRemaining: remaining,
		})
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			var zero R
			finish(i, zero, err)
			continue
		}
		if err := p.sem.Acquire(ctx); err != nil {
			var zero R
			finish(i, zero, err)
			continue
		}

		g.Go(func() error {
			n := active.Add(1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}

			r, err := runTask(ctx, worker, item, i)

			active.Add(-1)
			p.sem.Release()
			finish(i, r, err)
			return nil
		})
	}

	_ = g.Wait()

	out.TotalElapsed = p.now().Sub(start)
	out.PeakActive = int(peak.Load())
	return out
}

func runTask[T, R any](ctx context.Context, worker WorkerFunc[T, R], item T, index int) (r R, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: item %d: %v", ErrTaskPanicked, index, rec)
		}
	}()
	return worker(ctx, item, index)
}
