// Package retry runs an operation with bounded attempts and exponential
// backoff with jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"podnotes/pkg/quota"
)

const (
	defaultAttempts  = 2
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 5 * time.Second
)

// Policy controls how Do retries.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Retryable decides whether err is worth another attempt. Defaults to
	// quota.IsTransient on the error message.
	Retryable func(error) bool
	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter maps a computed delay to the delay actually slept.
	Jitter func(time.Duration) time.Duration
}

// DefaultPolicy is two attempts with jittered exponential backoff.
func DefaultPolicy() Policy {
	return Policy{Attempts: defaultAttempts, BaseDelay: defaultBaseDelay, MaxDelay: defaultMaxDelay}
}

// Do calls fn until it succeeds, returns a non-retryable error, or runs out of
// attempts. The last error is returned wrapped with op. A cancelled sleep also
// ends the loop with the last error.
func Do(ctx context.Context, p Policy, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var (
		lastErr error
		made    int
	)
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		made = attempt
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.Attempts || !p.shouldRetry(ctx, err) {
			break
		}
		if err := p.Sleep(ctx, p.Jitter(p.backoff(attempt))); err != nil {
			return fmt.Errorf("%s: %w", op, lastErr)
		}
	}

	if made == 1 {
		return fmt.Errorf("%s: %w", op, lastErr)
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, made, lastErr)
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return quota.IsTransient(err.Error()) }
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	if p.Jitter == nil {
		p.Jitter = fullJitter
	}
	return p
}

func (p Policy) shouldRetry(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return p.Retryable(err)
}

// backoff returns base, base*2, base*4, ... capped at MaxDelay.
func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// fullJitter keeps half the delay and randomizes the other half.
func fullJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	half := d / 2
	return half + time.Duration(rand.Int64N(int64(half)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
