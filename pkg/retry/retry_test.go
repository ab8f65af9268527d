package retry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func noSleepPolicy(attempts int, slept *[]time.Duration) Policy {
	return Policy{
		Attempts:  attempts,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  time.Second,
		Jitter:    func(d time.Duration) time.Duration { return d },
		Sleep: func(ctx context.Context, d time.Duration) error {
			*slept = append(*slept, d)
			return nil
		},
	}
}

func TestDo_RetriesTransientErrors(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := Do(context.Background(), noSleepPolicy(2, &slept), "lookup", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("HTTP 503: unavailable")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(slept) != 1 || slept[0] != 100*time.Millisecond {
		t.Errorf("slept = %v, want [100ms]", slept)
	}
}

func TestDo_DoesNotRetryPermanentErrors(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := Do(context.Background(), noSleepPolicy(3, &slept), "lookup", func(ctx context.Context) error {
		calls++
		return errors.New("HTTP 401: unauthorized")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if len(slept) != 0 {
		t.Errorf("slept = %v, want none", slept)
	}
}

func TestDo_GivesUpAfterAttempts(t *testing.T) {
	var slept []time.Duration
	calls := 0

	err := Do(context.Background(), noSleepPolicy(3, &slept), "lookup", func(ctx context.Context) error {
		calls++
		return errors.New("HTTP 429: too many requests")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !strings.Contains(err.Error(), "failed after 3 attempts") || !strings.Contains(err.Error(), "HTTP 429") {
		t.Errorf("error = %q, want attempt count and cause", err)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("slept = %v, want %v", slept, want)
	}
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}
	if got := p.backoff(5); got != 3*time.Second {
		t.Errorf("backoff(5) = %v, want 3s", got)
	}
}

func TestFullJitterStaysInRange(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := fullJitter(time.Second)
		if d < 500*time.Millisecond || d > time.Second {
			t.Fatalf("fullJitter(1s) = %v, out of [500ms, 1s]", d)
		}
	}
}
