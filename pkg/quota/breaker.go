package quota

import (
	"sync"
	"sync/atomic"
)

// Breaker is a one-way switch: once tripped it stays tripped. A Breaker lives
// for a single worker run. Reads are lock-free and may race with a concurrent
// trip; callers treat it as best-effort.
type Breaker struct {
	tripped atomic.Bool
	once    sync.Once
	reason  atomic.Value // string
}

// Observe trips the breaker when msg matches a quota pattern. It returns true
// only for the call that tripped it.
func (b *Breaker) Observe(msg string) bool {
	if !IsQuotaExhausted(msg) {
		return false
	}
	return b.Trip(msg)
}

// Trip opens the breaker. It returns true only for the first call.
func (b *Breaker) Trip(reason string) bool {
	first := false
	b.once.Do(func() {
		b.reason.Store(reason)
		b.tripped.Store(true)
		first = true
	})
	return first
}

// Tripped reports whether further primary-provider calls must be suppressed.
func (b *Breaker) Tripped() bool {
	return b.tripped.Load()
}

// Reason returns the message that tripped the breaker, or "".
func (b *Breaker) Reason() string {
	if v, ok := b.reason.Load().(string); ok {
		return v
	}
	return ""
}
