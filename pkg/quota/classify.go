// Package quota classifies provider failures and carries the per-run circuit
// breaker that stops primary-provider calls once the metered allowance is gone.
package quota

import "strings"

// Class is the handling category of a provider error message.
type Class int

const (
	// Permanent errors (auth, validation) are never retried.
	Permanent Class = iota
	// Transient errors (timeouts, resets, 5xx, 429) are retried with backoff.
	Transient
	// Exhausted errors mean the provider quota is spent and trip the breaker.
	Exhausted
)

func (c Class) String() string {
	switch c {
	case Transient:
		return "transient"
	case Exhausted:
		return "quota_exhausted"
	default:
		return "permanent"
	}
}

var quotaPatterns = []string{
	"http 429",
	"credits exceeded",
	"quota exceeded",
	"rate limit",
	"too many requests",
	"credits_exceeded",
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"broken pipe",
	"unexpected eof",
	"http 500",
	"http 502",
	"http 503",
	"http 504",
	"http 429",
	"too many requests",
}

// IsQuotaExhausted reports whether msg signals an exhausted provider quota.
// Matching is a case-insensitive substring test.
func IsQuotaExhausted(msg string) bool {
	return containsAny(strings.ToLower(msg), quotaPatterns)
}

// IsTransient reports whether msg describes a failure worth retrying.
func IsTransient(msg string) bool {
	return containsAny(strings.ToLower(msg), transientPatterns)
}

// Classify picks the breaker-relevant class first: a 429 is both transient
// and quota-related, and once retries are spent it must trip the breaker.
func Classify(msg string) Class {
	switch {
	case IsQuotaExhausted(msg):
		return Exhausted
	case IsTransient(msg):
		return Transient
	default:
		return Permanent
	}
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
