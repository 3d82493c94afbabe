// Package spamguard implements the per-client fixed-window rate limiter and
// temporary ban gate that protects message posting.
//
// State lives entirely in a Store: one RateWindow and at most one Ban per
// client identifier. The two records are independent, coupled only by the
// rule that saturating a window creates a ban. Gate.Admit evaluates the ban
// first, then the window, and writes at most two records per call.
package spamguard

import (
	"errors"
	"time"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	// Allowed admits the request.
	Allowed Decision = iota

	// RateLimited rejects the request that saturated its window. A ban has
	// been activated as a side effect.
	RateLimited

	// Banned rejects a request from a client whose ban is still active.
	Banned
)

// String returns the decision name for logs.
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case RateLimited:
		return "rate_limited"
	case Banned:
		return "banned"
	default:
		return "unknown"
	}
}

// Verdict is a Decision plus how long the client should wait before
// retrying. RetryAfter is zero for Allowed.
type Verdict struct {
	Decision   Decision
	RetryAfter time.Duration
}

// RateWindow counts admitted requests for one client within a fixed window.
type RateWindow struct {
	Count       int       `json:"count"`
	WindowStart time.Time `json:"windowStart"`
}

// Ban blocks a client until ExpiresAt.
type Ban struct {
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the ban still blocks at now.
func (b Ban) Active(now time.Time) bool {
	return now.Before(b.ExpiresAt)
}

// MinMessageLimit is the smallest usable MessageLimit.
const MinMessageLimit = 2

// Policy holds the gate's constants.
type Policy struct {
	// Enabled toggles the gate. A disabled gate admits everything and never
	// touches the store.
	Enabled bool

	// MessageLimit is the request count that saturates a window. The
	// request that reaches it is rejected. At least MinMessageLimit.
	MessageLimit int

	// Window is the fixed window length.
	Window time.Duration

	// BanDuration is how long a saturating client stays banned.
	BanDuration time.Duration
}

// DefaultPolicy returns five messages per minute and a five minute ban.
func DefaultPolicy() Policy {
	return Policy{
		Enabled:      true,
		MessageLimit: 5,
		Window:       60 * time.Second,
		BanDuration:  5 * time.Minute,
	}
}

// ErrInvalidPolicy is returned by NewGate for unusable policies.
var ErrInvalidPolicy = errors.New("invalid spam guard policy")
