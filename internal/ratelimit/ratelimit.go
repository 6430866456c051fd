// Package ratelimit throttles repeated authentication attempts per client
// origin. The identity lockout lives on the user record; this package only
// covers the pre-authentication, per-origin window.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one attempt against an origin's window.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts attempts per origin inside a fixed window. Allow records the
// attempt; Clear drops the origin entirely, which happens on any successful
// authentication from it.
type Limiter interface {
	Allow(ctx context.Context, origin string) (Decision, error)
	Clear(ctx context.Context, origin string) error
}
