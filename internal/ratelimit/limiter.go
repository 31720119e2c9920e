// Package ratelimit bounds the frequency of two client-side admission
// points that are not broker-authoritative: reconnect attempts and
// pull-consumer refill requests. Both reuse the token-bucket pattern the
// teacher tree applies to inbound connection-flood protection
// (ws/internal/shared/limits), repurposed here as an outbound guard so a
// misconfigured server list or a buggy refill predicate cannot spin a tight
// loop against the broker.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter wraps golang.org/x/time/rate.Limiter with the narrow surface the
// supervisor and pull engine need.
type Limiter struct {
	l *rate.Limiter
}

// New creates a Limiter allowing burst immediate events and refilling at
// ratePerSec thereafter. ratePerSec <= 0 disables limiting (Wait returns
// immediately).
func New(ratePerSec float64, burst int) *Limiter {
	if ratePerSec <= 0 {
		return &Limiter{l: rate.NewLimiter(rate.Inf, burst)}
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until an event is admitted or ctx is done.
func (lm *Limiter) Wait(ctx context.Context) error {
	return lm.l.Wait(ctx)
}

// Allow reports whether an event may proceed right now without blocking.
func (lm *Limiter) Allow() bool {
	return lm.l.Allow()
}
