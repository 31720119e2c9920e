// Package backoff implements the randomized, capped exponential backoff the
// connection supervisor uses between reconnect attempts (spec.md §4.6).
package backoff

import (
	"math/rand"
	"time"
)

// Backoff computes successive delays: min * 2^attempt, capped at max, with
// +/- jitter fraction applied.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Jitter float64 // fraction of the computed delay to randomize, e.g. 0.1
}

// Default mirrors common NATS client defaults: 200ms initial, 8s cap, 10%
// jitter.
func Default() Backoff {
	return Backoff{Min: 200 * time.Millisecond, Max: 8 * time.Second, Jitter: 0.1}
}

// Delay returns the delay to wait before reconnect attempt number attempt
// (0-indexed).
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Min <= 0 {
		b.Min = 200 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 8 * time.Second
	}

	d := b.Min
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
		if d > b.Max {
			d = b.Max
			break
		}
	}

	if b.Jitter > 0 {
		delta := float64(d) * b.Jitter
		d = d - time.Duration(delta) + time.Duration(rand.Float64()*2*delta)
	}
	if d < 0 {
		d = 0
	}
	return d
}
