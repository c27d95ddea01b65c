package etherscan

import (
	"context"

	"golang.org/x/time/rate"
)

// Pacer enforces a minimum interval between upstream requests. One shared
// instance paces every caller of a Client; with a burst of one the limiter is
// a pacing gate, not a semaphore: it bounds request cadence, never the number
// of concurrent callers waiting on it.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer that grants at most callsPerSecond requests.
func NewPacer(callsPerSecond float64) *Pacer {
	return &Pacer{limiter: rate.NewLimiter(rate.Limit(callsPerSecond), 1)}
}

// Acquire blocks until the next request slot is available. Cancelling the
// context abandons the wait without side effects.
func (p *Pacer) Acquire(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}
