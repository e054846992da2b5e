package aggregator

import (
	"context"
	"time"

	"github.com/daimoniac/pkgwatch/internal/observability"
)

// DefaultRateDelay is the minimum spacing between two aggregator requests.
const DefaultRateDelay = time.Second

// RateGate spaces successive calls by at least a fixed delay.
// Callers are served one at a time; the turn is a one-slot channel so that
// waiting for it honours the caller's context.
type RateGate struct {
	turn  chan struct{}
	delay time.Duration
	last  time.Time
	now   func() time.Time
}

// NewRateGate creates a gate enforcing delay between acquisitions.
func NewRateGate(delay time.Duration) *RateGate {
	return &RateGate{turn: make(chan struct{}, 1), delay: delay, now: time.Now}
}

// Acquire blocks until at least delay has passed since the previous acquisition.
// It returns ctx.Err() if the context ends while queued behind another caller
// or while waiting out the delay; the slot is then not consumed.
func (g *RateGate) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case g.turn <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.turn }()

	if !g.last.IsZero() {
		wait := g.delay - g.now().Sub(g.last)
		if wait > 0 {
			observability.GetMetrics().RateLimitWait.Observe(wait.Seconds())

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	g.last = g.now()
	return nil
}

// Delay returns the configured spacing.
func (g *RateGate) Delay() time.Duration {
	return g.delay
}
