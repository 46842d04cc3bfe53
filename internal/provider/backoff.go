package provider

import (
	"context"
	"sync"
	"time"
)

// Backoff is the shared pacing signal raised when any worker observes a
// rate-limit error and consulted by every worker before its next send. The
// delay only grows during a run; it is never lowered, so pacing stays
// monotonic no matter which worker observed the 429.
type Backoff struct {
	mu    sync.Mutex
	delay time.Duration

	base time.Duration
	cap  time.Duration
}

// NewBackoff returns a backoff starting at zero delay that, once raised,
// doubles from base up to cap.
func NewBackoff(base, cap time.Duration) *Backoff {
	return &Backoff{base: base, cap: cap}
}

// Raise increases the shared delay. The first raise sets the base delay;
// subsequent raises double it up to the cap.
func (b *Backoff) Raise() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.delay == 0 {
		b.delay = b.base
		return
	}
	b.delay *= 2
	if b.delay > b.cap {
		b.delay = b.cap
	}
}

// Current returns the delay workers should observe before sending.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay
}

// Wait sleeps for the current delay, returning early if ctx is cancelled.
func (b *Backoff) Wait(ctx context.Context) error {
	d := b.Current()
	if d == 0 {
		return ctx.Err()
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
