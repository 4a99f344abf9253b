package core

import (
	"context"
	"sync"
	"time"
)

// Throttle enforces a minimum spacing between model calls so a busy agent
// does not trip provider rate limits. A zero interval disables throttling.
type Throttle struct {
	interval time.Duration
	last     time.Time
	count    int
	mu       sync.Mutex
	now      func() time.Time
}

// NewThrottle creates a throttle allowing one call per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, now: time.Now}
}

// Wait blocks until the next call is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.interval > 0 && !t.last.IsZero() {
		if d := t.interval - t.now().Sub(t.last); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	t.last = t.now()
	t.count++

	return nil
}

// Count returns the number of calls let through so far.
func (t *Throttle) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.count
}

// Interval returns the configured spacing.
func (t *Throttle) Interval() time.Duration { return t.interval }
