package fetch

import (
	"context"
	"time"
)

// DelayPolicy enforces a fixed pause between page fetches. It is a
// deliberate throttle, not a scheduler: Wait blocks until the interval
// since the previous fetch has elapsed or the context is done.
type DelayPolicy struct {
	interval time.Duration
	last     time.Time

	sleep func(context.Context, time.Duration)
}

// NewDelayPolicy creates a policy with the given interval. A zero or
// negative interval disables waiting.
func NewDelayPolicy(interval time.Duration) *DelayPolicy {
	return &DelayPolicy{
		interval: interval,
		sleep: func(ctx context.Context, d time.Duration) {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
			}
		},
	}
}

// Wait blocks out the remainder of the interval since the last fetch,
// then marks now as the last fetch time.
func (p *DelayPolicy) Wait(ctx context.Context) {
	if p.interval > 0 && !p.last.IsZero() {
		if remaining := p.interval - time.Since(p.last); remaining > 0 {
			p.sleep(ctx, remaining)
		}
	}
	p.last = time.Now()
}
