package llm

import (
	"context"
	"time"
)

// Limiter is the minimal acquire-one contract the broker and the rate
// middleware share.
type Limiter interface {
	Acquire(ctx context.Context) error
}

// rpsLimiter is a token bucket refilled at a fixed rate. A nil limiter is
// valid and admits everything, which keeps call sites free of rate checks.
type rpsLimiter struct {
	tokens chan struct{}
	stopCh chan struct{}
}

// newRPSLimiter allows up to rps events per second with the given burst
// capacity. rps <= 0 disables limiting (returns nil); burst is clamped to at
// least 1. Fractional rates yield sub-second refill periods.
func newRPSLimiter(rps float64, burst int) *rpsLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}

	l := &rpsLimiter{
		tokens: make(chan struct{}, burst),
		stopCh: make(chan struct{}),
	}
	for i := 0; i < burst; i++ {
		l.tokens <- struct{}{}
	}

	period := time.Duration(float64(time.Second) / rps)
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case l.tokens <- struct{}{}:
				default:
					// bucket full
				}
			case <-l.stopCh:
				return
			}
		}
	}()
	return l
}

// Acquire blocks until a token is available, the limiter stops, or ctx ends.
func (l *rpsLimiter) Acquire(ctx context.Context) error {
	if l == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopCh:
		return context.Canceled
	case <-l.tokens:
		return nil
	}
}

// AcquireN takes n tokens sequentially, failing fast on context expiry.
func (l *rpsLimiter) AcquireN(ctx context.Context, n int) error {
	if l == nil || n <= 0 {
		return nil
	}
	for i := 0; i < n; i++ {
		if err := l.Acquire(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop terminates the refill goroutine. Safe on nil.
func (l *rpsLimiter) Stop() {
	if l == nil {
		return
	}
	close(l.stopCh)
}

// NewLimiter exposes a Limiter backed by a token bucket; nil when disabled.
func NewLimiter(rps float64, burst int) Limiter {
	if rps <= 0 {
		return nil
	}
	return newRPSLimiter(rps, burst)
}
