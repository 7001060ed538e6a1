package capability

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many adapted synchronous handlers run at once.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool admitting up to size concurrent jobs. Non-positive
// sizes fall back to 8.
func NewPool(size int) *Pool {
	if size <= 0 {
		size = 8
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Run executes fn on its own goroutine once a slot is free. If ctx expires
// while waiting or running, the context error is returned; a job already
// started still runs to completion so its slot is released.
func (p *Pool) Run(ctx context.Context, fn func() (any, error)) (any, error) {
	if p == nil || p.sem == nil {
		return fn()
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	type outcome struct {
		v   any
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer p.sem.Release(1)
		v, err := fn()
		done <- outcome{v: v, err: err}
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		return out.v, out.err
	}
}
