package llm

import (
	"context"
	"sync/atomic"
)

type creditsKey struct{}

// credits is a consumable counter carried by a context. Reserving ahead of a
// multi-round conversation lets every round pass the rate middleware without
// re-queueing behind unrelated traffic.
type credits struct{ n atomic.Int64 }

// WithCredits returns a context carrying n consumable credits. Non-positive
// n returns ctx unchanged.
func WithCredits(ctx context.Context, n int) context.Context {
	if n <= 0 {
		return ctx
	}
	c := &credits{}
	c.n.Store(int64(n))
	return context.WithValue(ctx, creditsKey{}, c)
}

// TakeCredit consumes one credit from the context if any remain.
func TakeCredit(ctx context.Context) bool {
	c, ok := ctx.Value(creditsKey{}).(*credits)
	if !ok || c == nil {
		return false
	}
	for {
		cur := c.n.Load()
		if cur <= 0 {
			return false
		}
		if c.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// CreditsRemaining reports the unconsumed credits in the context.
func CreditsRemaining(ctx context.Context) int {
	c, ok := ctx.Value(creditsKey{}).(*credits)
	if !ok || c == nil {
		return 0
	}
	n := c.n.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
