package llm

import "context"

// PermitBroker reserves n model-call permits up front. The assistant
// reserves its whole round budget before the first call so a conversation
// is never stranded halfway by the rate limiter.
type PermitBroker interface {
	Reserve(ctx context.Context, n int) (Lease, error)
}

// Lease injects the reserved credits into a context.
type Lease interface {
	Context(ctx context.Context) context.Context
}

type broker struct{ rl Limiter }

// NewBroker returns a PermitBroker backed by rl. A nil limiter grants
// every reservation immediately.
func NewBroker(rl Limiter) PermitBroker { return &broker{rl: rl} }

// Reserve acquires n permits from the limiter and returns a lease carrying
// n credits. Unused credits are not returned to the bucket; slight
// over-reservation is tolerated.
func (b *broker) Reserve(ctx context.Context, n int) (Lease, error) {
	if n <= 0 || b == nil || b.rl == nil {
		return lease{}, nil
	}
	for i := 0; i < n; i++ {
		if err := b.rl.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	return lease{n: n}, nil
}

type lease struct{ n int }

func (l lease) Context(ctx context.Context) context.Context { return WithCredits(ctx, l.n) }
