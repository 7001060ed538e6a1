package capability

import "context"

// Handler is the single calling convention for capability logic. The
// dispatcher invokes every handler the same way; blocking implementations
// are adapted with Sync at registration time instead of branching here.
type Handler interface {
	Invoke(ctx context.Context, args map[string]any) (any, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, args map[string]any) (any, error)

func (f HandlerFunc) Invoke(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

// Sync adapts a blocking function by running it on the pool, so a slow
// synchronous capability cannot stall unrelated concurrent requests.
func Sync(pool *Pool, fn func(args map[string]any) (any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, args map[string]any) (any, error) {
		return pool.Run(ctx, func() (any, error) { return fn(args) })
	})
}
