package llm

import (
	"context"
	"encoding/json"
)

// Call phases, used to tag prompts for hooks, logs, and usage stats.
const (
	PhaseAssistant = "assistant"
	PhaseIntegrity = "integrity"
)

// PromptHook observes model calls. Implementations must not panic and should
// return quickly; they run inline with the request.
type PromptHook interface {
	Before(ctx context.Context, phase, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

type ctxKeyHook struct{}
type ctxKeyPhase struct{}

// AttachHook stores a PromptHook in the context; the WithHooks middleware
// invokes it around each call.
func AttachHook(ctx context.Context, hook PromptHook) context.Context {
	if hook == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

// WithPhase tags the context with the call phase.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// HookFrom returns the hook stored in the context, or nil.
func HookFrom(ctx context.Context) PromptHook {
	if v := ctx.Value(ctxKeyHook{}); v != nil {
		if h, ok := v.(PromptHook); ok {
			return h
		}
	}
	return nil
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if v := ctx.Value(ctxKeyPhase{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return "unknown"
}
