package llm

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Middleware decorates a Client with a cross-cutting concern (rate limiting,
// retries, logging, hooks). Every wrapper in this file also forwards
// GenerateWithTools, so decorating a ToolClient never strips its tool
// support; wrapping a plain client surfaces ErrToolsUnsupported at call time.
type Middleware func(Client) Client

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner Client, mws ...Middleware) Client {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

func forwardTools(ctx context.Context, next Client, req ToolRequest) (Message, error) {
	tc, ok := AsToolClient(next)
	if !ok {
		return Message{}, ErrToolsUnsupported
	}
	return tc.GenerateWithTools(ctx, req)
}

// -------- Rate limiting --------

// RateLimit throttles to rps requests per second with the given burst.
// Reserved credits in the context bypass the bucket. rps <= 0 disables it.
func RateLimit(rps float64, burst int) Middleware {
	return func(next Client) Client {
		return &rateLimited{next: next, rl: newRPSLimiter(rps, burst)}
	}
}

type rateLimited struct {
	next Client
	rl   *rpsLimiter
}

func (c *rateLimited) Name() string { return c.next.Name() }
func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.next.Close()
}

func (c *rateLimited) admit(ctx context.Context) error {
	if c.rl == nil {
		return nil
	}
	if TakeCredit(ctx) {
		return nil
	}
	return c.rl.Acquire(ctx)
}

func (c *rateLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := c.admit(ctx); err != nil {
		return nil, err
	}
	return c.next.GenerateJSON(ctx, prompt, input)
}

func (c *rateLimited) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	if err := c.admit(ctx); err != nil {
		return Message{}, err
	}
	return forwardTools(ctx, c.next, req)
}

// RateLimitFromEnv reads RPS/BURST from environment variables with the given
// prefixes in priority order: ("EDUCORE_LLM","GEMINI") checks
// EDUCORE_LLM_RPS first, then GEMINI_RPS, and likewise for _BURST.
func RateLimitFromEnv(prefixes ...string) Middleware {
	find := func(suffix string) string {
		for _, p := range prefixes {
			if p == "" {
				continue
			}
			if v := os.Getenv(p + suffix); v != "" {
				return v
			}
		}
		return ""
	}
	rps, _ := strconv.ParseFloat(find("_RPS"), 64)
	burst, _ := strconv.Atoi(find("_BURST"))
	return RateLimit(rps, burst)
}

// MultiLimit applies requests-per-minute, requests-per-day, and
// tokens-per-minute buckets. Zero disables a bucket. Token spend is a
// constant per-request estimate; exact accounting is the provider's job.
func MultiLimit(rpm, rpd, tpm int) Middleware {
	const tokensPerRequest = 1000
	var rpmL, rpdL, tpmL *rpsLimiter
	if rpm > 0 {
		rpmL = newRPSLimiter(float64(rpm)/60.0, max1(rpm))
	}
	if rpd > 0 {
		rpdL = newRPSLimiter(float64(rpd)/86400.0, max1(rpd))
	}
	if tpm > 0 {
		tpmL = newRPSLimiter(float64(tpm)/60.0, max1(tpm))
	}
	return func(next Client) Client {
		return &multiLimited{next: next, rpm: rpmL, rpd: rpdL, tpm: tpmL, tpr: tokensPerRequest}
	}
}

type multiLimited struct {
	next Client
	rpm  *rpsLimiter
	rpd  *rpsLimiter
	tpm  *rpsLimiter
	tpr  int
}

func (m *multiLimited) Name() string { return m.next.Name() }
func (m *multiLimited) Close() error {
	m.rpm.Stop()
	m.rpd.Stop()
	m.tpm.Stop()
	return m.next.Close()
}

func (m *multiLimited) admit(ctx context.Context) error {
	if m.rpm != nil && !TakeCredit(ctx) {
		if err := m.rpm.Acquire(ctx); err != nil {
			return err
		}
	}
	if m.rpd != nil && !TakeCredit(ctx) {
		if err := m.rpd.Acquire(ctx); err != nil {
			return err
		}
	}
	if m.tpm != nil {
		if err := m.tpm.AcquireN(ctx, m.tpr); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiLimited) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if err := m.admit(ctx); err != nil {
		return nil, err
	}
	return m.next.GenerateJSON(ctx, prompt, input)
}

func (m *multiLimited) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	if err := m.admit(ctx); err != nil {
		return Message{}, err
	}
	return forwardTools(ctx, m.next, req)
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// -------- Retry with exponential backoff --------

// Retry retries failed calls up to maxAttempts with exponential backoff
// starting at baseDelay. Context cancellation stops the loop immediately.
func Retry(maxAttempts int, baseDelay time.Duration) Middleware {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = 300 * time.Millisecond
	}
	return func(next Client) Client {
		return &retrying{next: next, max: maxAttempts, base: baseDelay}
	}
}

type retrying struct {
	next Client
	max  int
	base time.Duration
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var last error
	for i := 0; i < r.max; i++ {
		resp, err := r.next.GenerateJSON(ctx, prompt, input)
		if err == nil {
			return resp, nil
		}
		last = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return nil, last
}

func (r *retrying) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	var last error
	for i := 0; i < r.max; i++ {
		msg, err := forwardTools(ctx, r.next, req)
		if err == nil {
			return msg, nil
		}
		if errors.Is(err, ErrToolsUnsupported) {
			return Message{}, err
		}
		last = err
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		default:
		}
		time.Sleep(r.base * time.Duration(1<<i))
	}
	return Message{}, last
}

// -------- Logging & hooks --------

// WithLogging records request sizes, durations, and failures. A nil logger
// falls back to zap's no-op logger.
func WithLogging(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next Client) Client {
		return &logging{next: next, log: logger}
	}
}

type logging struct {
	next Client
	log  *zap.Logger
}

func (l *logging) Name() string { return l.next.Name() }
func (l *logging) Close() error { return l.next.Close() }

func (l *logging) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.Marshal(input)
	start := time.Now()
	raw, err := l.next.GenerateJSON(ctx, prompt, input)
	fields := []zap.Field{
		zap.String("phase", PhaseFrom(ctx)),
		zap.String("client", l.next.Name()),
		zap.Int("request_bytes", len(prompt)+len(in)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("model call failed", append(fields, zap.Error(err))...)
		return raw, err
	}
	l.log.Debug("model call completed", append(fields, zap.Int("response_bytes", len(raw)))...)
	return raw, nil
}

func (l *logging) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	start := time.Now()
	msg, err := forwardTools(ctx, l.next, req)
	fields := []zap.Field{
		zap.String("phase", PhaseFrom(ctx)),
		zap.String("client", l.next.Name()),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Tools)),
		zap.Duration("took", time.Since(start)),
	}
	if err != nil {
		l.log.Warn("tool turn failed", append(fields, zap.Error(err))...)
		return msg, err
	}
	l.log.Debug("tool turn completed", append(fields, zap.Int("calls", len(msg.Calls)))...)
	return msg, nil
}

// WithHooks calls the context's PromptHook around each call. Without a hook
// in the context this is a no-op.
func WithHooks() Middleware {
	return func(next Client) Client {
		return &hooked{next: next}
	}
}

type hooked struct{ next Client }

func (h *hooked) Name() string { return h.next.Name() }
func (h *hooked) Close() error { return h.next.Close() }

func (h *hooked) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), prompt, input)
	}
	raw, err := h.next.GenerateJSON(ctx, prompt, input)
	if hook := HookFrom(ctx); hook != nil {
		hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return raw, err
}

func (h *hooked) GenerateWithTools(ctx context.Context, req ToolRequest) (Message, error) {
	if hook := HookFrom(ctx); hook != nil {
		hook.Before(ctx, PhaseFrom(ctx), req.System, req.Messages)
	}
	msg, err := forwardTools(ctx, h.next, req)
	if hook := HookFrom(ctx); hook != nil {
		raw, _ := json.Marshal(msg)
		hook.After(ctx, PhaseFrom(ctx), raw, err)
	}
	return msg, err
}
