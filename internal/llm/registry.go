package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrProfileNotFound  = errors.New("llm: no profile for purpose")
	ErrUnknownProvider  = errors.New("llm: provider is not registered")
	ErrFactoryRequired  = errors.New("llm: factory is nil")
	ErrProviderRequired = errors.New("llm: provider name is required")
)

// Factory builds a bare provider client for a profile. The registry applies
// rate and retry middleware on top, so factories stay limiter-free.
type Factory func(ctx context.Context, p Profile) (Client, error)

// ModelRegistry resolves call purposes to built, middleware-wrapped clients.
// Built clients are cached per purpose and closed together.
type ModelRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	profiles  map[string]Profile
	built     map[string]Client
	log       *zap.Logger
}

// NewModelRegistry creates a registry with the built-in providers (gemini,
// groq, fake) already registered.
func NewModelRegistry(logger *zap.Logger) *ModelRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ModelRegistry{
		factories: map[string]Factory{},
		profiles:  map[string]Profile{},
		built:     map[string]Client{},
		log:       logger,
	}
	r.factories["gemini"] = func(ctx context.Context, p Profile) (Client, error) {
		return NewGeminiClient(ctx, p.Model)
	}
	r.factories["groq"] = func(ctx context.Context, p Profile) (Client, error) {
		return NewGroqClient("", p.Model)
	}
	r.factories["fake"] = func(ctx context.Context, p Profile) (Client, error) {
		return NewFakeToolClient(), nil
	}
	return r
}

// RegisterFactory adds or replaces a provider factory.
func (r *ModelRegistry) RegisterFactory(provider string, f Factory) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return ErrProviderRequired
	}
	if f == nil {
		return ErrFactoryRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
	return nil
}

// LoadProfiles installs every catalog profile, keyed by purpose. A profile
// naming an unregistered provider is rejected up front rather than at the
// first call.
func (r *ModelRegistry) LoadProfiles(c *Catalog) error {
	if c == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range c.Profiles {
		provider := strings.ToLower(strings.TrimSpace(p.Provider))
		if _, ok := r.factories[provider]; !ok {
			return fmt.Errorf("%w: %s (purpose %s)", ErrUnknownProvider, p.Provider, p.Purpose)
		}
		purpose := strings.ToLower(strings.TrimSpace(p.Purpose))
		r.profiles[purpose] = p
	}
	return nil
}

// Profile returns the installed profile for purpose.
func (r *ModelRegistry) Profile(purpose string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[strings.ToLower(strings.TrimSpace(purpose))]
	return p, ok
}

// Build returns the client for purpose, constructing and caching it on
// first use. The profile's budgets become middleware: retries outermost so
// each attempt passes the rate buckets again.
func (r *ModelRegistry) Build(ctx context.Context, purpose string) (Client, error) {
	key := strings.ToLower(strings.TrimSpace(purpose))

	r.mu.RLock()
	if cli, ok := r.built[key]; ok {
		r.mu.RUnlock()
		return cli, nil
	}
	p, ok := r.profiles[key]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, purpose)
	}
	factory := r.factories[strings.ToLower(strings.TrimSpace(p.Provider))]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, p.Provider)
	}

	cli, err := factory(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("llm: build %s client for %s: %w", p.Provider, key, err)
	}

	var mws []Middleware
	if p.Retries > 1 {
		mws = append(mws, Retry(p.Retries, 0))
	}
	if p.RPS > 0 {
		mws = append(mws, RateLimit(p.RPS, p.Burst))
	}
	if p.RPM > 0 || p.RPD > 0 || p.TPM > 0 {
		mws = append(mws, MultiLimit(p.RPM, p.RPD, p.TPM))
	}
	mws = append(mws, WithLogging(r.log), WithHooks())
	cli = Wrap(cli, mws...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.built[key]; ok {
		_ = cli.Close()
		return cached, nil
	}
	r.built[key] = cli
	r.log.Info("model client built",
		zap.String("purpose", key),
		zap.String("provider", p.Provider),
		zap.String("model", p.Model))
	return cli, nil
}

// Close closes every built client.
func (r *ModelRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for key, cli := range r.built {
		if err := cli.Close(); err != nil && first == nil {
			first = err
		}
		delete(r.built, key)
	}
	return first
}
