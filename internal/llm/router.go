package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/seenimoa/secqa/internal/config"
)

// Router routes chat requests to the primary provider and falls back to the
// remaining providers when the primary fails with a provider-side error.
// Request-shaped failures (bad API key, context too long) are not retried
// elsewhere: a different vendor will not fix the caller's request.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
	fallbacks []string
}

// NewRouter creates a router with the given primary provider name.
func NewRouter(primary string) *Router {
	return &Router{
		providers: make(map[string]Provider),
		primary:   primary,
	}
}

// NewRouterFromConfig builds a router from application configuration,
// registering every provider whose API key is present.
func NewRouterFromConfig(cfg *config.Config) (*Router, error) {
	r := NewRouter(cfg.LLM.Primary)

	if cfg.LLM.AnthropicKey != "" {
		p, err := NewAnthropicProvider(cfg.LLM.AnthropicKey)
		if err != nil {
			return nil, fmt.Errorf("anthropic setup: %w", err)
		}
		r.Register(p)
	}
	if cfg.LLM.OpenAIKey != "" {
		p, err := NewOpenAIProvider(cfg.LLM.OpenAIKey)
		if err != nil {
			return nil, fmt.Errorf("openai setup: %w", err)
		}
		r.Register(p)
	}

	if len(r.providers) == 0 {
		return nil, ErrNoProviders
	}
	if _, ok := r.providers[r.primary]; !ok {
		// Primary has no key configured; promote whatever is registered.
		for name := range r.providers {
			log.Printf("llm: primary provider %q not configured, using %q", r.primary, name)
			r.primary = name
			break
		}
	}
	for name := range r.providers {
		if name != r.primary {
			r.fallbacks = append(r.fallbacks, name)
		}
	}
	return r, nil
}

// Register adds a provider to the router.
func (r *Router) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Provider returns a registered provider by name.
func (r *Router) Provider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name returns the primary provider's name.
func (r *Router) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.primary
}

// Ping checks the primary provider.
func (r *Router) Ping(ctx context.Context) error {
	r.mu.RLock()
	p, ok := r.providers[r.primary]
	r.mu.RUnlock()
	if !ok {
		return ErrNoProviders
	}
	return p.Ping(ctx)
}

// Chat tries the primary provider, then each fallback in order.
func (r *Router) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	r.mu.RLock()
	order := append([]string{r.primary}, r.fallbacks...)
	providers := make([]Provider, 0, len(order))
	for _, name := range order {
		if p, ok := r.providers[name]; ok {
			providers = append(providers, p)
		}
	}
	r.mu.RUnlock()

	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, p := range providers {
		resp, err := p.Chat(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !retryable(err) {
			return nil, err
		}
		if i < len(providers)-1 {
			log.Printf("llm: provider %s failed (%v), trying fallback", p.Name(), err)
			// Model overrides are provider-specific; drop them for fallbacks.
			if opts != nil && opts.Model != "" {
				o := *opts
				o.Model = ""
				opts = &o
			}
		}
	}
	return nil, fmt.Errorf("all llm providers failed: %w", lastErr)
}

// retryable reports whether another provider is worth trying.
func retryable(err error) bool {
	return errors.Is(err, ErrProviderDown) || errors.Is(err, ErrRateLimit)
}
