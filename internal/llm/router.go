package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/seenimoa/edgarwatch/internal/config"
	"github.com/seenimoa/edgarwatch/internal/infra"
)

// Router sends generation requests to a primary provider and falls back
// through the configured chain when it fails.
type Router struct {
	mu         sync.RWMutex
	providers  map[string]Generator
	primary    string
	fallbacks  []string
	maxRetries int
	retryDelay time.Duration
	logger     *infra.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithFallbacks sets the fallback provider chain.
func WithFallbacks(providers ...string) RouterOption {
	return func(r *Router) { r.fallbacks = providers }
}

// WithMaxRetries sets the maximum number of retry attempts per provider.
func WithMaxRetries(n int) RouterOption {
	return func(r *Router) { r.maxRetries = n }
}

// WithRetryDelay sets the base delay between retries.
func WithRetryDelay(d time.Duration) RouterOption {
	return func(r *Router) { r.retryDelay = d }
}

// WithRouterLogger sets the logger used to report provider failures.
func WithRouterLogger(l *infra.Logger) RouterOption {
	return func(r *Router) { r.logger = l.Component("llm") }
}

// NewRouter creates a new LLM router with the given primary provider.
func NewRouter(primary string, opts ...RouterOption) *Router {
	r := &Router{
		providers:  make(map[string]Generator),
		primary:    primary,
		maxRetries: 1,
		retryDelay: time.Second,
		logger:     infra.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterProvider adds a provider to the router.
func (r *Router) RegisterProvider(provider Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// GetProvider returns a registered provider by name.
func (r *Router) GetProvider(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Name returns the name of the primary provider (satisfies Generator).
func (r *Router) Name() string {
	return "router/" + r.primary
}

// ProviderNames returns the provider chain in the order it is tried,
// limited to registered providers.
func (r *Router) ProviderNames() []string {
	var names []string
	for _, n := range r.providerChain() {
		if _, ok := r.GetProvider(n); ok {
			names = append(names, n)
		}
	}
	return names
}

// Generate tries the primary provider first, then each fallback in order.
// The model in req is only honoured by the primary; fallbacks use their own.
func (r *Router) Generate(ctx context.Context, req Request) (*Response, error) {
	chain := r.ProviderNames()
	if len(chain) == 0 {
		return nil, ErrNoProviders
	}

	var lastErr error
	for i, name := range chain {
		provider, _ := r.GetProvider(name)
		attempt := req
		if i > 0 {
			attempt.Model = ""
		}

		resp, err := r.generateWithRetry(ctx, provider, attempt)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		r.logger.Warn().Err(err).Str("provider", name).Msg("provider failed, trying next")

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("llm/router: all providers failed, last error: %w", lastErr)
}

// ── Internal Helpers ──

func (r *Router) providerChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chain := []string{r.primary}
	for _, fb := range r.fallbacks {
		if fb != r.primary {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (r *Router) generateWithRetry(ctx context.Context, provider Generator, req Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			delay := r.retryDelay * time.Duration(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := provider.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if isNonRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// isNonRetryable reports errors that another attempt on the same provider
// cannot fix. They still fall through to the next provider.
func isNonRetryable(err error) bool {
	return errors.Is(err, ErrNoAPIKey) ||
		errors.Is(err, ErrInvalidModel) ||
		errors.Is(err, ErrContextLength)
}

// NewRouterFromConfig builds a Router with every provider that has an API
// key. The configured primary is tried first; the other becomes a fallback.
func NewRouterFromConfig(ctx context.Context, cfg config.LLMConfig, logger *infra.Logger) (*Router, error) {
	router := NewRouter(cfg.Primary,
		WithMaxRetries(1),
		WithRetryDelay(time.Second),
		WithRouterLogger(logger),
	)

	var fallbacks []string
	registered := 0

	if cfg.OpenRouterKey != "" {
		p, err := NewOpenRouterProvider(cfg.OpenRouterKey,
			WithOpenRouterBaseURL(cfg.BaseURL),
			WithOpenRouterModel(cfg.Model),
			WithOpenRouterSampling(cfg.Temperature, cfg.MaxTokens),
			WithOpenRouterTimeout(cfg.Timeout),
		)
		if err == nil {
			router.RegisterProvider(p)
			registered++
			if cfg.Primary != ProviderOpenRouter {
				fallbacks = append(fallbacks, ProviderOpenRouter)
			}
		}
	}

	if cfg.GeminiKey != "" {
		model := cfg.FallbackModel
		if cfg.Primary == ProviderGemini && strings.HasPrefix(cfg.Model, "gemini") {
			model = cfg.Model
		}
		p, err := NewGeminiProvider(ctx, cfg.GeminiKey,
			WithGeminiModel(model),
			WithGeminiSampling(cfg.Temperature, cfg.MaxTokens),
			WithGeminiTimeout(cfg.Timeout),
		)
		if err != nil {
			logger.Component("llm").Warn().Err(err).Msg("gemini provider unavailable")
		} else {
			router.RegisterProvider(p)
			registered++
			if cfg.Primary != ProviderGemini {
				fallbacks = append(fallbacks, ProviderGemini)
			}
		}
	}

	if registered == 0 {
		return nil, ErrNoProviders
	}

	// A primary without a key still leaves the fallbacks usable.
	router.fallbacks = fallbacks
	return router, nil
}
