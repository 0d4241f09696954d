package model

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/harunnryd/triage/internal/config"
	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/logger"
	"github.com/harunnryd/triage/internal/model/contract"
	anthropicProvider "github.com/harunnryd/triage/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/triage/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/triage/internal/model/providers/openai"
)

// DefaultModelRouter holds the configured candidates in cascade order.
type DefaultModelRouter struct {
	cfg       config.AIConfig
	order     []string
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewModelRouter builds one provider per candidate. Candidates that cannot be
// built (for example a missing API key) are skipped with a warning; it is an
// error only when none remain.
func NewModelRouter(cfg config.AIConfig) (*DefaultModelRouter, error) {
	router := &DefaultModelRouter{
		cfg:       cfg,
		providers: make(map[string]Provider),
	}

	if err := router.initProviders(); err != nil {
		return nil, err
	}

	return router, nil
}

// NewModelRouterWithProviders registers ready-made providers in the given order.
func NewModelRouterWithProviders(providers ...Provider) *DefaultModelRouter {
	router := &DefaultModelRouter{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		router.register(p)
	}
	return router
}

// Route sends a completion request to one named model, without fallback.
func (r *DefaultModelRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	select {
	case <-ctx.Done():
		return nil, triageErrors.Wrap(ctx.Err(), "request cancelled")
	default:
	}

	r.mu.RLock()
	provider, exists := r.providers[model]
	r.mu.RUnlock()
	if !exists {
		return nil, triageErrors.NotFound(fmt.Sprintf("model %s not found", model))
	}

	logger.From(ctx).Debug("Routing completion request", "model", model, "provider", provider.Type())
	req.Model = model
	return provider.Generate(ctx, req)
}

// Providers returns the providers in cascade order.
func (r *DefaultModelRouter) Providers() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// ListModels returns all registered model names in cascade order.
func (r *DefaultModelRouter) ListModels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Health checks the health of the router and its providers
func (r *DefaultModelRouter) Health(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, provider := range r.providers {
		if err := provider.Health(ctx); err != nil {
			slog.Warn("Provider unhealthy", "provider", name, "error", err)
			return triageErrors.Transient(fmt.Sprintf("provider %s unhealthy", name))
		}
	}

	return nil
}

func (r *DefaultModelRouter) register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.providers[p.Name()]; !dup {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// initProviders initializes all providers from configuration
func (r *DefaultModelRouter) initProviders() error {
	for _, entry := range r.cfg.Candidates {
		provider, err := r.createProvider(entry)
		if err != nil {
			slog.Warn("Failed to create provider", "provider", entry.Provider, "model", entry.Name, "error", err)
			continue
		}

		r.register(provider)
		slog.Debug("Provider initialized", "name", entry.Name, "type", entry.Provider)
	}

	if len(r.providers) == 0 {
		return triageErrors.Configuration("no AI model candidates could be initialized (check API keys)")
	}

	return nil
}

// createProvider creates a provider instance based on a candidate entry
func (r *DefaultModelRouter) createProvider(entry config.ModelCandidate) (Provider, error) {
	if entry.Name == "" {
		return nil, triageErrors.InvalidInput("model name is required")
	}

	switch entry.Provider {
	case "openai":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOpenAIBaseURL
		}

		if entry.APIKey == "" {
			return nil, triageErrors.InvalidInput("API key required for OpenAI provider")
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(entry.APIKey, baseURL, "openai"),
			name:         entry.Name,
			providerType: "openai",
		}, nil

	case "ollama":
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}

		apiKey := entry.APIKey
		if apiKey == "" {
			apiKey = config.DefaultOllamaAPIKey
		}

		return &ProviderAdapter{
			provider:     openaiProvider.New(apiKey, baseURL, "ollama"),
			name:         entry.Name,
			providerType: "ollama",
		}, nil

	case "anthropic":
		if entry.APIKey == "" {
			return nil, triageErrors.InvalidInput("API key required for Anthropic provider")
		}

		return &ProviderAdapter{
			provider:     anthropicProvider.New(entry.APIKey, entry.BaseURL),
			name:         entry.Name,
			providerType: "anthropic",
		}, nil

	case "gemini":
		if entry.APIKey == "" {
			return nil, triageErrors.InvalidInput("API key required for Gemini provider")
		}

		provider, err := geminiProvider.New(entry.APIKey, entry.BaseURL)
		if err != nil {
			return nil, triageErrors.WrapWithCategory(err, "failed to create Gemini provider", triageErrors.ErrInternal)
		}

		return &ProviderAdapter{
			provider:     provider,
			name:         entry.Name,
			providerType: "gemini",
		}, nil

	default:
		return nil, triageErrors.InvalidInput(fmt.Sprintf("unknown provider type: %s", entry.Provider))
	}
}
