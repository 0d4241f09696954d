package model

import (
	"context"
	"fmt"

	"github.com/harunnryd/triage/internal/model/contract"
	anthropicProvider "github.com/harunnryd/triage/internal/model/providers/anthropic"
	geminiProvider "github.com/harunnryd/triage/internal/model/providers/gemini"
	openaiProvider "github.com/harunnryd/triage/internal/model/providers/openai"
)

// ProviderAdapter binds a backend client to one model name so it satisfies model.Provider.
type ProviderAdapter struct {
	provider     interface{}
	name         string
	providerType string
}

func (a *ProviderAdapter) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = a.name
	}
	switch p := a.provider.(type) {
	case *openaiProvider.Provider:
		return p.Generate(ctx, req)
	case *anthropicProvider.Provider:
		return p.Generate(ctx, req)
	case *geminiProvider.Provider:
		return p.Generate(ctx, req)
	default:
		return nil, fmt.Errorf("unsupported provider type: %T", a.provider)
	}
}

func (a *ProviderAdapter) Name() string {
	return a.name
}

func (a *ProviderAdapter) Type() string {
	return a.providerType
}

func (a *ProviderAdapter) Health(ctx context.Context) error {
	return nil
}
