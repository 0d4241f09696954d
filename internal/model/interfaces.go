package model

import (
	"context"

	"github.com/harunnryd/triage/internal/model/contract"
)

type ModelRouter interface {
	Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Providers() []Provider
	ListModels() []string
	Health(ctx context.Context) error
}

// Provider is one configured backend model. Name is the model name and Type
// the backend family.
type Provider interface {
	Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error)
	Name() string
	Type() string
	Health(ctx context.Context) error
}
