package openai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/harunnryd/triage/internal/model/contract"

	"github.com/sashabaranov/go-openai"
)

// Provider serves OpenAI and any OpenAI-compatible endpoint such as Ollama.
type Provider struct {
	client *openai.Client
	kind   string
}

func New(apiKey, baseURL, kind string) *Provider {
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if kind == "" {
		kind = "openai"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &Provider{client: openai.NewClientWithConfig(cfg), kind: kind}
}

func (p *Provider) Name() string {
	return p.kind
}

func (p *Provider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		return nil, contract.NewProviderError(p.kind, statusOf(err), err)
	}
	if len(resp.Choices) == 0 {
		return nil, contract.NewProviderError(p.kind, 0, fmt.Errorf("no choices returned"))
	}

	return &contract.CompletionResponse{Content: resp.Choices[0].Message.Content}, nil
}

func statusOf(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
