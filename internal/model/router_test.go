package model

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/harunnryd/triage/internal/config"
	triageErrors "github.com/harunnryd/triage/internal/errors"
	"github.com/harunnryd/triage/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelRouterSkipsUnusableCandidates(t *testing.T) {
	router, err := NewModelRouter(config.AIConfig{Candidates: []config.ModelCandidate{
		{Name: "gemini-2.5-flash", Provider: "gemini"},
		{Name: "gpt-4o-mini", Provider: "openai", APIKey: "sk-test"},
		{Name: "llama3", Provider: "ollama"},
		{Name: "mystery", Provider: "nope", APIKey: "x"},
		{Name: "claude-sonnet-4-5", Provider: "anthropic", APIKey: "sk-ant"},
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"gpt-4o-mini", "llama3", "claude-sonnet-4-5"}, router.ListModels())

	types := make([]string, 0, 3)
	for _, p := range router.Providers() {
		types = append(types, p.Type())
	}
	assert.Equal(t, []string{"openai", "ollama", "anthropic"}, types)
	assert.NoError(t, router.Health(context.Background()))
}

func TestNewModelRouterWithoutCandidates(t *testing.T) {
	_, err := NewModelRouter(config.AIConfig{Candidates: []config.ModelCandidate{{Name: "gemini-2.5-flash", Provider: "gemini"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, triageErrors.ErrConfiguration)
}

func TestRouteOpenAICompatible(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"[]"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	router, err := NewModelRouter(config.AIConfig{Candidates: []config.ModelCandidate{
		{Name: "llama3", Provider: "ollama", BaseURL: server.URL},
	}})
	require.NoError(t, err)

	resp, err := router.Route(context.Background(), "llama3", contract.CompletionRequest{
		System:   "be brief",
		Messages: []contract.Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)

	_, err = router.Route(context.Background(), "missing", contract.CompletionRequest{})
	assert.ErrorIs(t, err, triageErrors.ErrNotFound)
}

func TestProviderErrorsCarryStatus(t *testing.T) {
	tests := []struct {
		name     string
		provider string
		status   int
		body     string
		want     triageErrors.Outcome
	}{
		{
			name:     "openai quota",
			provider: "openai",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`,
			want:     triageErrors.OutcomeContinue,
		},
		{
			name:     "gemini model not found",
			provider: "gemini",
			status:   http.StatusNotFound,
			body:     `{"error":{"code":404,"message":"models/gemini-0 is not found","status":"NOT_FOUND"}}`,
			want:     triageErrors.OutcomeContinue,
		},
		{
			name:     "anthropic bad key",
			provider: "anthropic",
			status:   http.StatusUnauthorized,
			body:     `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			want:     triageErrors.OutcomeAbort,
		},
		{
			name:     "anthropic overloaded",
			provider: "anthropic",
			status:   529,
			body:     `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			want:     triageErrors.OutcomeContinue,
		},
	}

	mapper := triageErrors.NewDefaultErrorMapper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			router, err := NewModelRouter(config.AIConfig{Candidates: []config.ModelCandidate{
				{Name: "m", Provider: tt.provider, APIKey: "key", BaseURL: server.URL},
			}})
			require.NoError(t, err)

			_, err = router.Route(context.Background(), "m", contract.CompletionRequest{
				Messages: []contract.Message{{Role: "user", Content: "hi"}},
			})
			require.Error(t, err)

			var perr *contract.ProviderError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.status, perr.StatusCode())
			assert.True(t, strings.HasPrefix(perr.Error(), tt.provider))
			assert.Equal(t, tt.want, mapper.ClassifyModelError(err))
		})
	}
}
