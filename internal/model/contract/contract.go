package contract

import "fmt"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CompletionRequest struct {
	Model    string    `json:"model"`
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	// JSON asks for a bare JSON body on backends that support a response MIME type.
	JSON bool `json:"json,omitempty"`
}

type CompletionResponse struct {
	Content string `json:"content"`
}

// ProviderError tags a backend failure with the provider and, when known, the
// HTTP status it answered with.
type ProviderError struct {
	Provider string
	Status   int
	Err      error
}

func NewProviderError(provider string, status int, err error) *ProviderError {
	return &ProviderError{Provider: provider, Status: status, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s request failed (status %d): %v", e.Provider, e.Status, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) StatusCode() int { return e.Status }
