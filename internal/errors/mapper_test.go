package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr struct {
	code int
}

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

func TestClassifyModelError(t *testing.T) {
	m := NewDefaultErrorMapper()

	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil is success", nil, OutcomeSuccess},
		{"gemini not found", errors.New("Error 404, Message: models/gemini-x is not found for API version v1beta, Status: NOT_FOUND"), OutcomeContinue},
		{"gemini quota", errors.New("Error 429, Message: You exceeded your current quota, Status: RESOURCE_EXHAUSTED"), OutcomeContinue},
		{"gemini overloaded", errors.New("Error 503, Message: The model is overloaded. Please try again later., Status: UNAVAILABLE"), OutcomeContinue},
		{"gemini bad key", errors.New("Error 400, Message: API key not valid. Please pass a valid API key., Status: INVALID_ARGUMENT"), OutcomeAbort},
		{"permission denied", errors.New("Error 403, Message: denied, Status: PERMISSION_DENIED"), OutcomeAbort},
		{"status coder soft", fmt.Errorf("wrapped: %w", statusErr{429}), OutcomeContinue},
		{"status coder overloaded", statusErr{529}, OutcomeContinue},
		{"status coder auth", fmt.Errorf("wrapped: %w", statusErr{401}), OutcomeAbort},
		{"openai rate limit text", errors.New("error, status code: 429, status: 429 Too Many Requests, message: slow down"), OutcomeContinue},
		{"http status text", errors.New("model call failed: HTTP 503"), OutcomeContinue},
		{"refused on port with soft digits", errors.New("dial tcp 127.0.0.1:50301: connection refused"), OutcomeAbort},
		{"soft digits inside id", errors.New("request req_4291 failed: invalid json"), OutcomeAbort},
		{"unknown error aborts", errors.New("something odd happened"), OutcomeAbort},
		{"cancelled aborts", context.Canceled, OutcomeAbort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.ClassifyModelError(tt.err))
		})
	}
}

func TestCategory(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.Equal(t, "ConfigurationError", m.Category(Configuration("slack token missing")))
	assert.Equal(t, "ConnectivityError", m.Category(Connectivity("auth.test failed")))
	assert.Equal(t, "AiHardFail", m.Category(WrapWithCategory(errors.New("401"), "gemini", ErrAIHardFail)))
	assert.Equal(t, "", m.Category(nil))
	assert.Equal(t, "Unknown", m.Category(errors.New("plain")))
}

func TestWrapWithCategoryKeepsBothChains(t *testing.T) {
	cause := errors.New("invalid_auth")
	err := WrapWithCategory(cause, "identity check", ErrConnectivity)

	assert.ErrorIs(t, err, ErrConnectivity)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "invalid_auth")
}

func TestMapError(t *testing.T) {
	m := NewDefaultErrorMapper()

	assert.ErrorIs(t, m.MapError(errors.New("invalid_auth")), ErrConnectivity)
	assert.ErrorIs(t, m.MapError(errors.New("slack rate limit exceeded, retry after 3s")), ErrTransient)
	assert.ErrorIs(t, m.MapError(context.DeadlineExceeded), ErrTransient)
	assert.ErrorIs(t, m.MapError(context.Canceled), context.Canceled)
	assert.Nil(t, m.MapError(nil))
}
