package errors

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Outcome is the per-attempt classification used by fallback cascades.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeContinue
	OutcomeAbort
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeContinue:
		return "continue"
	case OutcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by errors that carry an HTTP-like status code.
type StatusCoder interface {
	StatusCode() int
}

// ErrorMapper maps external errors to the triage error taxonomy
type ErrorMapper interface {
	MapError(err error) error
	ClassifyModelError(err error) Outcome
	Category(err error) string
}

// DefaultErrorMapper implements the triage error taxonomy mapping
type DefaultErrorMapper struct{}

// NewDefaultErrorMapper creates a new error mapper
func NewDefaultErrorMapper() *DefaultErrorMapper {
	return &DefaultErrorMapper{}
}

// MapError maps external errors to triage error categories
func (m *DefaultErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate context errors as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrTransient)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("resource not found: %w", ErrNotFound)

	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "ratelimited"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w", ErrTransient)

	case strings.Contains(errStr, "invalid_auth"), strings.Contains(errStr, "not_authed"), strings.Contains(errStr, "token_revoked"), strings.Contains(errStr, "account_inactive"):
		return fmt.Errorf("authentication failed: %w", ErrConnectivity)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w", ErrTransient)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"):
		return fmt.Errorf("network error: %w", ErrTransient)

	default:
		return fmt.Errorf("internal error: %w", ErrInternal)
	}
}

// ClassifyModelError decides whether a failed model call lets the cascade
// move on to the next candidate or aborts it. A nil error is a success.
//
// Not found (404), quota (429) and overloaded (503/529) are soft failures.
// Everything else, authentication included, aborts.
func (m *DefaultErrorMapper) ClassifyModelError(err error) Outcome {
	if err == nil {
		return OutcomeSuccess
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeAbort
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		switch coder.StatusCode() {
		case 404, 429, 503, 529:
			return OutcomeContinue
		case 400, 401, 403:
			return OutcomeAbort
		}
	}

	errStr := strings.ToLower(err.Error())
	if containsAny(errStr, "permission_denied", "unauthenticated", "unauthorized", "api key not valid", "invalid api key", "invalid x-api-key", "forbidden") {
		return OutcomeAbort
	}
	if containsAny(errStr,
		"not found", "not_found",
		"quota", "resource_exhausted", "rate limit", "too many requests",
		"overloaded", "service unavailable", "unavailable",
	) || softStatusPattern.MatchString(errStr) {
		return OutcomeContinue
	}
	return OutcomeAbort
}

// softStatusPattern matches a soft status code only where the message names
// it as one ("status code: 429", "Error 503", "HTTP 404"), never a bare
// number inside an address or id.
var softStatusPattern = regexp.MustCompile(`\b(?:status(?: code)?|code|error|http)\s*[:=]?\s*(?:404|429|503|529)\b`)

// Category returns the error category name for an error
func (m *DefaultErrorMapper) Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, ErrConnectivity):
		return "ConnectivityError"
	case errors.Is(err, ErrResourceUnavailable):
		return "ResourceUnavailable"
	case errors.Is(err, ErrParseSkip):
		return "ParseSkip"
	case errors.Is(err, ErrAISoftFail):
		return "AiSoftFail"
	case errors.Is(err, ErrAIHardFail):
		return "AiHardFail"
	case errors.Is(err, ErrAIExhausted):
		return "AiExhausted"
	case errors.Is(err, ErrInvalidModelOutput):
		return "InvalidModelOutput"
	case errors.Is(err, ErrInvalidInput):
		return "InvalidInput"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrTransient):
		return "Transient"
	case errors.Is(err, ErrInternal):
		return "Internal"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// WrapWithCategory wraps an error with a specific category while keeping the
// original error text visible.
func WrapWithCategory(err error, message string, category error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w: %w", message, category, err)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// Configuration wraps error as configuration error
func Configuration(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConfiguration)
}

// Connectivity wraps error as connectivity error
func Connectivity(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConnectivity)
}

// ResourceUnavailable wraps error as resource unavailable
func ResourceUnavailable(message string) error {
	return fmt.Errorf("%s: %w", message, ErrResourceUnavailable)
}

// ParseSkip wraps error as parse skip
func ParseSkip(message string) error {
	return fmt.Errorf("%s: %w", message, ErrParseSkip)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps error as transient
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// InvalidModelOutput wraps error as invalid model output
func InvalidModelOutput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidModelOutput)
}

func containsAny(text string, needles ...string) bool {
	for _, needle := range needles {
		if needle != "" && strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
