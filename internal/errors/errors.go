package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrConfiguration - missing or invalid startup configuration (fatal, process must not proceed)
	ErrConfiguration = errors.New("configuration error")

	// ErrConnectivity - identity check against the chat provider failed (reference store build aborted)
	ErrConnectivity = errors.New("connectivity error")

	// ErrResourceUnavailable - one paginated resource failed (absorbed, partial data returned)
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrParseSkip - a raw event could not be parsed (event dropped, sync continues)
	ErrParseSkip = errors.New("unparseable event")

	// ErrAISoftFail - candidate backend missing, quota-limited or overloaded (cascade continues)
	ErrAISoftFail = errors.New("ai backend unavailable")

	// ErrAIHardFail - auth failure or any unclassified backend error (cascade aborted, shown verbatim)
	ErrAIHardFail = errors.New("ai backend failed")

	// ErrAIExhausted - every candidate soft-failed
	ErrAIExhausted = errors.New("ai candidates exhausted")

	// ErrInvalidModelOutput - model returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInvalidInput - invalid input (show validation error)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient error (retry hint)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)
