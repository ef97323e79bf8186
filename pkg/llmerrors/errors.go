// Package llmerrors provides structured error classification for backend query failures.
package llmerrors

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrorType represents different categories of backend errors.
type ErrorType int8

const (
	// ErrorTypeBackendUnreachable covers transport, timeout and protocol failures
	// (connection refused, deadline exceeded, non-2xx status, undecodable body).
	ErrorTypeBackendUnreachable ErrorType = iota
	// ErrorTypeBadPrompt represents a request the client refused to send (empty prompt).
	ErrorTypeBadPrompt
	// ErrorTypeUnknown represents default for unclassified errors.
	ErrorTypeUnknown
)

// String returns the string representation of the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrorTypeBackendUnreachable:
		return "backend_unreachable"
	case ErrorTypeBadPrompt:
		return "bad_prompt"
	case ErrorTypeUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Error represents a classified backend error.
type Error struct {
	Err        error     // Wrapped underlying error
	Message    string    // Human-readable error message
	Type       ErrorType // Classified error type
	StatusCode int       // HTTP status code if applicable
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("LLM error (%s): %s: %v", e.Type.String(), e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("LLM error (%s): %s", e.Type.String(), e.Message)
	case e.Err != nil:
		return fmt.Sprintf("LLM error (%s): %v", e.Type.String(), e.Err)
	default:
		return fmt.Sprintf("LLM error (%s): status %d", e.Type.String(), e.StatusCode)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is checks if an error is of a specific type.
func Is(err error, errorType ErrorType) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == errorType
	}
	return false
}

// IsBackendUnreachable reports whether err is a BackendUnreachable failure.
func IsBackendUnreachable(err error) bool {
	return Is(err, ErrorTypeBackendUnreachable)
}

// TypeOf returns the error type of an error, or ErrorTypeUnknown if not classified.
func TypeOf(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}

// NewError creates a new classified error.
func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new classified error wrapping another error.
func NewErrorWithCause(errorType ErrorType, cause error, message string) *Error {
	return &Error{
		Type:    errorType,
		Err:     cause,
		Message: message,
	}
}

// NewUnreachable wraps cause as a BackendUnreachable failure.
func NewUnreachable(cause error, message string) *Error {
	return NewErrorWithCause(ErrorTypeBackendUnreachable, cause, message)
}

// Preview returns at most maxChars runes of prompt, for log lines.
func Preview(prompt string, maxChars int) string {
	if utf8.RuneCountInString(prompt) <= maxChars {
		return prompt
	}
	runes := []rune(prompt)
	return string(runes[:maxChars])
}
