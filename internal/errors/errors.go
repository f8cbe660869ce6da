// Package errors defines the stable failure codes used across the orchestrator.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Code is a stable, machine-readable failure category.
type Code string

const (
	// ProviderUnavailable indicates the inference backend could not be reached or returned a server error
	ProviderUnavailable Code = "PROVIDER_UNAVAILABLE"
	// ProviderTimeout indicates the backend call exceeded its deadline
	ProviderTimeout Code = "PROVIDER_TIMEOUT"
	// AuthenticationError indicates missing or rejected provider credentials
	AuthenticationError Code = "AUTHENTICATION_ERROR"
	// MalformedResponse indicates an unexpected provider payload shape
	MalformedResponse Code = "MALFORMED_RESPONSE"
	// IndexBuildError indicates an unreadable or corrupt source document
	IndexBuildError Code = "INDEX_BUILD_ERROR"
	// QueryError indicates a malformed retrieval query
	QueryError Code = "QUERY_ERROR"
)

// Error carries a Code plus the underlying cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// New creates an Error. cause may be nil.
func New(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Newf formats the message.
func Newf(code Code, cause error, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...), cause)
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries code anywhere in its chain.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// Retryable reports whether a provider failure is worth one more attempt.
// Credential and payload problems won't fix themselves.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case AuthenticationError, MalformedResponse:
		return false
	default:
		return true
	}
}
