package llm

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrorType categorizes chat completion failures.
type ErrorType string

const (
	ErrorTypeAuth       ErrorType = "authentication"
	ErrorTypeEndpoint   ErrorType = "endpoint"
	ErrorTypeModel      ErrorType = "model"
	ErrorTypeRateLimit  ErrorType = "rate_limit"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeConnection ErrorType = "connection"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error is a classified chat completion failure.
type Error struct {
	Type       ErrorType
	Message    string
	Retryable  bool
	Cause      error
	StatusCode int
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether the request may succeed on retry.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError turns raw client errors into typed ones. API errors carry a
// status code; everything else is matched on message text.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return &Error{Type: ErrorTypeAuth, Message: "authentication failed, check your API key", Cause: err, StatusCode: apiErr.HTTPStatusCode}
		case apiErr.HTTPStatusCode == 404:
			return &Error{Type: ErrorTypeModel, Message: "deployment not found, check your deployment name", Cause: err, StatusCode: apiErr.HTTPStatusCode}
		case apiErr.HTTPStatusCode == 429:
			return &Error{Type: ErrorTypeRateLimit, Message: "rate limited", Retryable: true, Cause: err, StatusCode: apiErr.HTTPStatusCode}
		case apiErr.HTTPStatusCode >= 500:
			return &Error{Type: ErrorTypeEndpoint, Message: "service error", Retryable: true, Cause: err, StatusCode: apiErr.HTTPStatusCode}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "context deadline exceeded") || strings.Contains(msg, "timeout"):
		return &Error{Type: ErrorTypeTimeout, Message: "request timed out", Retryable: true, Cause: err}
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return &Error{Type: ErrorTypeConnection, Message: "cannot reach endpoint, check the endpoint URL", Cause: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: "chat completion failed", Cause: err}
	}
}
