package models

import "fmt"

// QueryMetadata describes how a backend query went, independent of its rows.
type QueryMetadata struct {
	Total        int     `json:"total"`
	QueryMS      float64 `json:"query_ms"`
	Truncated    bool    `json:"truncated"`
	PartialError string  `json:"partial_error,omitempty"`
}

// QueryResult is the envelope every executor operation returns on success,
// including partial success.
type QueryResult struct {
	Metadata QueryMetadata `json:"metadata"`
	Results  []any         `json:"results"`
}

// QueryError is the only error type the executor produces. RetryPossible is
// true only for transient backend failures (throttling and 5xx responses).
// Status holds the HTTP status code when the failure came from the service;
// it is diagnostic only and never serialized into tool results.
type QueryError struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	RetryPossible bool   `json:"retry_possible"`
	Status        int    `json:"-"`
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRetryable reports whether the caller may retry the query once.
func (e *QueryError) IsRetryable() bool {
	return e.RetryPossible
}
