// Package retry implements the single-silent-retry policy used for backend
// queries. The policy is a small value, not a framework: callers decide which
// errors are retryable by implementing RetryableError.
package retry

import (
	"context"
	"errors"
	"time"
)

// RetryableError is implemented by errors that know whether a retry could
// succeed. Transport throttling and transient server errors say yes;
// validation errors say no.
type RetryableError interface {
	error
	IsRetryable() bool
}

// Policy bounds how often an operation runs. MaxAttempts counts the first
// call, so MaxAttempts=2 means at most one retry.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultPolicy retries once, immediately.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 2}
}

// IsRetryable reports whether err (or anything it wraps) opts into retry.
func IsRetryable(err error) bool {
	var r RetryableError
	return errors.As(err, &r) && r.IsRetryable()
}

// Do runs fn until it succeeds, returns a non-retryable error, or the policy
// is exhausted. The last result and error are returned either way.
func Do[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 1; ; attempt++ {
		result, err = fn()
		if err == nil || !IsRetryable(err) || attempt >= policy.MaxAttempts {
			return result, err
		}
		if policy.Delay > 0 {
			select {
			case <-ctx.Done():
				return result, err
			case <-time.After(policy.Delay):
			}
		}
	}
}
