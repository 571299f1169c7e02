package cache

import (
	"context"
	"errors"
	"time"
)

// RetryableError marks an error as transient.
type RetryableError struct{ Err error }

// Retryable wraps err so [RetryWithBackoff] tries again. Nil stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err was wrapped with [Retryable].
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// Backoff configures [RetryWithBackoff].
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

// DefaultBackoff tries three times starting at 200ms and doubling.
var DefaultBackoff = Backoff{Attempts: 3, Delay: 200 * time.Millisecond}

// RetryWithBackoff runs fn with [DefaultBackoff].
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return DefaultBackoff.Retry(ctx, fn)
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unwrapped from its
// RetryableError so callers see the original cause.
func (b Backoff) Retry(ctx context.Context, fn func() error) error {
	attempts := max(b.Attempts, 1)
	delay := b.Delay
	var lastErr error

	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	var re *RetryableError
	if errors.As(lastErr, &re) {
		return re.Err
	}
	return lastErr
}
