// Package retry makes the retry behavior of outbound API calls an explicit,
// testable parameter instead of inline control flow in each client.
package retry

import (
	"context"
	"net/http"
	"time"
)

// Policy describes how many times to attempt a call and how long to back off
// between attempts. The delay doubles per attempt, capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultPolicy covers the external APIs in use: a couple of retries with a
// short exponential backoff, enough to ride out rate limiting.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Delay returns the backoff before the given attempt (first attempt is 0,
// which never waits).
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// rate limits and server-side failures. Client errors (including 404,
// which carries meaning for adapters) are never retried.
func RetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// Do runs fn up to MaxAttempts times, sleeping per the backoff curve
// between attempts. fn reports whether its error is retryable; a
// non-retryable error, success, or context cancellation ends the loop.
func (p Policy) Do(ctx context.Context, fn func() (retryable bool, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}
	}
	return lastErr
}
