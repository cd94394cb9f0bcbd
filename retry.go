package customfit

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"
)

// retriableStatusCodes are the HTTP statuses §7 names as retriable
// regardless of ErrorCategory: 408 (request timeout), 429 (rate limited),
// and the 5xx range.
func isRetriableStatus(status int) bool {
	if status == http.StatusRequestTimeout || status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500 && status <= 599
}

// retriable reports whether err should be retried under policy. An HTTP
// status, when present, is authoritative: 401/403/other-4xx (besides
// 408/429) never retry even though the wrapping ResultError may otherwise
// carry a retriable category. Errors with no HTTP status fall back to the
// ErrorCategory check (NETWORK/TIMEOUT).
func retriable(err error) bool {
	var herr *httpStatusError
	if errors.As(err, &herr) {
		return isRetriableStatus(herr.StatusCode)
	}
	var rerr *ResultError
	if errors.As(err, &rerr) && rerr.Retriable() {
		return true
	}
	return false
}

// delayForAttempt computes the backoff delay before attempt n (1-based),
// applying the configured multiplier and capping at MaxDelayMs, then
// jittering by ±20% per §3's RetryPolicy contract.
func delayForAttempt(p RetryPolicy, attempt int) time.Duration {
	base := float64(p.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		base *= p.BackoffMultiplier
		if base > float64(p.MaxDelayMs) {
			base = float64(p.MaxDelayMs)
			break
		}
	}
	jitterFrac := 0.8 + rand.Float64()*0.4 // [0.8, 1.2)
	return time.Duration(base*jitterFrac) * time.Millisecond
}

// withRetry runs op once and then retries it up to policy.MaxAttempts more
// times (1 + MaxAttempts total tries; MaxAttempts counts retries past the
// first, so 0 means a single try), sleeping the jittered backoff delay between
// attempts and stopping early on a non-retriable error or a cancelled
// context.
func withRetry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts+1; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !retriable(err) {
			return zero, err
		}
		if attempt > policy.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delayForAttempt(policy, attempt)):
		}
	}
	return zero, lastErr
}
