package customfit

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestIsRetriableStatus(t *testing.T) {
	c := qt.New(t)
	c.Assert(isRetriableStatus(500), qt.IsTrue)
	c.Assert(isRetriableStatus(503), qt.IsTrue)
	c.Assert(isRetriableStatus(408), qt.IsTrue)
	c.Assert(isRetriableStatus(429), qt.IsTrue)
	c.Assert(isRetriableStatus(404), qt.IsFalse)
	c.Assert(isRetriableStatus(400), qt.IsFalse)
}

func TestRetriableFromCategory(t *testing.T) {
	c := qt.New(t)
	c.Assert(retriable(NewError(CategoryNetwork, "x", nil)), qt.IsTrue)
	c.Assert(retriable(NewError(CategoryValidation, "x", nil)), qt.IsFalse)
}

func TestRetriableFromStatus(t *testing.T) {
	c := qt.New(t)
	err := NewError(CategoryNetwork, "bad status", &httpStatusError{StatusCode: 500})
	c.Assert(retriable(err), qt.IsTrue)
}

func TestWithRetrySucceedsEventually(t *testing.T) {
	c := qt.New(t)
	policy := RetryPolicy{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2.0}
	attempts := 0
	v, err := withRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		attempts++
		if attempts < 3 {
			return 0, NewError(CategoryNetwork, "transient", nil)
		}
		return 99, nil
	})
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, 99)
	c.Assert(attempts, qt.Equals, 3)
}

func TestWithRetryStopsOnNonRetriable(t *testing.T) {
	c := qt.New(t)
	policy := RetryPolicy{MaxAttempts: 3, InitialDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2.0}
	attempts := 0
	_, err := withRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		attempts++
		return 0, NewError(CategoryValidation, "bad request", nil)
	})
	c.Assert(err, qt.Not(qt.IsNil))
	c.Assert(attempts, qt.Equals, 1)
}

func TestWithRetryExhausts(t *testing.T) {
	c := qt.New(t)
	policy := RetryPolicy{MaxAttempts: 2, InitialDelayMs: 1, MaxDelayMs: 5, BackoffMultiplier: 2.0}
	attempts := 0
	wantErr := NewError(CategoryTimeout, "always fails", nil)
	_, err := withRetry(context.Background(), policy, func(ctx context.Context) (int, error) {
		attempts++
		return 0, wantErr
	})
	c.Assert(err, qt.Equals, error(wantErr))
	c.Assert(attempts, qt.Equals, 3)
}
