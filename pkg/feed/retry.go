package feed

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy defines retry behavior for failed upstream calls
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterEnabled bool
}

// DefaultRetryPolicy matches the provider SLAs we have seen in practice:
// three retries with exponential backoff capped at ten seconds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// WithRetry executes fn, re-invoking it with exponential backoff while
// shouldRetry approves the error. The final error always propagates to
// the caller; exhausting retries never silently succeeds.
func WithRetry(ctx context.Context, policy RetryPolicy, shouldRetry func(error) bool, fn func(context.Context) error) error {
	delay := policy.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			return lastErr
		}
		if attempt == policy.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(jitteredDelay(delay, policy)):
		}

		delay = time.Duration(float64(delay) * policy.BackoffFactor)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}

	return fmt.Errorf("after %d attempts: %w", policy.MaxRetries+1, lastErr)
}

// jitteredDelay adds up to 25% jitter to spread retries from concurrent
// jobs apart
func jitteredDelay(baseDelay time.Duration, policy RetryPolicy) time.Duration {
	if !policy.JitterEnabled {
		return baseDelay
	}
	jitter := time.Duration(float64(baseDelay) * 0.25 * (0.5 - float64(time.Now().UnixNano()%1000)/1000.0))
	return baseDelay + jitter
}
