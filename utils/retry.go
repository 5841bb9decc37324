package utils

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Logger      *Logger
}

// Do executes fn with exponential back-off retry logic.
func (r *RetryConfig) Do(operationName string, fn func() error) error {
	return r.DoContext(context.Background(), operationName, func(context.Context) error { return fn() })
}

// DoContext is Do with cancellation: a done context stops further attempts
// and its error is returned wrapped around the last failure.
func (r *RetryConfig) DoContext(ctx context.Context, operationName string, fn func(ctx context.Context) error) error {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := r.BaseDelay

	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s aborted after %d attempts: %w", operationName, attempt, lastErr)
		}

		if attempt < attempts {
			if r.Logger != nil {
				r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
					operationName, attempt, attempts, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s aborted after %d attempts: %w", operationName, attempt, lastErr)
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempts, lastErr)
}

// Attempts reports how many tries DoContext makes at most.
func (r *RetryConfig) Attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}
