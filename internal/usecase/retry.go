package usecase

import (
	"context"
	"time"

	"cover-studio/internal/domain/ports/adapter"
	"cover-studio/internal/infra/metrics"
)

// retryImageCall runs fn up to maxAttempts times, doubling the delay
// between attempts. Only transient failures are retried; a permanent
// classification returns immediately with the original error.
func retryImageCall(ctx context.Context, op string, maxAttempts int, base time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	delay := base
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		img, err := fn()
		if err == nil {
			return img, nil
		}
		lastErr = err
		if !adapter.IsTransient(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}
		metrics.IncGenerationRetry(op)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
