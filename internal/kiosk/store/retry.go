package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	maxAttempts = 3
	baseDelay   = 100 * time.Millisecond
)

// withBackoff runs op up to maxAttempts times, doubling the delay from
// baseDelay between attempts. Context cancellation is never retried.
func withBackoff(ctx context.Context, op func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(baseDelay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// Constraint violations are deterministic; retrying them only
		// delays the duplicate-ticket answer.
		if strings.Contains(err.Error(), "constraint") {
			return err
		}
		return retry.RetryableError(err)
	})
}
