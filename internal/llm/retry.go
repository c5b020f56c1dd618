package llm

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/avast/retry-go/v4"
)

const MaxRetries = 3

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// withRetry runs open until it succeeds, fails with a non-retryable error,
// or MaxRetries retries are spent. Only opening a stream is retried; once
// text has been delivered a failure is final.
func withRetry(ctx context.Context, log *slog.Logger, delay func(int) time.Duration, open func() error) error {
	if delay == nil {
		delay = Backoff
	}
	return retry.Do(
		open,
		retry.Context(ctx),
		retry.Attempts(MaxRetries+1),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
		retry.DelayType(func(n uint, _ error, _ *retry.Config) time.Duration {
			return delay(int(n))
		}),
		retry.OnRetry(func(n uint, err error) {
			if log != nil {
				log.Warn("retrying model stream", "attempt", n+1, "error", err)
			}
		}),
	)
}
