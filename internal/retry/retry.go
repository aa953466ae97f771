package retry

import (
	"context"
	"time"

	ai "github.com/spetersoncode/gambit"
)

// Attempt describes a failed attempt that will be retried.
type Attempt struct {
	// Number is the failed attempt (1-indexed).
	Number int

	// MaxAttempts is the total number of attempts allowed.
	MaxAttempts int

	// Err is the error from the failed attempt.
	Err error

	// Delay is the wait before the next attempt.
	Delay time.Duration
}

// Notify is called before sleeping between attempts.
type Notify func(Attempt)

// effectiveDelay returns the delay to use, honoring server's Retry-After if larger.
func effectiveDelay(configuredDelay time.Duration, err error) time.Duration {
	if serverDelay := ai.RetryAfterOf(err); serverDelay > configuredDelay {
		return serverDelay
	}
	return configuredDelay
}

// Do executes fn with retry logic. Only transient errors are retried.
// It respects context cancellation during backoff waits.
// Returns the result on success, or the last error if all attempts fail.
func Do[T any](ctx context.Context, cfg Config, notify Notify, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return zero, err
		}

		if attempt < attempts-1 {
			delay := effectiveDelay(cfg.Delay(attempt), err)
			if notify != nil {
				notify(Attempt{Number: attempt + 1, MaxAttempts: attempts, Err: err, Delay: delay})
			}

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}
