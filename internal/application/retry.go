package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Default retry settings for analyzer and comparator calls.
const (
	DefaultMaxRetries = 2
	DefaultRetryDelay = time.Second
)

// RetryPolicy retries a fallible operation a bounded number of times with a
// fixed delay between attempts. The delay is a timer selected against the
// context, so cancellation interrupts a pending retry.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	// Total attempts are MaxRetries+1.
	MaxRetries int

	// Delay is the fixed wait between attempts. No backoff, no jitter.
	Delay time.Duration

	// Logger receives one warning per failed attempt and one error on
	// exhaustion. Nil discards.
	Logger *slog.Logger
}

// DefaultRetryPolicy returns the production policy: two retries, one second apart.
func DefaultRetryPolicy(logger *slog.Logger) RetryPolicy {
	return RetryPolicy{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay, Logger: logger}
}

// Attempts returns the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int { return max(p.MaxRetries, 0) + 1 }

func (p RetryPolicy) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p.Logger
}

// RetryError is returned once every attempt has failed. Err is the error of
// the last attempt.
type RetryError struct {
	Operation string
	Attempts  int
	Err       error
}

// Error implements the error interface for RetryError.
func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: retries exhausted after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

// Unwrap returns the error of the last attempt.
func (e *RetryError) Unwrap() error { return e.Err }

// Retry invokes op until it succeeds or the policy's attempts are used up.
// On exhaustion it returns a *RetryError wrapping the last failure. If ctx is
// cancelled, Retry stops immediately and returns ctx.Err().
func Retry[T any](ctx context.Context, p RetryPolicy, operation string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	log := p.logger()
	attempts := p.Attempts()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		lastErr = err

		log.Warn("operation attempt failed",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", attempts,
			"err", err,
		)

		if attempt < attempts {
			if err := sleep(ctx, p.Delay); err != nil {
				return zero, err
			}
		}
	}

	log.Error("operation retries exhausted",
		"operation", operation,
		"attempts", attempts,
		"err", lastErr,
	)
	return zero, &RetryError{Operation: operation, Attempts: attempts, Err: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
