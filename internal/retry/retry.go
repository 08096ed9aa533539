// Package retry runs an operation again with exponential backoff while it
// fails with an error the caller considers transient.
package retry

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	// Retriable decides whether an error is worth another attempt. A nil
	// Retriable retries every error.
	Retriable func(error) bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialBackoff:    20 * time.Millisecond,
		MaxBackoff:        500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// ExhaustedError is returned when every attempt failed with a retriable
// error.
type ExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("operation %q failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

type Retryable[T any] func(ctx context.Context) (T, error)

// Do runs fn until it succeeds, fails with a non-retriable error, runs out
// of attempts or ctx is done. Non-retriable errors are returned unwrapped.
func Do[T any](ctx context.Context, cfg Config, op string, fn Retryable[T]) (T, error) {
	var zero T
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if cfg.Retriable != nil && !cfg.Retriable(err) {
			return zero, err
		}
		lastErr = err

		if attempt < attempts {
			backoff := Backoff(attempt-1, cfg)
			zap.L().Warn("retry.attempt_failed",
				zap.String("operation", op),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", attempts),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			t := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return zero, ctx.Err()
			case <-t.C:
			}
		}
	}

	return zero, &ExhaustedError{Op: op, Attempts: attempts, Err: lastErr}
}

// Backoff is the wait before retry number n, counting from zero.
func Backoff(n int, cfg Config) time.Duration {
	mult := cfg.BackoffMultiplier
	if mult <= 0 {
		mult = 1
	}
	backoff := time.Duration(float64(cfg.InitialBackoff) * math.Pow(mult, float64(n)))
	if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
		backoff = cfg.MaxBackoff
	}
	return backoff
}
