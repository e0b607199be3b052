package helper

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig bounds the retries of a single unit of work.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// Timeout applies to every attempt separately. Zero disables it.
	Timeout time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Timeout:         30 * time.Second,
	}
}

// Retry runs fn until it succeeds, returns a permanent error, the attempts
// are used up or ctx is done. Errors matching IsPermanent are not retried.
func Retry[T any](ctx context.Context, config RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempts := config.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	if config.InitialInterval > 0 {
		exp.InitialInterval = config.InitialInterval
	}
	if config.MaxInterval > 0 {
		exp.MaxInterval = config.MaxInterval
	}
	exp.MaxElapsedTime = 0

	var b backoff.BackOff = backoff.WithMaxRetries(exp, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	operation := func() (T, error) {
		attemptCtx := ctx
		if config.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, config.Timeout)
			defer cancel()
		}

		result, err := fn(attemptCtx)
		if err != nil {
			if IsPermanent(err) || ctx.Err() != nil {
				return zero, backoff.Permanent(err)
			}
			return zero, err
		}
		return result, nil
	}

	result, err := backoff.RetryWithData(operation, b)
	if err != nil {
		return zero, err
	}
	return result, nil
}

// RetryVoid is Retry for functions without a result.
func RetryVoid(ctx context.Context, config RetryConfig, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, config, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
