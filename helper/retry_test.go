package helper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid call Retry succeeds after transient errors", func(t *testing.T) {
		calls := 0
		result, err := Retry(ctx, fastRetryConfig(3), func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 3, calls, "Expected three attempts")
	})

	t.Run("Retry gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := RetryVoid(ctx, fastRetryConfig(2), func(ctx context.Context) error {
			calls++
			return errors.New("still failing")
		})
		assert.EqualError(t, err, "still failing")
		assert.Equal(t, 2, calls)
	})

	t.Run("Retry does not repeat permanent errors", func(t *testing.T) {
		calls := 0
		err := RetryVoid(ctx, fastRetryConfig(5), func(ctx context.Context) error {
			calls++
			return NewConfigError("top_n", errors.New("must be positive"))
		})
		assert.ErrorIs(t, err, ErrConfig)
		assert.Equal(t, 1, calls, "Expected permanent error to stop retries")
	})

	t.Run("Retry applies per attempt timeout", func(t *testing.T) {
		config := fastRetryConfig(1)
		config.Timeout = 10 * time.Millisecond
		err := RetryVoid(ctx, config, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
