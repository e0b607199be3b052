package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastResilience() ResilienceConfig {
	config := DefaultResilienceConfig()
	config.MaxAttempts = 3
	config.InitialInterval = time.Millisecond
	config.MaxInterval = 2 * time.Millisecond
	config.Timeout = time.Second
	return config
}

func TestNewResilientExtractor(t *testing.T) {
	ctx := context.Background()

	t.Run("Transient errors are retried", func(t *testing.T) {
		calls := 0
		extract := NewResilientExtractor(func(ctx context.Context, text string) (*model.Extraction, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection reset")
			}
			return &model.Extraction{}, nil
		}, fastResilience(), helper.NewLogger(helper.ParseLogLevel("error")))

		_, err := extract(ctx, "text")
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("Extraction errors are not retried", func(t *testing.T) {
		calls := 0
		extract := NewResilientExtractor(func(ctx context.Context, text string) (*model.Extraction, error) {
			calls++
			return nil, helper.NewExtractionError("", errors.New("bad schema"))
		}, fastResilience(), nil)

		_, err := extract(ctx, "text")
		assert.ErrorIs(t, err, helper.ErrExtraction)
		assert.Equal(t, 1, calls)
	})

	t.Run("Breaker opens after repeated failures", func(t *testing.T) {
		config := fastResilience()
		config.MaxAttempts = 1
		config.BreakerMinRequests = 2
		config.BreakerFailureRatio = 0.5
		config.BreakerTimeout = time.Minute

		calls := 0
		extract := NewResilientExtractor(func(ctx context.Context, text string) (*model.Extraction, error) {
			calls++
			return nil, errors.New("down")
		}, config, nil)

		for i := 0; i < 2; i++ {
			_, _ = extract(ctx, "text")
		}
		_, err := extract(ctx, "text")
		assert.ErrorIs(t, err, gobreaker.ErrOpenState)
		assert.Equal(t, 2, calls, "Expected open breaker to short-circuit the call")
	})

	t.Run("Per call timeout", func(t *testing.T) {
		config := fastResilience()
		config.MaxAttempts = 1
		config.Timeout = 5 * time.Millisecond
		extract := NewResilientExtractor(func(ctx context.Context, text string) (*model.Extraction, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, config, nil)

		_, err := extract(ctx, "text")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestNewResilientEmbedder(t *testing.T) {
	calls := 0
	inner := NewFuncEmbedder(func(ctx context.Context, text string) ([]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("timeout")
		}
		return []float32{1, 2}, nil
	}, 2)

	embedder := NewResilientEmbedder(inner, fastResilience(), nil)
	vector, err := embedder.Embed(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vector)
	assert.Equal(t, 2, embedder.Dimensions())
}
