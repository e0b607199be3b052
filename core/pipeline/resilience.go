package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/sony/gobreaker"
)

// ResilienceConfig bounds calls to the embedder, extractor and store.
type ResilienceConfig struct {
	// Timeout applies to every single call. Zero disables it.
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`

	// Circuit breaker settings. The breaker opens once at least
	// BreakerMinRequests calls were made in an Interval and the failure ratio
	// reaches BreakerFailureRatio; it half-opens again after BreakerTimeout.
	BreakerEnabled      bool          `yaml:"breaker_enabled"`
	BreakerMaxRequests  uint32        `yaml:"breaker_max_requests"`
	BreakerInterval     time.Duration `yaml:"breaker_interval"`
	BreakerTimeout      time.Duration `yaml:"breaker_timeout"`
	BreakerMinRequests  uint32        `yaml:"breaker_min_requests"`
	BreakerFailureRatio float64       `yaml:"breaker_failure_ratio"`
}

func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Timeout:             60 * time.Second,
		MaxAttempts:         3,
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		BreakerEnabled:      true,
		BreakerMaxRequests:  1,
		BreakerInterval:     60 * time.Second,
		BreakerTimeout:      30 * time.Second,
		BreakerMinRequests:  5,
		BreakerFailureRatio: 0.6,
	}
}

// RetryConfig converts the config to the helper retry settings.
func (c ResilienceConfig) RetryConfig() helper.RetryConfig {
	return helper.RetryConfig{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: c.InitialInterval,
		MaxInterval:     c.MaxInterval,
		Timeout:         c.Timeout,
	}
}

func newBreaker(name string, config ResilienceConfig, logger *slog.Logger) *gobreaker.CircuitBreaker {
	if !config.BreakerEnabled {
		return nil
	}
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: config.BreakerMaxRequests,
		Interval:    config.BreakerInterval,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.BreakerMinRequests && failureRatio >= config.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
		// Schema violations are the caller's problem, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || helper.IsPermanent(err)
		},
	}
	return gobreaker.NewCircuitBreaker(st)
}

// guard runs fn with retries, per-attempt timeout and the optional breaker.
func guard[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, config ResilienceConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return helper.Retry(ctx, config.RetryConfig(), func(ctx context.Context) (T, error) {
		if cb == nil {
			return fn(ctx)
		}
		result, err := cb.Execute(func() (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			var zero T
			return zero, err
		}
		return result.(T), nil
	})
}

type resilientEmbedder struct {
	inner  Embedder
	cb     *gobreaker.CircuitBreaker
	config ResilienceConfig
}

// NewResilientEmbedder wraps an embedder with timeouts, retries and a circuit breaker.
func NewResilientEmbedder(inner Embedder, config ResilienceConfig, logger *slog.Logger) Embedder {
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &resilientEmbedder{
		inner:  inner,
		cb:     newBreaker("embedder", config, logger),
		config: config,
	}
}

func (r *resilientEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := guard(ctx, r.cb, r.config, func(ctx context.Context) ([]float32, error) {
		return r.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, helper.NewEmbeddingError("embed", "", err)
	}
	return vector, nil
}

func (r *resilientEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := guard(ctx, r.cb, r.config, func(ctx context.Context) ([][]float32, error) {
		return r.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, helper.NewEmbeddingError("embed batch", "", err)
	}
	return vectors, nil
}

func (r *resilientEmbedder) Dimensions() int {
	return r.inner.Dimensions()
}

// NewResilientExtractor wraps an ExtractFunc with timeouts, retries and a circuit breaker.
// Extraction errors (schema violations) are not retried.
func NewResilientExtractor(extract ExtractFunc, config ResilienceConfig, logger *slog.Logger) ExtractFunc {
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	cb := newBreaker("extractor", config, logger)
	return func(ctx context.Context, text string) (*model.Extraction, error) {
		return guard(ctx, cb, config, func(ctx context.Context) (*model.Extraction, error) {
			return extract(ctx, text)
		})
	}
}
