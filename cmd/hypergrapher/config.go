package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/hypergrapher"
	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/core/pipeline"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/spf13/viper"
)

const (
	backendPostgres = "postgres"
	backendNeo4j    = "neo4j"
	backendMemory   = "memory"

	providerHugot  = "hugot"
	providerOpenAI = "openai"
	providerHash   = "hash"
)

func setDefaults(v *viper.Viper) {
	ingest := model.DefaultIngestConfig()
	query := model.DefaultQueryConfig()
	resilience := pipeline.DefaultResilienceConfig()
	extractor := pipeline.DefaultExtractorConfig()

	v.SetDefault("log.level", "info")
	v.SetDefault("store.backend", backendPostgres)

	v.SetDefault("embedder.provider", providerHugot)
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.dimensions", model.DefaultVectorDimension)
	v.SetDefault("embedder.base_url", "")

	v.SetDefault("llm.model", extractor.Model)
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", extractor.Temperature)
	v.SetDefault("llm.max_tokens", extractor.MaxTokens)
	v.SetDefault("llm.timeout", extractor.Timeout)

	v.SetDefault("ingest.chunk_size", ingest.ChunkSize)
	v.SetDefault("ingest.chunk_overlap", ingest.ChunkOverlap)
	v.SetDefault("ingest.batch_size", ingest.BatchSize)
	v.SetDefault("ingest.max_concurrent_tasks", ingest.MaxConcurrentTasks)
	v.SetDefault("ingest.requests_per_second", ingest.RequestsPerSecond)
	v.SetDefault("ingest.extraction_policy", string(ingest.ExtractionPolicy))
	v.SetDefault("ingest.embed_entities", ingest.EmbedEntities)

	v.SetDefault("query.top_n", query.TopN)
	v.SetDefault("query.max_hops", query.MaxHops)
	v.SetDefault("query.max_hops_limit", query.MaxHopsLimit)
	v.SetDefault("query.traversal_limit", query.TraversalLimit)
	v.SetDefault("query.hyperedge_limit", query.HyperedgeLimit)
	v.SetDefault("query.max_expanded_chunks", query.MaxExpandedChunks)
	v.SetDefault("query.include_entity_seeds", query.IncludeEntitySeeds)

	v.SetDefault("resilience.timeout", resilience.Timeout)
	v.SetDefault("resilience.max_attempts", resilience.MaxAttempts)
	v.SetDefault("resilience.initial_interval", resilience.InitialInterval)
	v.SetDefault("resilience.max_interval", resilience.MaxInterval)
	v.SetDefault("resilience.breaker_enabled", resilience.BreakerEnabled)
	v.SetDefault("resilience.breaker_max_requests", resilience.BreakerMaxRequests)
	v.SetDefault("resilience.breaker_interval", resilience.BreakerInterval)
	v.SetDefault("resilience.breaker_timeout", resilience.BreakerTimeout)
	v.SetDefault("resilience.breaker_min_requests", resilience.BreakerMinRequests)
	v.SetDefault("resilience.breaker_failure_ratio", resilience.BreakerFailureRatio)
}

// logger writes to stderr so command output on stdout stays machine readable.
func (c *cli) logger() *slog.Logger {
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: helper.ParseLogLevel(c.v.GetString("log.level")),
		},
	}
	return slog.New(helper.NewPrettyHandler(c.errOut, opts))
}

func (c *cli) options(logger *slog.Logger) *hypergrapher.Options {
	options := hypergrapher.DefaultOptions()
	options.Logger = logger

	options.Ingest.ChunkSize = c.v.GetInt("ingest.chunk_size")
	options.Ingest.ChunkOverlap = c.v.GetInt("ingest.chunk_overlap")
	options.Ingest.BatchSize = c.v.GetInt("ingest.batch_size")
	options.Ingest.MaxConcurrentTasks = c.v.GetInt("ingest.max_concurrent_tasks")
	options.Ingest.RequestsPerSecond = c.v.GetFloat64("ingest.requests_per_second")
	options.Ingest.ExtractionPolicy = model.ExtractionPolicy(c.v.GetString("ingest.extraction_policy"))
	options.Ingest.EmbedEntities = c.v.GetBool("ingest.embed_entities")

	options.Query.TopN = c.v.GetInt("query.top_n")
	options.Query.MaxHops = c.v.GetInt("query.max_hops")
	options.Query.MaxHopsLimit = c.v.GetInt("query.max_hops_limit")
	options.Query.TraversalLimit = c.v.GetInt("query.traversal_limit")
	options.Query.HyperedgeLimit = c.v.GetInt("query.hyperedge_limit")
	options.Query.MaxExpandedChunks = c.v.GetInt("query.max_expanded_chunks")
	options.Query.IncludeEntitySeeds = c.v.GetBool("query.include_entity_seeds")

	options.Resilience.Timeout = c.v.GetDuration("resilience.timeout")
	options.Resilience.MaxAttempts = c.v.GetInt("resilience.max_attempts")
	options.Resilience.InitialInterval = c.v.GetDuration("resilience.initial_interval")
	options.Resilience.MaxInterval = c.v.GetDuration("resilience.max_interval")
	options.Resilience.BreakerEnabled = c.v.GetBool("resilience.breaker_enabled")
	options.Resilience.BreakerMaxRequests = c.v.GetUint32("resilience.breaker_max_requests")
	options.Resilience.BreakerInterval = c.v.GetDuration("resilience.breaker_interval")
	options.Resilience.BreakerTimeout = c.v.GetDuration("resilience.breaker_timeout")
	options.Resilience.BreakerMinRequests = c.v.GetUint32("resilience.breaker_min_requests")
	options.Resilience.BreakerFailureRatio = c.v.GetFloat64("resilience.breaker_failure_ratio")

	return &options
}

func (c *cli) openAIClient(apiKeyKey string, baseURLKey string) *openai.Client {
	config := openai.DefaultConfig(c.v.GetString(apiKeyKey))
	if baseURL := c.v.GetString(baseURLKey); baseURL != "" {
		config.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(config)
}

func (c *cli) embedder() (pipeline.Embedder, error) {
	provider := c.v.GetString("embedder.provider")
	switch provider {
	case providerHugot:
		return pipeline.NewHugotEmbedder(c.v.GetString("embedder.model"))
	case providerOpenAI:
		client := c.openAIClient("embedder.api_key", "embedder.base_url")
		return pipeline.NewOpenAIEmbedder(client, c.v.GetString("embedder.model"), c.v.GetInt("embedder.dimensions"))
	case providerHash:
		return pipeline.NewHashEmbedder(c.v.GetInt("embedder.dimensions")), nil
	default:
		return nil, helper.NewConfigError("embedder.provider", fmt.Errorf("unknown provider %q", provider))
	}
}

func (c *cli) extractor() (pipeline.ExtractFunc, error) {
	config := pipeline.DefaultExtractorConfig()
	config.Model = c.v.GetString("llm.model")
	config.Temperature = float32(c.v.GetFloat64("llm.temperature"))
	config.MaxTokens = c.v.GetInt("llm.max_tokens")
	config.Timeout = c.v.GetDuration("llm.timeout")
	return pipeline.NewLLMExtractor(c.openAIClient("llm.api_key", "llm.base_url"), config)
}

// open builds the HyperGrapher for the configured store backend and providers.
func (c *cli) open(ctx context.Context) (*hypergrapher.HyperGrapher, error) {
	logger := c.logger()

	embedder, err := c.embedder()
	if err != nil {
		return nil, err
	}
	extract, err := c.extractor()
	if err != nil {
		return nil, err
	}
	options := c.options(logger)

	backend := c.v.GetString("store.backend")
	switch backend {
	case backendPostgres:
		config, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		return hypergrapher.NewWithPostgres(config, embedder, extract, options)
	case backendNeo4j:
		config, err := helper.NewNeo4jConfiguration()
		if err != nil {
			return nil, err
		}
		return hypergrapher.NewWithNeo4j(ctx, config, embedder, extract, options)
	case backendMemory:
		logger.Warn("Using the in-memory store, nothing is persisted")
		return hypergrapher.New(graph.NewMemoryStore(embedder.Dimensions(), logger), embedder, extract, options)
	default:
		return nil, helper.NewConfigError("store.backend", fmt.Errorf("unknown backend %q", backend))
	}
}
