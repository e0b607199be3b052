package hypergrapher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/core/pipeline"
	"github.com/siherrmann/hypergrapher/core/retrieval"
	"github.com/siherrmann/hypergrapher/database"
	"github.com/siherrmann/hypergrapher/database/neo4jstore"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// Options configures a HyperGrapher.
type Options struct {
	Ingest     model.IngestConfig
	Query      model.QueryConfig
	Resilience pipeline.ResilienceConfig
	Logger     *slog.Logger
}

// DefaultOptions returns the default ingestion, query and resilience settings.
func DefaultOptions() Options {
	return Options{
		Ingest:     model.DefaultIngestConfig(),
		Query:      model.DefaultQueryConfig(),
		Resilience: pipeline.DefaultResilienceConfig(),
	}
}

// HyperGrapher ties a graph store, an embedder and an extractor together
// into an ingestion pipeline and a local search engine.
type HyperGrapher struct {
	Store    graph.Store
	Embedder pipeline.Embedder
	Ingestor *pipeline.Ingestor
	Engine   *retrieval.Engine

	options Options
	// Logging
	log *slog.Logger
}

// New creates a HyperGrapher on an existing store. The embedder and
// extractor are wrapped with timeouts, retries and circuit breakers
// according to options.Resilience. A nil options uses DefaultOptions.
func New(store graph.Store, embedder pipeline.Embedder, extract pipeline.ExtractFunc, options *Options) (*HyperGrapher, error) {
	if options == nil {
		defaults := DefaultOptions()
		options = &defaults
	}
	if err := options.Ingest.Validate(); err != nil {
		return nil, err
	}
	if err := options.Query.Validate(); err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, helper.NewConfigError("embedder", errors.New("embedder is nil"))
	}
	if extract == nil {
		return nil, helper.NewConfigError("extractor", errors.New("extractor is nil"))
	}

	logger := options.Logger
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}

	resilientEmbedder := pipeline.NewResilientEmbedder(embedder, options.Resilience, logger)
	resilientExtract := pipeline.NewResilientExtractor(extract, options.Resilience, logger)

	ingestor, err := pipeline.NewIngestor(store, resilientEmbedder, resilientExtract, options.Resilience, logger)
	if err != nil {
		return nil, helper.NewError("create ingestor", err)
	}
	engine, err := retrieval.NewEngine(store, resilientEmbedder, options.Resilience, logger)
	if err != nil {
		return nil, helper.NewError("create retrieval engine", err)
	}

	return &HyperGrapher{
		Store:    store,
		Embedder: embedder,
		Ingestor: ingestor,
		Engine:   engine,
		options:  *options,
		log:      logger,
	}, nil
}

// NewWithPostgres connects to PostgreSQL, loads the SQL functions and tables
// for the embedder's dimension and returns a HyperGrapher on that store.
func NewWithPostgres(config *helper.DatabaseConfiguration, embedder pipeline.Embedder, extract pipeline.ExtractFunc, options *Options) (*HyperGrapher, error) {
	if embedder == nil {
		return nil, helper.NewConfigError("embedder", errors.New("embedder is nil"))
	}
	logger := loggerOf(options)

	db, err := helper.NewDatabase("hypergrapher", config, logger)
	if err != nil {
		return nil, helper.NewError("connect database", err)
	}
	store, err := database.NewStore(db, embedder.Dimensions(), false)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create postgres store", err)
	}

	h, err := New(store, embedder, extract, options)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return h, nil
}

// NewWithNeo4j connects to Neo4j, creates the vector indexes for the
// embedder's dimension and returns a HyperGrapher on that store.
func NewWithNeo4j(ctx context.Context, config *helper.Neo4jConfiguration, embedder pipeline.Embedder, extract pipeline.ExtractFunc, options *Options) (*HyperGrapher, error) {
	if embedder == nil {
		return nil, helper.NewConfigError("embedder", errors.New("embedder is nil"))
	}

	store, err := neo4jstore.NewStore(ctx, config, embedder.Dimensions(), loggerOf(options))
	if err != nil {
		return nil, helper.NewError("create neo4j store", err)
	}

	h, err := New(store, embedder, extract, options)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return h, nil
}

func loggerOf(options *Options) *slog.Logger {
	if options != nil && options.Logger != nil {
		return options.Logger
	}
	return helper.NewLogger(slog.LevelInfo)
}

// Insert ingests documents. A nil config uses the configured ingest options.
func (h *HyperGrapher) Insert(ctx context.Context, docs []*model.Document, config *model.IngestConfig) (*model.IngestionSummary, error) {
	if config == nil {
		config = &h.options.Ingest
	}
	summary, err := h.Ingestor.Ingest(ctx, docs, config)
	if err != nil {
		return summary, err
	}

	h.log.Info("Inserted documents",
		slog.Int("documents", summary.Documents),
		slog.Int("committed", summary.DocumentsCommitted),
		slog.Int("chunks", summary.ChunksStored),
		slog.Int("failed_chunks", len(summary.FailedChunks)),
		slog.Int("failed_documents", len(summary.FailedDocuments)),
	)
	return summary, nil
}

// InsertTexts ingests plain texts. The same metadata is attached to every text.
func (h *HyperGrapher) InsertTexts(ctx context.Context, texts []string, metadata model.Metadata, config *model.IngestConfig) (*model.IngestionSummary, error) {
	docs := make([]*model.Document, 0, len(texts))
	for _, text := range texts {
		docs = append(docs, &model.Document{Content: text, Metadata: metadata.Clone()})
	}
	return h.Insert(ctx, docs, config)
}

// QueryLocal runs a local search with the given top_n and max_hops and the
// remaining query options.
func (h *HyperGrapher) QueryLocal(ctx context.Context, query string, topN int, maxHops int) (*model.QueryResult, error) {
	config := h.options.Query
	config.TopN = topN
	config.MaxHops = maxHops
	return h.Engine.QueryLocal(ctx, query, &config)
}

// QueryLocalWithConfig runs a local search with a full query configuration.
// A nil config uses the configured query options.
func (h *HyperGrapher) QueryLocalWithConfig(ctx context.Context, query string, config *model.QueryConfig) (*model.QueryResult, error) {
	if config == nil {
		config = &h.options.Query
	}
	return h.Engine.QueryLocal(ctx, query, config)
}

// Reset removes all stored data and rebuilds the indexes.
func (h *HyperGrapher) Reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return helper.NewError("reset", err)
	}
	h.log.Info("Reset hypergrapher")
	return nil
}

// Close releases the store connection and, if it holds resources, the embedder.
func (h *HyperGrapher) Close() error {
	var errs []error
	if err := h.Store.Close(); err != nil {
		errs = append(errs, helper.NewError("close store", err))
	}
	if closer, ok := h.Embedder.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, helper.NewError("close embedder", err))
		}
	}
	return errors.Join(errs...)
}

// CheckHealth asks the store for its health and compares every vector index
// dimension with the embedder's dimension.
func (h *HyperGrapher) CheckHealth(ctx context.Context) *model.HealthReport {
	details := h.Store.HealthCheck(ctx)
	report := &model.HealthReport{
		Healthy:            true,
		EmbedderDimensions: h.Embedder.Dimensions(),
		Details:            details,
	}

	if !details.Connected {
		report.Healthy = false
		report.Messages = append(report.Messages, "graph store is not connected")
	}
	for _, e := range details.Errors {
		report.Healthy = false
		report.Messages = append(report.Messages, "graph store error: "+e)
	}

	names := make([]string, 0, len(details.Indexes))
	for name := range details.Indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dimensions := details.Indexes[name]
		if dimensions != report.EmbedderDimensions {
			report.Healthy = false
			report.Messages = append(report.Messages, fmt.Sprintf("index %s has dimension %d, embedder produces %d", name, dimensions, report.EmbedderDimensions))
		}
	}

	if report.Healthy {
		report.Messages = append(report.Messages, fmt.Sprintf("healthy: %d vector indexes match dimension %d", len(names), report.EmbedderDimensions))
	} else {
		h.log.Warn("Health check failed", slog.Any("messages", report.Messages))
	}
	return report
}
