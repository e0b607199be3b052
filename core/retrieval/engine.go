package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/core/pipeline"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// Engine runs local searches against a graph store. It only reads from the store.
type Engine struct {
	store      graph.Store
	embedder   pipeline.Embedder
	resilience pipeline.ResilienceConfig
	logger     *slog.Logger
}

// NewEngine creates a new retrieval engine. Every store read is bounded by
// resilience.Timeout and retried up to resilience.MaxAttempts times.
func NewEngine(store graph.Store, embedder pipeline.Embedder, resilience pipeline.ResilienceConfig, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, helper.NewConfigError("graph_store", errors.New("store is nil"))
	}
	if embedder == nil {
		return nil, helper.NewConfigError("embedder", errors.New("embedder is nil"))
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Engine{
		store:      store,
		embedder:   embedder,
		resilience: resilience,
		logger:     logger,
	}, nil
}

// read runs one store call with the per-call timeout and bounded retries.
func read[T any](ctx context.Context, e *Engine, fn func(ctx context.Context) (T, error)) (T, error) {
	return helper.Retry(ctx, e.resilience.RetryConfig(), fn)
}

// QueryLocal embeds the query, seeds with the most similar chunks, expands
// over shared hyperedges up to config.MaxHops and assembles the result.
//
// Errors before seeding completes are returned. Failures during expansion
// return the seed chunks only, with Degraded set and a warning.
func (e *Engine) QueryLocal(ctx context.Context, query string, config *model.QueryConfig) (*model.QueryResult, error) {
	if config == nil {
		defaults := model.DefaultQueryConfig()
		config = &defaults
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	result := model.NewQueryResult(query)

	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}

	seeds, err := read(ctx, e, func(ctx context.Context) ([]*model.ScoredChunk, error) {
		return e.store.SearchChunks(ctx, vector, config.TopN)
	})
	if err != nil {
		return nil, helper.NewError("search chunks", err)
	}
	result.TopChunks = RankChunks(seeds)

	frontier := newReachedSet()
	for _, hit := range result.TopChunks {
		for _, name := range hit.Entities {
			frontier.add(name, 0)
		}
	}

	expansion, err := e.expand(ctx, vector, frontier, result.TopChunks, config)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, helper.NewError("query local", ctxErr)
		}
		e.logger.Warn("Graph expansion failed, returning seed chunks only", slog.String("query", query), slog.String("error", err.Error()))
		result.Degraded = true
		result.Warnings = append(result.Warnings, fmt.Sprintf("graph expansion failed: %v", err))
		result.EntitiesFound = append(result.EntitiesFound, frontier.order...)
	} else {
		result.EntitiesFound = append(result.EntitiesFound, expansion.entities.order...)
		result.Hyperedges = expansion.hyperedges
		result.ExpandedChunks = expansion.chunks
	}

	result.TotalChunksFound = len(result.TopChunks)
	result.TotalHyperedgesFound = len(result.Hyperedges)
	result.TotalExpandedChunks = len(result.ExpandedChunks)

	e.logger.Debug("Local query done",
		slog.String("query", query),
		slog.Int("chunks", result.TotalChunksFound),
		slog.Int("entities", len(result.EntitiesFound)),
		slog.Int("hyperedges", result.TotalHyperedgesFound),
		slog.Int("expanded_chunks", result.TotalExpandedChunks),
	)
	return result, nil
}

// RankChunks dedupes scored chunks by ID, keeping the highest score, and
// sorts them by descending score. Equal scores keep their input order.
func RankChunks(scored []*model.ScoredChunk) []*model.ChunkHit {
	hits := []*model.ChunkHit{}
	byID := map[string]*model.ChunkHit{}

	for _, s := range scored {
		if s == nil || s.Chunk == nil {
			continue
		}
		if existing, ok := byID[s.Chunk.ID]; ok {
			if s.Score > existing.Score {
				existing.Score = s.Score
			}
			continue
		}

		entities := append([]string{}, s.Chunk.Entities...)
		hit := &model.ChunkHit{
			ID:       s.Chunk.ID,
			Content:  s.Chunk.Content,
			Score:    s.Score,
			Entities: entities,
			Metadata: s.Chunk.Metadata,
		}
		byID[hit.ID] = hit
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits
}
