package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/core/pipeline"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queryVectors = map[string][]float32{
	"alpha":  {1, 0.1, 0},
	"mixed":  {1, 0, 0.5},
	"nobody": {0, 0, 0},
}

func testEmbedder() pipeline.Embedder {
	return pipeline.NewFuncEmbedder(func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := queryVectors[text]; ok {
			return v, nil
		}
		return nil, helper.NewEmbeddingError("embed", text, errors.New("unknown query"))
	}, 3)
}

// chainStore holds the chain A-B, B-C, C-D. Chunk c1 mentions A and B,
// c2 mentions C, c3 mentions D.
func chainStore(t *testing.T) *graph.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := graph.NewMemoryStore(3, helper.NewLogger(slog.LevelWarn))

	require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
		{Name: "A", Embedding: []float32{1, 0, 0}},
		{Name: "B"},
		{Name: "C"},
		{Name: "D", Embedding: []float32{1, 0, 0.5}},
	}))
	require.NoError(t, store.UpsertHyperedges(ctx, []*model.Hyperedge{
		model.NewHyperedge([]string{"A", "B"}, "A with B", nil),
		model.NewHyperedge([]string{"B", "C"}, "B with C", nil),
		model.NewHyperedge([]string{"C", "D"}, "C with D", nil),
	}))
	require.NoError(t, store.UpsertChunks(ctx, []*model.Chunk{
		{ID: "c1", Content: "A and B", Embedding: []float32{1, 0, 0}},
		{ID: "c2", Content: "C", Embedding: []float32{0, 1, 0}},
		{ID: "c3", Content: "D", Embedding: []float32{0, 0, 1}},
	}))
	require.NoError(t, store.LinkChunkEntities(ctx, []model.ChunkLink{
		{ChunkID: "c1", EntityNames: []string{"A", "B"}},
		{ChunkID: "c2", EntityNames: []string{"C"}},
		{ChunkID: "c3", EntityNames: []string{"D"}},
	}))
	return store
}

func testResilience() pipeline.ResilienceConfig {
	config := pipeline.DefaultResilienceConfig()
	config.Timeout = 50 * time.Millisecond
	config.MaxAttempts = 3
	config.InitialInterval = time.Millisecond
	config.MaxInterval = time.Millisecond
	return config
}

func newTestEngine(t *testing.T, store graph.Store) *Engine {
	t.Helper()
	engine, err := NewEngine(store, testEmbedder(), testResilience(), helper.NewLogger(slog.LevelWarn))
	require.NoError(t, err)
	return engine
}

func queryConfig(topN, maxHops int) *model.QueryConfig {
	config := model.DefaultQueryConfig()
	config.TopN = topN
	config.MaxHops = maxHops
	return &config
}

func hyperedgeContents(result *model.QueryResult) []string {
	out := []string{}
	for _, h := range result.Hyperedges {
		out = append(out, h.Content)
	}
	return out
}

// failingTraversal breaks graph expansion.
type failingTraversal struct {
	*graph.MemoryStore
}

func (f failingTraversal) TraverseFromEntity(ctx context.Context, seed string, maxHops int, limit int) ([]*model.EntityDistance, error) {
	return nil, helper.NewStoreError("traverse", seed, errors.New("connection lost"))
}

// flakySearch fails the first failures chunk searches.
type flakySearch struct {
	*graph.MemoryStore
	failures int32
	calls    *atomic.Int32
}

func (f flakySearch) SearchChunks(ctx context.Context, vector []float32, topK int) ([]*model.ScoredChunk, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, helper.NewStoreError("search chunks", "", errors.New("connection reset"))
	}
	return f.MemoryStore.SearchChunks(ctx, vector, topK)
}

// stalledTraversal never answers a traversal before its context ends.
type stalledTraversal struct {
	*graph.MemoryStore
}

func (s stalledTraversal) TraverseFromEntity(ctx context.Context, seed string, maxHops int, limit int) ([]*model.EntityDistance, error) {
	<-ctx.Done()
	return nil, helper.NewStoreError("traverse", seed, ctx.Err())
}

func TestQueryLocalResilience(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid call QueryLocal retries a failed seed search", func(t *testing.T) {
		store := flakySearch{MemoryStore: chainStore(t), failures: 1, calls: &atomic.Int32{}}
		engine := newTestEngine(t, store)

		result, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 1))
		require.NoError(t, err)
		assert.Equal(t, int32(2), store.calls.Load(), "Expected one retry after the failed search")
		require.Len(t, result.TopChunks, 1)
		assert.Equal(t, "c1", result.TopChunks[0].ID)
		assert.False(t, result.Degraded)
	})

	t.Run("Valid call QueryLocal degrades when traversal times out", func(t *testing.T) {
		engine := newTestEngine(t, stalledTraversal{chainStore(t)})

		callerCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		start := time.Now()
		result, err := engine.QueryLocal(callerCtx, "alpha", queryConfig(1, 2))
		require.NoError(t, err)
		assert.Less(t, time.Since(start), 2*time.Second, "Expected the per-call timeout to end the traversal")
		assert.True(t, result.Degraded)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], context.DeadlineExceeded.Error())
		require.Len(t, result.TopChunks, 1)
		assert.Equal(t, []string{"A", "B"}, result.EntitiesFound)
	})

	t.Run("Invalid call QueryLocal when seed search keeps failing", func(t *testing.T) {
		store := flakySearch{MemoryStore: chainStore(t), failures: 100, calls: &atomic.Int32{}}
		engine := newTestEngine(t, store)

		_, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 1))
		assert.ErrorIs(t, err, helper.ErrStore)
		assert.Equal(t, int32(3), store.calls.Load(), "Expected the attempts to be bounded")
	})

	t.Run("Invalid call QueryLocal with cancelled caller context", func(t *testing.T) {
		engine := newTestEngine(t, stalledTraversal{chainStore(t)})

		callerCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := engine.QueryLocal(callerCtx, "alpha", queryConfig(1, 2))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestQueryLocal(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid call QueryLocal with max hops 0", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))

		result, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 0))
		require.NoError(t, err)

		require.Len(t, result.TopChunks, 1)
		assert.Equal(t, "c1", result.TopChunks[0].ID)
		assert.Equal(t, []string{"A", "B"}, result.TopChunks[0].Entities)
		assert.Equal(t, []string{"A", "B"}, result.EntitiesFound, "Expected only seed chunk entities")
		assert.ElementsMatch(t, []string{"A with B", "B with C"}, hyperedgeContents(result), "Expected only hyperedges of seed entities")
		assert.Empty(t, result.ExpandedChunks)
		assert.Equal(t, 1, result.TotalChunksFound)
		assert.Equal(t, 2, result.TotalHyperedgesFound)
		assert.Equal(t, 0, result.TotalExpandedChunks)
		assert.False(t, result.Degraded)
	})

	t.Run("Valid call QueryLocal with max hops 1", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))

		result, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 1))
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "B", "C"}, result.EntitiesFound)
		assert.ElementsMatch(t, []string{"A with B", "B with C"}, hyperedgeContents(result))
		require.Len(t, result.ExpandedChunks, 1)
		assert.Equal(t, "c2", result.ExpandedChunks[0].ID)
		assert.Equal(t, "C", result.ExpandedChunks[0].Via)
		assert.Equal(t, 1, result.ExpandedChunks[0].Distance)
	})

	t.Run("Valid call QueryLocal with max hops 2", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))

		result, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 2))
		require.NoError(t, err)

		assert.Equal(t, []string{"A", "B", "C", "D"}, result.EntitiesFound)
		assert.ElementsMatch(t, []string{"A with B", "B with C", "C with D"}, hyperedgeContents(result))
		require.Len(t, result.ExpandedChunks, 2)
		assert.Equal(t, "c2", result.ExpandedChunks[0].ID)
		assert.Equal(t, "c3", result.ExpandedChunks[1].ID)
		assert.Equal(t, 2, result.ExpandedChunks[1].Distance)
		assert.Equal(t, 2, result.TotalExpandedChunks)
	})

	t.Run("Expanded chunks are capped and exclude seeds", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))
		config := queryConfig(3, 2)
		config.MaxExpandedChunks = 1

		result, err := engine.QueryLocal(ctx, "alpha", config)
		require.NoError(t, err)
		assert.Len(t, result.TopChunks, 3)
		assert.Empty(t, result.ExpandedChunks, "Expected every reachable chunk to already be a seed")

		result, err = engine.QueryLocal(ctx, "alpha", queryConfig(1, 2))
		require.NoError(t, err)
		for _, c := range result.ExpandedChunks {
			assert.NotEqual(t, "c1", c.ID)
		}
	})

	t.Run("Entity seeds extend the frontier", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))
		config := queryConfig(1, 0)
		config.IncludeEntitySeeds = true

		result, err := engine.QueryLocal(ctx, "mixed", config)
		require.NoError(t, err)
		assert.Equal(t, "c1", result.TopChunks[0].ID)
		assert.Equal(t, []string{"A", "B", "D"}, result.EntitiesFound)
		assert.Contains(t, hyperedgeContents(result), "C with D")
	})

	t.Run("Empty store yields an empty result", func(t *testing.T) {
		engine := newTestEngine(t, graph.NewMemoryStore(3, nil))

		result, err := engine.QueryLocal(ctx, "alpha", nil)
		require.NoError(t, err)
		assert.Equal(t, "alpha", result.Query)
		assert.NotNil(t, result.TopChunks)
		assert.Empty(t, result.TopChunks)
		assert.Empty(t, result.Hyperedges)
		assert.Empty(t, result.EntitiesFound)
		assert.Zero(t, result.TotalChunksFound)
		assert.Zero(t, result.TotalHyperedgesFound)
	})

	t.Run("Expansion failure degrades to seed chunks", func(t *testing.T) {
		engine := newTestEngine(t, failingTraversal{chainStore(t)})

		result, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 2))
		require.NoError(t, err)
		assert.True(t, result.Degraded)
		require.Len(t, result.Warnings, 1)
		assert.Contains(t, result.Warnings[0], "connection lost")
		assert.Len(t, result.TopChunks, 1)
		assert.Equal(t, []string{"A", "B"}, result.EntitiesFound)
		assert.Empty(t, result.Hyperedges)
	})

	t.Run("Invalid call QueryLocal", func(t *testing.T) {
		engine := newTestEngine(t, chainStore(t))

		_, err := engine.QueryLocal(ctx, "alpha", queryConfig(1, 6))
		assert.ErrorIs(t, err, helper.ErrConfig, "Expected max hops above the limit to fail")

		_, err = engine.QueryLocal(ctx, "alpha", queryConfig(1, -1))
		assert.ErrorIs(t, err, helper.ErrConfig)

		_, err = engine.QueryLocal(ctx, "alpha", queryConfig(0, 1))
		assert.ErrorIs(t, err, helper.ErrConfig)

		_, err = engine.QueryLocal(ctx, "unknown", queryConfig(1, 1))
		assert.ErrorIs(t, err, helper.ErrEmbedding)
	})
}

func TestRankChunks(t *testing.T) {
	scored := []*model.ScoredChunk{
		{Chunk: &model.Chunk{ID: "a"}, Score: 0.5},
		{Chunk: &model.Chunk{ID: "b"}, Score: 0.7},
		{Chunk: &model.Chunk{ID: "a"}, Score: 0.9},
		{Chunk: &model.Chunk{ID: "c"}, Score: 0.7},
	}

	hits := RankChunks(scored)
	require.Len(t, hits, 3)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, 0.9, hits[0].Score, "Expected the highest score to be kept")
	assert.Equal(t, "b", hits[1].ID, "Expected ties to keep input order")
	assert.Equal(t, "c", hits[2].ID)
	assert.NotNil(t, hits[1].Entities)
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil, testEmbedder(), testResilience(), nil)
	assert.ErrorIs(t, err, helper.ErrConfig)

	_, err = NewEngine(graph.NewMemoryStore(3, nil), nil, testResilience(), nil)
	assert.ErrorIs(t, err, helper.ErrConfig)
}
