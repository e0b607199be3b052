package graph

import (
	"context"
	"log/slog"
	"testing"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	return NewMemoryStore(3, helper.NewLogger(slog.LevelWarn))
}

func TestMemoryStoreUpsertEntities(t *testing.T) {
	ctx := context.Background()

	t.Run("Re-upsert merges by name", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, UpsertEntity(ctx, store, &model.Entity{Name: "Alice", Type: model.EntityTypePerson, Description: "engineer"}))
		require.NoError(t, UpsertEntity(ctx, store, &model.Entity{Name: " Alice ", Type: model.EntityTypeOther}))

		alice, err := store.SelectEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, model.EntityTypePerson, alice.Type, "Expected OTHER to not overwrite PERSON")
		assert.Equal(t, "engineer", alice.Description, "Expected empty description to keep the stored one")

		require.NoError(t, UpsertEntity(ctx, store, &model.Entity{Name: "Alice", Type: model.EntityTypePerson, Description: "manager"}))
		alice, err = store.SelectEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, "manager", alice.Description)
	})

	t.Run("Invalid call UpsertEntities with wrong dimension", func(t *testing.T) {
		store := newTestStore(t)
		err := UpsertEntity(ctx, store, &model.Entity{Name: "Alice", Embedding: []float32{1, 2}})
		assert.ErrorIs(t, err, helper.ErrStore)
	})

	t.Run("Unknown entity is not found", func(t *testing.T) {
		store := newTestStore(t)
		_, err := store.SelectEntity(ctx, "Nobody")
		assert.ErrorIs(t, err, helper.ErrNotFound)
	})
}

func TestMemoryStoreHyperedges(t *testing.T) {
	ctx := context.Background()

	t.Run("Permuted participants are one hyperedge", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{{Name: "Alice"}, {Name: "Acme"}, {Name: "Berlin"}}))

		a := model.NewHyperedge([]string{"Alice", "Acme", "Berlin"}, "Alice works at Acme in Berlin", nil)
		b := model.NewHyperedge([]string{"Berlin", "Acme", "Alice"}, "Alice works at Acme in Berlin", model.Metadata{"weight": 2})
		require.NoError(t, UpsertHyperedge(ctx, store, a))
		require.NoError(t, UpsertHyperedge(ctx, store, b))

		hyperedges, err := store.HyperedgesByEntity(ctx, "Berlin", 0)
		require.NoError(t, err)
		require.Len(t, hyperedges, 1)
		assert.Equal(t, a.ID, hyperedges[0].ID)
		assert.Equal(t, 2, hyperedges[0].Metadata["weight"])

		entities, err := store.EntitiesByHyperedge(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, entities, 3)
	})

	t.Run("HyperedgesByEntity orders by id and honours limit", func(t *testing.T) {
		store := newTestStore(t)
		for _, content := range []string{"fact one", "fact two", "fact three"} {
			require.NoError(t, UpsertHyperedge(ctx, store, model.NewHyperedge([]string{"Alice", "Bob"}, content, nil)))
		}

		all, err := store.HyperedgesByEntity(ctx, "Alice", 10)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.True(t, all[0].ID < all[1].ID && all[1].ID < all[2].ID, "Expected hyperedges ordered by id")

		limited, err := store.HyperedgesByEntity(ctx, "Alice", 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})
}

func TestMemoryStoreChunks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	chunkA := &model.Chunk{ID: "a", Content: "Alice", Embedding: []float32{1, 0, 0}}
	chunkB := &model.Chunk{ID: "b", Content: "Acme", Embedding: []float32{0.8, 0.2, 0}}
	chunkC := &model.Chunk{ID: "c", Content: "Nothing", Embedding: []float32{0, 0, 1}}
	require.NoError(t, store.UpsertChunks(ctx, []*model.Chunk{chunkA, chunkB, chunkC}))
	require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{{Name: "Alice"}, {Name: "Acme"}}))
	require.NoError(t, LinkChunkToEntities(ctx, store, "a", "Alice"))
	require.NoError(t, LinkChunkToEntities(ctx, store, "b", "Acme", "Alice", "Ghost"))

	t.Run("SearchChunks orders by similarity and fills entities", func(t *testing.T) {
		results, err := store.SearchChunks(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Chunk.ID)
		assert.Equal(t, "b", results[1].Chunk.ID)
		assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
		assert.Equal(t, []string{"Acme", "Alice"}, results[1].Chunk.Entities, "Expected unknown entities to be skipped")
	})

	t.Run("Association lookups", func(t *testing.T) {
		ids, err := store.ChunkIDsByEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		names, err := store.EntitiesByChunk(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, []string{"Acme", "Alice"}, names)

		alice, err := store.SelectEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, alice.MentionedIn)
	})

	t.Run("SelectChunks keeps requested order and skips unknown ids", func(t *testing.T) {
		chunks, err := store.SelectChunks(ctx, []string{"c", "missing", "a"})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "c", chunks[0].ID)
		assert.Equal(t, "a", chunks[1].ID)
	})

	t.Run("Search dispatches on node class", func(t *testing.T) {
		hits, err := Search(ctx, store, []float32{0, 0, 1}, 1, model.NodeClassChunk)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "c", hits[0].Key)

		_, err = Search(ctx, store, []float32{0, 0, 1}, 1, model.NodeClass("document"))
		assert.ErrorIs(t, err, helper.ErrConfig)
	})
}

func TestMemoryStoreTraverseFromEntity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertHyperedges(ctx, []*model.Hyperedge{
		model.NewHyperedge([]string{"Alice", "Acme"}, "Alice works at Acme", nil),
		model.NewHyperedge([]string{"Acme", "Bob"}, "Bob founded Acme", nil),
		model.NewHyperedge([]string{"Bob", "Carol"}, "Bob mentors Carol", nil),
	}))

	t.Run("Distances never exceed max hops", func(t *testing.T) {
		results, err := store.TraverseFromEntity(ctx, "Alice", 2, 50)
		require.NoError(t, err)
		assert.Equal(t, []*model.EntityDistance{
			{Name: "Acme", Distance: 1},
			{Name: "Bob", Distance: 2},
		}, results)
	})

	t.Run("Max hops 0 yields nothing", func(t *testing.T) {
		results, err := store.TraverseFromEntity(ctx, "Alice", 0, 50)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Limit is a hard cap", func(t *testing.T) {
		results, err := store.TraverseFromEntity(ctx, "Alice", 3, 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
	})
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("Reset clears everything", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, UpsertEntity(ctx, store, &model.Entity{Name: "Alice"}))
		require.NoError(t, store.Reset(ctx))

		_, err := store.SelectEntity(ctx, "Alice")
		assert.ErrorIs(t, err, helper.ErrNotFound)
		assert.True(t, store.HealthCheck(ctx).Connected)
	})

	t.Run("Closed store reports disconnected", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.Close())

		health := store.HealthCheck(ctx)
		assert.False(t, health.Connected)
		assert.Equal(t, 3, health.Indexes[ChunkIndexName])

		err := UpsertEntity(ctx, store, &model.Entity{Name: "Alice"})
		assert.ErrorIs(t, err, helper.ErrStore)
	})
}
