package neo4jstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore(t *testing.T) {
	t.Run("Invalid call NewStore", func(t *testing.T) {
		_, err := NewStore(context.Background(), nil, testDimensions, nil)
		assert.ErrorIs(t, err, helper.ErrConfig)

		_, err = NewStore(context.Background(), &helper.Neo4jConfiguration{URI: neo4jURI}, 0, nil)
		assert.ErrorIs(t, err, helper.ErrConfig)
	})
}

func TestUpsertEntities(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	t.Run("Valid call UpsertEntities applies the merge policy", func(t *testing.T) {
		require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
			{Name: " Alice ", Type: model.EntityTypePerson, Description: "engineer", Embedding: []float32{1, 0, 0}},
		}))
		require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
			{Name: "Alice", Type: model.EntityTypeOther},
		}))

		alice, err := store.SelectEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, model.EntityTypePerson, alice.Type)
		assert.Equal(t, "engineer", alice.Description)
		assert.Equal(t, []float32{1, 0, 0}, alice.Embedding)
		assert.False(t, alice.CreatedAt.IsZero())

		require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
			{Name: "Alice", Type: model.EntityTypeOrganization, Description: "a company after all"},
		}))
		alice, err = store.SelectEntity(ctx, "Alice")
		require.NoError(t, err)
		assert.Equal(t, model.EntityTypeOrganization, alice.Type)
		assert.Equal(t, "a company after all", alice.Description)
	})

	t.Run("Invalid call UpsertEntities", func(t *testing.T) {
		err := store.UpsertEntities(ctx, []*model.Entity{{Name: "  "}})
		assert.ErrorIs(t, err, helper.ErrStore)

		err = store.UpsertEntities(ctx, []*model.Entity{{Name: "Bob", Embedding: []float32{1, 0}}})
		assert.ErrorIs(t, err, helper.ErrStore)
	})

	t.Run("Invalid call SelectEntity", func(t *testing.T) {
		_, err := store.SelectEntity(ctx, "Nobody")
		assert.ErrorIs(t, err, helper.ErrNotFound)
	})
}

func TestUpsertHyperedges(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
		{Name: "Alice", Type: model.EntityTypePerson},
		{Name: "Acme", Type: model.EntityTypeOrganization},
	}))

	t.Run("Valid call UpsertHyperedges is idempotent and merges metadata", func(t *testing.T) {
		first := model.NewHyperedge([]string{"Alice", "Acme"}, "Alice works at Acme", model.Metadata{"source": "a"})
		second := model.NewHyperedge([]string{"Acme", "Alice"}, "Alice works at Acme", model.Metadata{"year": "2001"})
		require.Equal(t, first.ID, second.ID)

		require.NoError(t, store.UpsertHyperedges(ctx, []*model.Hyperedge{first}))
		require.NoError(t, store.UpsertHyperedges(ctx, []*model.Hyperedge{second}))

		hyperedges, err := store.HyperedgesByEntity(ctx, "Alice", 0)
		require.NoError(t, err)
		require.Len(t, hyperedges, 1)
		assert.Equal(t, []string{"Acme", "Alice"}, hyperedges[0].EntityNames)
		assert.Equal(t, "a", hyperedges[0].Metadata["source"])
		assert.Equal(t, "2001", hyperedges[0].Metadata["year"])

		participants, err := store.ParticipantsOf(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"Acme", "Alice"}, participants)

		entities, err := store.EntitiesByHyperedge(ctx, first.ID)
		require.NoError(t, err)
		require.Len(t, entities, 2)
		assert.Equal(t, "Acme", entities[0].Name)
	})

	t.Run("Valid call lookups of unknown keys are empty", func(t *testing.T) {
		hyperedges, err := store.HyperedgesByEntity(ctx, "Nobody", 0)
		require.NoError(t, err)
		assert.Empty(t, hyperedges)

		participants, err := store.ParticipantsOf(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, participants)
	})
}

func TestChunks(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
		{Name: "Alice", Type: model.EntityTypePerson, Embedding: []float32{0, 1, 0}},
		{Name: "Acme", Type: model.EntityTypeOrganization, Embedding: []float32{0, 0, 1}},
	}))
	require.NoError(t, store.UpsertChunks(ctx, []*model.Chunk{
		{ID: "c1", Content: "Alice works at Acme", Embedding: []float32{1, 0, 0}, Metadata: model.ChunkMetadata{Source: "doc.txt", EndIdx: 19}},
		{ID: "c2", Content: "Acme was founded", Embedding: []float32{0, 1, 0}},
	}))

	t.Run("Valid call LinkChunkEntities skips unknown keys", func(t *testing.T) {
		require.NoError(t, store.LinkChunkEntities(ctx, []model.ChunkLink{
			{ChunkID: "c1", EntityNames: []string{"Alice", "Acme", "Nobody"}},
			{ChunkID: "missing", EntityNames: []string{"Alice"}},
			{ChunkID: "c2", EntityNames: []string{"Acme"}},
		}))

		names, err := store.EntitiesByChunk(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []string{"Acme", "Alice"}, names)

		ids, err := store.ChunkIDsByEntity(ctx, "Acme")
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2"}, ids)
	})

	t.Run("Valid call SelectChunks keeps the requested order", func(t *testing.T) {
		chunks, err := store.SelectChunks(ctx, []string{"c2", "missing", "c1"})
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "c2", chunks[0].ID)
		assert.Equal(t, "c1", chunks[1].ID)
		assert.Equal(t, "doc.txt", chunks[1].Metadata.Source)
		assert.Equal(t, 19, chunks[1].Metadata.EndIdx)
		assert.Equal(t, []string{"Acme", "Alice"}, chunks[1].Entities)
	})

	t.Run("Valid call UpsertChunks keeps the stored embedding", func(t *testing.T) {
		require.NoError(t, store.UpsertChunks(ctx, []*model.Chunk{{ID: "c1", Content: "Alice works at Acme"}}))
		chunks, err := store.SelectChunks(ctx, []string{"c1"})
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, []float32{1, 0, 0}, chunks[0].Embedding)
	})

	t.Run("Valid call SearchChunks and SearchEntities", func(t *testing.T) {
		// Vector indexes are populated asynchronously.
		var hits []*model.ScoredChunk
		require.Eventually(t, func() bool {
			var err error
			hits, err = store.SearchChunks(ctx, []float32{1, 0, 0}, 2)
			return err == nil && len(hits) == 2
		}, 10*time.Second, 200*time.Millisecond)
		assert.Equal(t, "c1", hits[0].Chunk.ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
		assert.InDelta(t, 0.0, hits[1].Score, 1e-4)

		var entities []*model.ScoredEntity
		require.Eventually(t, func() bool {
			var err error
			entities, err = store.SearchEntities(ctx, []float32{0, 0, 1}, 1)
			return err == nil && len(entities) == 1
		}, 10*time.Second, 200*time.Millisecond)
		assert.Equal(t, "Acme", entities[0].Entity.Name)
		assert.Equal(t, []string{"c1", "c2"}, entities[0].Entity.MentionedIn)
	})

	t.Run("Invalid call SearchChunks", func(t *testing.T) {
		_, err := store.SearchChunks(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, helper.ErrStore)
	})
}

func TestTraverseFromEntity(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{
		{Name: "Alice", Type: model.EntityTypePerson},
		{Name: "Acme", Type: model.EntityTypeOrganization},
		{Name: "Bob", Type: model.EntityTypePerson},
		{Name: "Carol", Type: model.EntityTypePerson},
	}))
	require.NoError(t, store.UpsertHyperedges(ctx, []*model.Hyperedge{
		model.NewHyperedge([]string{"Alice", "Acme"}, "Alice works at Acme", nil),
		model.NewHyperedge([]string{"Acme", "Bob"}, "Bob founded Acme", nil),
		model.NewHyperedge([]string{"Bob", "Carol"}, "Bob mentors Carol", nil),
	}))

	t.Run("Valid call TraverseFromEntity", func(t *testing.T) {
		results, err := store.TraverseFromEntity(ctx, "Alice", 2, 50)
		require.NoError(t, err)
		assert.Equal(t, []*model.EntityDistance{
			{Name: "Acme", Distance: 1},
			{Name: "Bob", Distance: 2},
		}, results)

		results, err = store.TraverseFromEntity(ctx, "Alice", 3, 2)
		require.NoError(t, err)
		assert.Len(t, results, 2)

		results, err = store.TraverseFromEntity(ctx, "Alice", 0, 50)
		require.NoError(t, err)
		assert.Empty(t, results)

		results, err = store.TraverseFromEntity(ctx, "Nobody", 2, 50)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Valid call TraverseFromEntity stops at the limit on a hub", func(t *testing.T) {
		names := []string{"Hub"}
		entities := []*model.Entity{{Name: "Hub", Type: model.EntityTypeOrganization}}
		hyperedges := []*model.Hyperedge{}
		for i := range 30 {
			name := fmt.Sprintf("Member %02d", i)
			names = append(names, name)
			entities = append(entities, &model.Entity{Name: name, Type: model.EntityTypePerson})
			hyperedges = append(hyperedges, model.NewHyperedge([]string{"Hub", name}, name+" belongs to Hub", nil))
		}
		require.NoError(t, store.UpsertEntities(ctx, entities))
		require.NoError(t, store.UpsertHyperedges(ctx, hyperedges))

		results, err := store.TraverseFromEntity(ctx, "Member 00", 3, 5)
		require.NoError(t, err)
		require.Len(t, results, 5)
		assert.Equal(t, &model.EntityDistance{Name: "Hub", Distance: 1}, results[0])
		for _, r := range results[1:] {
			assert.Equal(t, 2, r.Distance)
			assert.Contains(t, names, r.Name)
		}
	})
}

func TestHealthAndReset(t *testing.T) {
	store := initStore(t)
	ctx := context.Background()

	t.Run("Valid call HealthCheck", func(t *testing.T) {
		health := store.HealthCheck(ctx)
		assert.True(t, health.Connected)
		assert.Empty(t, health.Errors)
		assert.Equal(t, map[string]int{
			graph.ChunkIndexName:  testDimensions,
			graph.EntityIndexName: testDimensions,
		}, health.Indexes)
	})

	t.Run("Valid call Reset", func(t *testing.T) {
		require.NoError(t, store.UpsertEntities(ctx, []*model.Entity{{Name: "Alice"}}))
		require.NoError(t, store.Reset(ctx))

		_, err := store.SelectEntity(ctx, "Alice")
		assert.ErrorIs(t, err, helper.ErrNotFound)
		assert.Empty(t, store.HealthCheck(ctx).Errors)
	})
}
