package graph

import (
	"context"
	"fmt"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

const (
	// DefaultTraversalLimit caps the entities returned by one traversal.
	DefaultTraversalLimit = 50
	// DefaultHyperedgeLimit caps the hyperedges returned per entity.
	DefaultHyperedgeLimit = 100
)

// Store is the graph and vector storage capability used by ingestion and retrieval.
//
// All writes are idempotent upserts. Lookups of unknown names or IDs return
// empty results; only SelectEntity reports a not-found error. The chunk to
// entity association is written exclusively through LinkChunkEntities, and
// Chunk.Entities and Entity.MentionedIn are filled from it on read.
type Store interface {
	UpsertEntities(ctx context.Context, entities []*model.Entity) error
	UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error
	UpsertChunks(ctx context.Context, chunks []*model.Chunk) error
	LinkChunkEntities(ctx context.Context, links []model.ChunkLink) error

	// SearchChunks returns up to topK chunks by descending cosine similarity.
	SearchChunks(ctx context.Context, vector []float32, topK int) ([]*model.ScoredChunk, error)
	// SearchEntities returns up to topK entities by descending cosine similarity.
	SearchEntities(ctx context.Context, vector []float32, topK int) ([]*model.ScoredEntity, error)

	// TraverseFromEntity returns the entities reachable from seed within maxHops
	// co-participation hops, by ascending distance, without the seed and never
	// more than limit.
	TraverseFromEntity(ctx context.Context, seed string, maxHops int, limit int) ([]*model.EntityDistance, error)
	// HyperedgesByEntity returns the hyperedges the entity participates in, ordered by ID.
	HyperedgesByEntity(ctx context.Context, name string, limit int) ([]*model.Hyperedge, error)
	EntitiesByHyperedge(ctx context.Context, hyperedgeID string) ([]*model.Entity, error)
	ChunkIDsByEntity(ctx context.Context, name string) ([]string, error)
	EntitiesByChunk(ctx context.Context, chunkID string) ([]string, error)
	SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error)
	SelectEntity(ctx context.Context, name string) (*model.Entity, error)

	HealthCheck(ctx context.Context) *model.StoreHealth
	Reset(ctx context.Context) error
	Close() error
}

// UpsertEntity upserts a single entity.
func UpsertEntity(ctx context.Context, store Store, entity *model.Entity) error {
	return store.UpsertEntities(ctx, []*model.Entity{entity})
}

// UpsertHyperedge upserts a single hyperedge.
func UpsertHyperedge(ctx context.Context, store Store, hyperedge *model.Hyperedge) error {
	return store.UpsertHyperedges(ctx, []*model.Hyperedge{hyperedge})
}

// LinkChunkToEntities links one chunk to the given entity names.
func LinkChunkToEntities(ctx context.Context, store Store, chunkID string, names ...string) error {
	return store.LinkChunkEntities(ctx, []model.ChunkLink{{ChunkID: chunkID, EntityNames: names}})
}

// SearchHit is one result of Search. Exactly one of Chunk and Entity is set.
type SearchHit struct {
	Class  model.NodeClass
	Key    string
	Score  float64
	Chunk  *model.Chunk
	Entity *model.Entity
}

// Search runs a similarity search against the index of the given node class.
func Search(ctx context.Context, store Store, vector []float32, topK int, class model.NodeClass) ([]*SearchHit, error) {
	switch class {
	case model.NodeClassChunk:
		chunks, err := store.SearchChunks(ctx, vector, topK)
		if err != nil {
			return nil, err
		}
		hits := make([]*SearchHit, 0, len(chunks))
		for _, c := range chunks {
			hits = append(hits, &SearchHit{Class: class, Key: c.Chunk.ID, Score: c.Score, Chunk: c.Chunk})
		}
		return hits, nil
	case model.NodeClassEntity:
		entities, err := store.SearchEntities(ctx, vector, topK)
		if err != nil {
			return nil, err
		}
		hits := make([]*SearchHit, 0, len(entities))
		for _, e := range entities {
			hits = append(hits, &SearchHit{Class: class, Key: e.Entity.Name, Score: e.Score, Entity: e.Entity})
		}
		return hits, nil
	default:
		return nil, helper.NewConfigError("node_class", fmt.Errorf("unknown node class %q", class))
	}
}
