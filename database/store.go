package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	loadSql "github.com/siherrmann/hypergrapher/sql"
)

// Store is a graph.Store on PostgreSQL with pgvector.
type Store struct {
	db         *helper.Database
	dimensions int
	logger     *slog.Logger

	Entities   *EntitiesDBHandler
	Hyperedges *HyperedgesDBHandler
	Chunks     *ChunksDBHandler
}

// NewStore initializes the extensions, SQL functions and tables and returns the store.
// If force is true, the SQL functions are reloaded even if they already exist.
func NewStore(db *helper.Database, dimensions int, force bool) (*Store, error) {
	if db == nil {
		return nil, helper.NewConfigError("database", fmt.Errorf("database connection is nil"))
	}
	if dimensions <= 0 {
		return nil, helper.NewConfigError("dimensions", fmt.Errorf("must be positive, got %d", dimensions))
	}

	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("init extensions", err)
	}

	entities, err := NewEntitiesDBHandler(db, dimensions, force)
	if err != nil {
		return nil, err
	}
	hyperedges, err := NewHyperedgesDBHandler(db, force)
	if err != nil {
		return nil, err
	}
	chunks, err := NewChunksDBHandler(db, dimensions, force)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:         db,
		dimensions: dimensions,
		logger:     db.Logger,
		Entities:   entities,
		Hyperedges: hyperedges,
		Chunks:     chunks,
	}, nil
}

func (s *Store) checkDimensions(operation string, key string, vector []float32) error {
	if len(vector) > 0 && len(vector) != s.dimensions {
		return helper.NewStoreError(operation, key, fmt.Errorf("embedding dimension %d, expected %d", len(vector), s.dimensions))
	}
	return nil
}

func (s *Store) UpsertEntities(ctx context.Context, entities []*model.Entity) error {
	for _, e := range entities {
		if model.NormalizeEntityName(e.Name) == "" {
			return helper.NewStoreError("upsert entities", e.Name, fmt.Errorf("entity name is empty"))
		}
		if err := s.checkDimensions("upsert entities", e.Name, e.Embedding); err != nil {
			return err
		}
	}
	if err := s.Entities.UpsertEntities(ctx, entities); err != nil {
		return helper.NewStoreError("upsert entities", "", err)
	}
	return nil
}

func (s *Store) UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error {
	if err := s.Hyperedges.UpsertHyperedges(ctx, hyperedges); err != nil {
		return helper.NewStoreError("upsert hyperedges", "", err)
	}
	return nil
}

func (s *Store) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	for _, c := range chunks {
		if c.ID == "" {
			return helper.NewStoreError("upsert chunks", "", fmt.Errorf("chunk id is empty"))
		}
		if err := s.checkDimensions("upsert chunks", c.ID, c.Embedding); err != nil {
			return err
		}
	}
	if err := s.Chunks.UpsertChunks(ctx, chunks); err != nil {
		return helper.NewStoreError("upsert chunks", "", err)
	}
	return nil
}

func (s *Store) LinkChunkEntities(ctx context.Context, links []model.ChunkLink) error {
	linked, err := s.Chunks.LinkChunkEntities(ctx, links)
	if err != nil {
		return helper.NewStoreError("link chunk entities", "", err)
	}
	s.logger.Debug("Linked chunks to entities", slog.Int("links", linked))
	return nil
}

func (s *Store) SearchChunks(ctx context.Context, vector []float32, topK int) ([]*model.ScoredChunk, error) {
	if err := s.checkDimensions("search chunks", "", vector); err != nil {
		return nil, err
	}
	if topK <= 0 || len(vector) == 0 {
		return []*model.ScoredChunk{}, nil
	}
	results, err := s.Chunks.SelectChunksBySimilarity(ctx, vector, topK)
	if err != nil {
		return nil, helper.NewStoreError("search chunks", "", err)
	}
	return results, nil
}

func (s *Store) SearchEntities(ctx context.Context, vector []float32, topK int) ([]*model.ScoredEntity, error) {
	if err := s.checkDimensions("search entities", "", vector); err != nil {
		return nil, err
	}
	if topK <= 0 || len(vector) == 0 {
		return []*model.ScoredEntity{}, nil
	}
	results, err := s.Entities.SelectEntitiesBySimilarity(ctx, vector, topK)
	if err != nil {
		return nil, helper.NewStoreError("search entities", "", err)
	}
	for _, r := range results {
		if err := s.fillMentions(ctx, r.Entity); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// HyperedgeIDsOf implements graph.Neighborhood.
func (s *Store) HyperedgeIDsOf(ctx context.Context, entity string) ([]string, error) {
	ids, err := s.Hyperedges.SelectHyperedgeIDsByEntity(ctx, entity)
	if err != nil {
		return nil, helper.NewStoreError("hyperedges of", entity, err)
	}
	return ids, nil
}

// ParticipantsOf implements graph.Neighborhood.
func (s *Store) ParticipantsOf(ctx context.Context, hyperedgeID string) ([]string, error) {
	names, err := s.Hyperedges.SelectParticipants(ctx, hyperedgeID)
	if err != nil {
		return nil, helper.NewStoreError("participants of", hyperedgeID, err)
	}
	return names, nil
}

// TraverseFromEntity runs the breadth first search in Go, one query per
// visited entity and hyperedge, so ties follow discovery order.
func (s *Store) TraverseFromEntity(ctx context.Context, seed string, maxHops int, limit int) ([]*model.EntityDistance, error) {
	if limit <= 0 {
		limit = graph.DefaultTraversalLimit
	}
	results, err := graph.BFS(ctx, s, model.NormalizeEntityName(seed), maxHops, limit)
	if err != nil {
		return nil, err
	}
	return graph.ToEntityDistances(results), nil
}

func (s *Store) HyperedgesByEntity(ctx context.Context, name string, limit int) ([]*model.Hyperedge, error) {
	if limit <= 0 {
		limit = graph.DefaultHyperedgeLimit
	}
	hyperedges, err := s.Hyperedges.SelectHyperedgesByEntity(ctx, name, limit)
	if err != nil {
		return nil, helper.NewStoreError("hyperedges by entity", name, err)
	}
	return hyperedges, nil
}

func (s *Store) EntitiesByHyperedge(ctx context.Context, hyperedgeID string) ([]*model.Entity, error) {
	names, err := s.ParticipantsOf(ctx, hyperedgeID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return []*model.Entity{}, nil
	}
	entities, err := s.Entities.SelectEntitiesByNames(ctx, names)
	if err != nil {
		return nil, helper.NewStoreError("entities by hyperedge", hyperedgeID, err)
	}
	for _, e := range entities {
		if err := s.fillMentions(ctx, e); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func (s *Store) ChunkIDsByEntity(ctx context.Context, name string) ([]string, error) {
	ids, err := s.Chunks.SelectChunkIDsByEntity(ctx, name)
	if err != nil {
		return nil, helper.NewStoreError("chunk ids by entity", name, err)
	}
	return ids, nil
}

func (s *Store) EntitiesByChunk(ctx context.Context, chunkID string) ([]string, error) {
	names, err := s.Chunks.SelectEntityNamesByChunk(ctx, chunkID)
	if err != nil {
		return nil, helper.NewStoreError("entities by chunk", chunkID, err)
	}
	return names, nil
}

func (s *Store) SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return []*model.Chunk{}, nil
	}
	chunks, err := s.Chunks.SelectChunks(ctx, ids)
	if err != nil {
		return nil, helper.NewStoreError("select chunks", "", err)
	}
	return chunks, nil
}

func (s *Store) SelectEntity(ctx context.Context, name string) (*model.Entity, error) {
	entity, err := s.Entities.SelectEntity(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.fillMentions(ctx, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

// fillMentions sets Entity.MentionedIn from the chunk links.
func (s *Store) fillMentions(ctx context.Context, entity *model.Entity) error {
	ids, err := s.ChunkIDsByEntity(ctx, entity.Name)
	if err != nil {
		return err
	}
	entity.MentionedIn = ids
	return nil
}

// HealthCheck pings the database and reads the embedding dimensions from the
// column type modifiers. A missing vector index is reported as an error.
func (s *Store) HealthCheck(ctx context.Context) *model.StoreHealth {
	health := &model.StoreHealth{Indexes: map[string]int{}}

	if err := s.db.Instance.PingContext(ctx); err != nil {
		health.Errors = append(health.Errors, fmt.Sprintf("ping: %v", err))
		return health
	}
	health.Connected = true

	indexes := []struct {
		name  string
		table string
		index string
	}{
		{graph.ChunkIndexName, "chunks", chunksEmbeddingIndex},
		{graph.EntityIndexName, "entities", entitiesEmbeddingIndex},
	}
	for _, idx := range indexes {
		var dimensions int
		err := s.db.Instance.QueryRowContext(
			ctx,
			`SELECT a.atttypmod FROM pg_attribute a WHERE a.attrelid = $1::regclass AND a.attname = 'embedding'`,
			idx.table,
		).Scan(&dimensions)
		if err != nil {
			health.Errors = append(health.Errors, fmt.Sprintf("%s: %v", idx.name, err))
			continue
		}
		health.Indexes[idx.name] = dimensions

		var exists bool
		err = s.db.Instance.QueryRowContext(
			ctx,
			`SELECT EXISTS(SELECT 1 FROM pg_indexes WHERE indexname = $1)`,
			idx.index,
		).Scan(&exists)
		if err != nil {
			health.Errors = append(health.Errors, fmt.Sprintf("%s: %v", idx.name, err))
		} else if !exists {
			health.Errors = append(health.Errors, fmt.Sprintf("%s: index %s is missing", idx.name, idx.index))
		}
	}

	return health
}

// Reset truncates all tables and rebuilds the vector indexes.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.db.Instance.ExecContext(ctx, `TRUNCATE chunk_entities, hyperedge_entities, chunks, hyperedges, entities;`)
	if err != nil {
		return helper.NewStoreError("reset", "", err)
	}

	if err := s.Chunks.ChangeIndexType(ctx, IndexTypeHNSW, nil); err != nil {
		return helper.NewStoreError("reset", chunksEmbeddingIndex, err)
	}
	if err := s.Entities.ChangeIndexType(ctx, IndexTypeHNSW, nil); err != nil {
		return helper.NewStoreError("reset", entitiesEmbeddingIndex, err)
	}

	s.logger.Info("Reset postgres store")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

var (
	_ graph.Store        = (*Store)(nil)
	_ graph.Neighborhood = (*Store)(nil)
)
