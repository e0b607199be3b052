package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

const (
	ChunkIndexName  = "chunk_embedding_index"
	EntityIndexName = "entity_embedding_index"
)

var errStoreClosed = errors.New("store is closed")

type stringSet map[string]struct{}

func (s stringSet) add(v string) { s[v] = struct{}{} }

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// MemoryStore is an in-process Store. It is safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	dimensions int
	closed     bool
	logger     *slog.Logger

	entities   map[string]*model.Entity
	hyperedges map[string]*model.Hyperedge
	chunks     map[string]*model.Chunk

	entityHyperedges map[string]stringSet
	chunkEntities    map[string]stringSet
	entityChunks     map[string]stringSet
}

// NewMemoryStore creates an empty store. Embeddings must have the given
// dimension; a dimension of 0 accepts any length.
func NewMemoryStore(dimensions int, logger *slog.Logger) *MemoryStore {
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	s := &MemoryStore{
		dimensions: dimensions,
		logger:     logger,
	}
	s.clear()
	return s
}

func (s *MemoryStore) clear() {
	s.entities = map[string]*model.Entity{}
	s.hyperedges = map[string]*model.Hyperedge{}
	s.chunks = map[string]*model.Chunk{}
	s.entityHyperedges = map[string]stringSet{}
	s.chunkEntities = map[string]stringSet{}
	s.entityChunks = map[string]stringSet{}
}

func (s *MemoryStore) checkDimensions(operation string, key string, vector []float32) error {
	if s.dimensions > 0 && len(vector) > 0 && len(vector) != s.dimensions {
		return helper.NewStoreError(operation, key, fmt.Errorf("embedding dimension %d, expected %d", len(vector), s.dimensions))
	}
	return nil
}

func (s *MemoryStore) UpsertEntities(ctx context.Context, entities []*model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return helper.NewStoreError("upsert entities", "", errStoreClosed)
	}
	for _, e := range entities {
		if err := s.checkDimensions("upsert entities", e.Name, e.Embedding); err != nil {
			return err
		}
	}

	now := time.Now()
	for _, e := range entities {
		name := model.NormalizeEntityName(e.Name)
		if name == "" {
			return helper.NewStoreError("upsert entities", e.Name, errors.New("entity name is empty"))
		}

		incoming := e.Clone()
		incoming.Name = name
		incoming.MentionedIn = nil
		incoming.UpdatedAt = now

		if existing, ok := s.entities[name]; ok {
			existing.Merge(incoming)
			continue
		}
		if incoming.Type == "" {
			incoming.Type = model.EntityTypeOther
		}
		incoming.CreatedAt = now
		s.entities[name] = incoming
	}
	return nil
}

func (s *MemoryStore) UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return helper.NewStoreError("upsert hyperedges", "", errStoreClosed)
	}

	now := time.Now()
	for _, h := range hyperedges {
		incoming := h.Clone()
		incoming.EntityNames = model.NormalizeEntityNames(h.EntityNames)
		if incoming.ID == "" {
			incoming.ID = model.HyperedgeID(incoming.EntityNames, incoming.Content)
		}
		incoming.UpdatedAt = now

		if existing, ok := s.hyperedges[incoming.ID]; ok {
			existing.Merge(incoming)
		} else {
			incoming.CreatedAt = now
			s.hyperedges[incoming.ID] = incoming
		}

		for _, name := range incoming.EntityNames {
			if _, ok := s.entityHyperedges[name]; !ok {
				s.entityHyperedges[name] = stringSet{}
			}
			s.entityHyperedges[name].add(incoming.ID)
		}
	}
	return nil
}

func (s *MemoryStore) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return helper.NewStoreError("upsert chunks", "", errStoreClosed)
	}
	for _, c := range chunks {
		if c.ID == "" {
			return helper.NewStoreError("upsert chunks", "", errors.New("chunk id is empty"))
		}
		if err := s.checkDimensions("upsert chunks", c.ID, c.Embedding); err != nil {
			return err
		}
	}

	now := time.Now()
	for _, c := range chunks {
		incoming := c.Clone()
		incoming.Entities = nil
		if existing, ok := s.chunks[c.ID]; ok {
			incoming.CreatedAt = existing.CreatedAt
			if len(incoming.Embedding) == 0 {
				incoming.Embedding = existing.Embedding
			}
		} else if incoming.CreatedAt.IsZero() {
			incoming.CreatedAt = now
		}
		s.chunks[c.ID] = incoming
	}
	return nil
}

func (s *MemoryStore) LinkChunkEntities(ctx context.Context, links []model.ChunkLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return helper.NewStoreError("link chunk entities", "", errStoreClosed)
	}

	for _, link := range links {
		if _, ok := s.chunks[link.ChunkID]; !ok {
			s.logger.Debug("Skipping link for unknown chunk", slog.String("chunk_id", link.ChunkID))
			continue
		}
		for _, name := range model.NormalizeEntityNames(link.EntityNames) {
			if _, ok := s.entities[name]; !ok {
				s.logger.Debug("Skipping link for unknown entity", slog.String("entity", name))
				continue
			}
			if _, ok := s.chunkEntities[link.ChunkID]; !ok {
				s.chunkEntities[link.ChunkID] = stringSet{}
			}
			s.chunkEntities[link.ChunkID].add(name)
			if _, ok := s.entityChunks[name]; !ok {
				s.entityChunks[name] = stringSet{}
			}
			s.entityChunks[name].add(link.ChunkID)
		}
	}
	return nil
}

// chunkView returns a copy of the chunk with its entities filled in. Caller holds the lock.
func (s *MemoryStore) chunkView(c *model.Chunk) *model.Chunk {
	view := c.Clone()
	view.Entities = s.chunkEntities[c.ID].sorted()
	return view
}

// entityView returns a copy of the entity with its mentions filled in. Caller holds the lock.
func (s *MemoryStore) entityView(e *model.Entity) *model.Entity {
	view := e.Clone()
	view.MentionedIn = s.entityChunks[e.Name].sorted()
	return view
}

func (s *MemoryStore) SearchChunks(ctx context.Context, vector []float32, topK int) ([]*model.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("search chunks", "", errStoreClosed)
	}
	if err := s.checkDimensions("search chunks", "", vector); err != nil {
		return nil, err
	}

	results := []*model.ScoredChunk{}
	if topK <= 0 {
		return results, nil
	}
	for _, c := range s.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		score, err := CosineSimilarity(vector, c.Embedding)
		if err != nil {
			return nil, helper.NewStoreError("search chunks", c.ID, err)
		}
		results = append(results, &model.ScoredChunk{Chunk: c, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for _, r := range results {
		r.Chunk = s.chunkView(r.Chunk)
	}
	return results, nil
}

func (s *MemoryStore) SearchEntities(ctx context.Context, vector []float32, topK int) ([]*model.ScoredEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("search entities", "", errStoreClosed)
	}
	if err := s.checkDimensions("search entities", "", vector); err != nil {
		return nil, err
	}

	results := []*model.ScoredEntity{}
	if topK <= 0 {
		return results, nil
	}
	for _, e := range s.entities {
		if len(e.Embedding) == 0 {
			continue
		}
		score, err := CosineSimilarity(vector, e.Embedding)
		if err != nil {
			return nil, helper.NewStoreError("search entities", e.Name, err)
		}
		results = append(results, &model.ScoredEntity{Entity: e, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entity.Name < results[j].Entity.Name
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for _, r := range results {
		r.Entity = s.entityView(r.Entity)
	}
	return results, nil
}

// HyperedgeIDsOf implements Neighborhood.
func (s *MemoryStore) HyperedgeIDsOf(ctx context.Context, entity string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("hyperedges of", entity, errStoreClosed)
	}
	return s.entityHyperedges[entity].sorted(), nil
}

// ParticipantsOf implements Neighborhood.
func (s *MemoryStore) ParticipantsOf(ctx context.Context, hyperedgeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("participants of", hyperedgeID, errStoreClosed)
	}
	h, ok := s.hyperedges[hyperedgeID]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), h.EntityNames...), nil
}

func (s *MemoryStore) TraverseFromEntity(ctx context.Context, seed string, maxHops int, limit int) ([]*model.EntityDistance, error) {
	if limit <= 0 {
		limit = DefaultTraversalLimit
	}
	results, err := BFS(ctx, s, model.NormalizeEntityName(seed), maxHops, limit)
	if err != nil {
		return nil, err
	}
	return ToEntityDistances(results), nil
}

func (s *MemoryStore) HyperedgesByEntity(ctx context.Context, name string, limit int) ([]*model.Hyperedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("hyperedges by entity", name, errStoreClosed)
	}
	if limit <= 0 {
		limit = DefaultHyperedgeLimit
	}

	ids := s.entityHyperedges[model.NormalizeEntityName(name)].sorted()
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]*model.Hyperedge, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.hyperedges[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) EntitiesByHyperedge(ctx context.Context, hyperedgeID string) ([]*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("entities by hyperedge", hyperedgeID, errStoreClosed)
	}
	out := []*model.Entity{}
	h, ok := s.hyperedges[hyperedgeID]
	if !ok {
		return out, nil
	}
	for _, name := range h.EntityNames {
		if e, ok := s.entities[name]; ok {
			out = append(out, s.entityView(e))
		}
	}
	return out, nil
}

func (s *MemoryStore) ChunkIDsByEntity(ctx context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("chunk ids by entity", name, errStoreClosed)
	}
	return s.entityChunks[model.NormalizeEntityName(name)].sorted(), nil
}

func (s *MemoryStore) EntitiesByChunk(ctx context.Context, chunkID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("entities by chunk", chunkID, errStoreClosed)
	}
	return s.chunkEntities[chunkID].sorted(), nil
}

func (s *MemoryStore) SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("select chunks", "", errStoreClosed)
	}
	out := make([]*model.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			out = append(out, s.chunkView(c))
		}
	}
	return out, nil
}

func (s *MemoryStore) SelectEntity(ctx context.Context, name string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, helper.NewStoreError("select entity", name, errStoreClosed)
	}
	e, ok := s.entities[model.NormalizeEntityName(name)]
	if !ok {
		return nil, helper.NewNotFoundError("select entity", name)
	}
	return s.entityView(e), nil
}

func (s *MemoryStore) HealthCheck(ctx context.Context) *model.StoreHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()

	health := &model.StoreHealth{
		Connected: !s.closed,
		Indexes: map[string]int{
			ChunkIndexName:  s.dimensions,
			EntityIndexName: s.dimensions,
		},
	}
	if s.closed {
		health.Errors = append(health.Errors, errStoreClosed.Error())
	}
	return health
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return helper.NewStoreError("reset", "", errStoreClosed)
	}
	s.clear()
	s.logger.Info("Reset memory store")
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
var _ Neighborhood = (*MemoryStore)(nil)
