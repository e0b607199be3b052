package neo4jstore

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

const chunkReturn = `
OPTIONAL MATCH (m:Entity)-[:MENTIONED_IN]->(c)
WITH c, score, collect(m.name) AS entities
RETURN c.id AS id, c.content AS content, c.metadata AS metadata,
       c.embedding AS embedding, c.created_at AS created_at, entities, score`

const entityReturn = `
OPTIONAL MATCH (e)-[:MENTIONED_IN]->(m:Chunk)
WITH e, score, collect(m.id) AS mentioned_in
RETURN e.name AS name, e.type AS type, e.description AS description,
       e.embedding AS embedding, e.created_at AS created_at, e.updated_at AS updated_at,
       mentioned_in, score`

// queryNodes reports cosine scores as (1 + cos) / 2; results are mapped back to cos.
const searchChunksQuery = `
CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node AS c, score` + chunkReturn + `
ORDER BY score DESC, id`

const searchEntitiesQuery = `
CALL db.index.vector.queryNodes($index, $k, $vector) YIELD node AS e, score` + entityReturn + `
ORDER BY score DESC, name`

const selectChunksQuery = `
UNWIND $ids AS id
MATCH (c:Chunk {id: id})
WITH c, 0.0 AS score` + chunkReturn

const selectEntityQuery = `
MATCH (e:Entity {name: $name})
WITH e, 0.0 AS score` + entityReturn

const entitiesByHyperedgeQuery = `
MATCH (h:Hyperedge {id: $id})
UNWIND h.entity_names AS name
MATCH (e:Entity {name: name})
WITH e, 0.0 AS score` + entityReturn + `
ORDER BY name`

const hyperedgesByEntityQuery = `
MATCH (:Entity {name: $name})-[:PARTICIPATES_IN]->(h:Hyperedge)
RETURN h.id AS id, h.entity_names AS names, h.content AS content, h.metadata AS metadata,
       h.created_at AS created_at, h.updated_at AS updated_at
ORDER BY id
LIMIT $limit`

// Paths alternate Entity and Hyperedge nodes, so one hop has length 2.
func chunkFromRecord(record *db.Record) (*model.Chunk, error) {
	c := &model.Chunk{
		ID:        asString(value(record, "id")),
		Content:   asString(value(record, "content")),
		Embedding: asFloat32s(value(record, "embedding")),
		Entities:  asStrings(value(record, "entities")),
		CreatedAt: asTime(value(record, "created_at")),
	}
	if raw := asString(value(record, "metadata")); raw != "" {
		if err := c.Metadata.Scan(raw); err != nil {
			return nil, helper.NewError("scan chunk metadata "+c.ID, err)
		}
	}
	return c, nil
}

func entityFromRecord(record *db.Record) *model.Entity {
	return &model.Entity{
		Name:        asString(value(record, "name")),
		Type:        model.ParseEntityType(asString(value(record, "type"))),
		Description: asString(value(record, "description")),
		Embedding:   asFloat32s(value(record, "embedding")),
		MentionedIn: asStrings(value(record, "mentioned_in")),
		CreatedAt:   asTime(value(record, "created_at")),
		UpdatedAt:   asTime(value(record, "updated_at")),
	}
}

func cosineScore(record *db.Record) float64 {
	return 2*asFloat(value(record, "score")) - 1
}

func (s *Store) SearchChunks(ctx context.Context, vector []float32, topK int) ([]*model.ScoredChunk, error) {
	if err := s.checkDimensions("search chunks", "", vector); err != nil {
		return nil, err
	}
	results := []*model.ScoredChunk{}
	if topK <= 0 || len(vector) == 0 {
		return results, nil
	}

	records, err := s.read(ctx, searchChunksQuery, map[string]any{
		"index":  graph.ChunkIndexName,
		"k":      topK,
		"vector": toList(vector),
	})
	if err != nil {
		return nil, helper.NewStoreError("search chunks", "", err)
	}
	for _, record := range records {
		c, err := chunkFromRecord(record)
		if err != nil {
			return nil, helper.NewStoreError("search chunks", "", err)
		}
		results = append(results, &model.ScoredChunk{Chunk: c, Score: cosineScore(record)})
	}
	return results, nil
}

func (s *Store) SearchEntities(ctx context.Context, vector []float32, topK int) ([]*model.ScoredEntity, error) {
	if err := s.checkDimensions("search entities", "", vector); err != nil {
		return nil, err
	}
	results := []*model.ScoredEntity{}
	if topK <= 0 || len(vector) == 0 {
		return results, nil
	}

	records, err := s.read(ctx, searchEntitiesQuery, map[string]any{
		"index":  graph.EntityIndexName,
		"k":      topK,
		"vector": toList(vector),
	})
	if err != nil {
		return nil, helper.NewStoreError("search entities", "", err)
	}
	for _, record := range records {
		results = append(results, &model.ScoredEntity{Entity: entityFromRecord(record), Score: cosineScore(record)})
	}
	return results, nil
}

// HyperedgeIDsOf implements graph.Neighborhood.
func (s *Store) HyperedgeIDsOf(ctx context.Context, entity string) ([]string, error) {
	records, err := s.read(ctx,
		"MATCH (:Entity {name: $name})-[:PARTICIPATES_IN]->(h:Hyperedge) RETURN h.id AS id ORDER BY id",
		map[string]any{"name": entity},
	)
	if err != nil {
		return nil, helper.NewStoreError("hyperedges of", entity, err)
	}
	return column(records, "id"), nil
}

// ParticipantsOf implements graph.Neighborhood.
func (s *Store) ParticipantsOf(ctx context.Context, hyperedgeID string) ([]string, error) {
	records, err := s.read(ctx,
		"MATCH (h:Hyperedge {id: $id}) RETURN h.entity_names AS names",
		map[string]any{"id": hyperedgeID},
	)
	if err != nil {
		return nil, helper.NewStoreError("participants of", hyperedgeID, err)
	}
	if len(records) == 0 {
		return []string{}, nil
	}
	return asStrings(value(records[0], "names")), nil
}

// TraverseFromEntity walks the hypergraph breadth first, one read per
// entity and hyperedge, so the limit bounds the work on hub entities.
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

	name = model.NormalizeEntityName(name)
	records, err := s.read(ctx, hyperedgesByEntityQuery, map[string]any{"name": name, "limit": limit})
	if err != nil {
		return nil, helper.NewStoreError("hyperedges by entity", name, err)
	}

	out := make([]*model.Hyperedge, 0, len(records))
	for _, record := range records {
		h := &model.Hyperedge{
			ID:          asString(value(record, "id")),
			EntityNames: asStrings(value(record, "names")),
			Content:     asString(value(record, "content")),
			CreatedAt:   asTime(value(record, "created_at")),
			UpdatedAt:   asTime(value(record, "updated_at")),
		}
		if raw := asString(value(record, "metadata")); raw != "" {
			if err := h.Metadata.Unmarshal(raw); err != nil {
				return nil, helper.NewStoreError("hyperedges by entity", h.ID, err)
			}
		}
		out = append(out, h)
	}
	return out, nil
}

func (s *Store) EntitiesByHyperedge(ctx context.Context, hyperedgeID string) ([]*model.Entity, error) {
	records, err := s.read(ctx, entitiesByHyperedgeQuery, map[string]any{"id": hyperedgeID})
	if err != nil {
		return nil, helper.NewStoreError("entities by hyperedge", hyperedgeID, err)
	}
	out := make([]*model.Entity, 0, len(records))
	for _, record := range records {
		out = append(out, entityFromRecord(record))
	}
	return out, nil
}

func (s *Store) ChunkIDsByEntity(ctx context.Context, name string) ([]string, error) {
	name = model.NormalizeEntityName(name)
	records, err := s.read(ctx,
		"MATCH (:Entity {name: $name})-[:MENTIONED_IN]->(c:Chunk) RETURN c.id AS id ORDER BY id",
		map[string]any{"name": name},
	)
	if err != nil {
		return nil, helper.NewStoreError("chunk ids by entity", name, err)
	}
	return column(records, "id"), nil
}

func (s *Store) EntitiesByChunk(ctx context.Context, chunkID string) ([]string, error) {
	records, err := s.read(ctx,
		"MATCH (e:Entity)-[:MENTIONED_IN]->(:Chunk {id: $id}) RETURN e.name AS name ORDER BY name",
		map[string]any{"id": chunkID},
	)
	if err != nil {
		return nil, helper.NewStoreError("entities by chunk", chunkID, err)
	}
	return column(records, "name"), nil
}

// SelectChunks returns the known chunks in the order of ids.
func (s *Store) SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	if len(ids) == 0 {
		return []*model.Chunk{}, nil
	}

	records, err := s.read(ctx, selectChunksQuery, map[string]any{"ids": ids})
	if err != nil {
		return nil, helper.NewStoreError("select chunks", "", err)
	}
	byID := make(map[string]*model.Chunk, len(records))
	for _, record := range records {
		c, err := chunkFromRecord(record)
		if err != nil {
			return nil, helper.NewStoreError("select chunks", "", err)
		}
		byID[c.ID] = c
	}

	out := make([]*model.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
			delete(byID, id)
		}
	}
	return out, nil
}

func (s *Store) SelectEntity(ctx context.Context, name string) (*model.Entity, error) {
	name = model.NormalizeEntityName(name)
	records, err := s.read(ctx, selectEntityQuery, map[string]any{"name": name})
	if err != nil {
		return nil, helper.NewStoreError("select entity", name, err)
	}
	if len(records) == 0 {
		return nil, helper.NewNotFoundError("select entity", name)
	}
	return entityFromRecord(records[0]), nil
}

func column(records []*db.Record, key string) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, asString(value(record, key)))
	}
	return out
}
