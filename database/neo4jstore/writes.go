package neo4jstore

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

// A non-empty description wins, OTHER never replaces a specific type and a
// null embedding keeps the stored one.
const upsertEntitiesQuery = `
UNWIND $entities AS entity
MERGE (e:Entity {name: entity.name})
ON CREATE SET e.created_at = datetime()
SET e.type = CASE WHEN entity.type <> 'OTHER' OR e.type IS NULL THEN entity.type ELSE e.type END,
    e.description = CASE WHEN entity.description <> '' THEN entity.description ELSE coalesce(e.description, '') END,
    e.embedding = coalesce(entity.embedding, e.embedding),
    e.updated_at = datetime()`

const selectHyperedgeQuery = `
MATCH (h:Hyperedge {id: $id})
RETURN h.entity_names AS names, h.content AS content, h.metadata AS metadata`

const upsertHyperedgeQuery = `
MERGE (h:Hyperedge {id: $id})
ON CREATE SET h.created_at = datetime()
SET h.content = $content,
    h.metadata = $metadata,
    h.entity_names = $names,
    h.updated_at = datetime()
WITH h
UNWIND $names AS name
MATCH (e:Entity {name: name})
MERGE (e)-[:PARTICIPATES_IN]->(h)`

const upsertChunksQuery = `
UNWIND $chunks AS chunk
MERGE (c:Chunk {id: chunk.id})
ON CREATE SET c.created_at = chunk.created_at
SET c.content = chunk.content,
    c.metadata = chunk.metadata,
    c.embedding = coalesce(chunk.embedding, c.embedding),
    c.updated_at = datetime()`

const linkChunkEntitiesQuery = `
UNWIND $links AS link
MATCH (c:Chunk {id: link.chunk_id})
UNWIND link.entity_names AS name
MATCH (e:Entity {name: name})
MERGE (e)-[r:MENTIONED_IN]->(c)
RETURN count(r) AS linked`

func (s *Store) UpsertEntities(ctx context.Context, entities []*model.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(entities))
	for _, e := range entities {
		name := model.NormalizeEntityName(e.Name)
		if name == "" {
			return helper.NewStoreError("upsert entities", e.Name, fmt.Errorf("entity name is empty"))
		}
		if err := s.checkDimensions("upsert entities", name, e.Embedding); err != nil {
			return err
		}
		entityType := e.Type
		if entityType == "" {
			entityType = model.EntityTypeOther
		}
		params = append(params, map[string]any{
			"name":        name,
			"type":        string(entityType),
			"description": e.Description,
			"embedding":   toList(e.Embedding),
		})
	}

	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, upsertEntitiesQuery, map[string]any{"entities": params})
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	})
	if err != nil {
		return helper.NewStoreError("upsert entities", "", err)
	}
	return nil
}

// UpsertHyperedges reads each stored hyperedge inside the write transaction
// and merges participants and metadata in Go before writing it back.
func (s *Store) UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error {
	if len(hyperedges) == 0 {
		return nil
	}

	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		for _, h := range hyperedges {
			incoming := h.Clone()
			incoming.EntityNames = model.NormalizeEntityNames(h.EntityNames)
			if incoming.ID == "" {
				incoming.ID = model.HyperedgeID(incoming.EntityNames, incoming.Content)
			}

			res, err := tx.Run(ctx, selectHyperedgeQuery, map[string]any{"id": incoming.ID})
			if err != nil {
				return err
			}
			records, err := res.Collect(ctx)
			if err != nil {
				return err
			}
			if len(records) > 0 {
				existing := &model.Hyperedge{
					ID:          incoming.ID,
					EntityNames: asStrings(value(records[0], "names")),
					Content:     asString(value(records[0], "content")),
				}
				if raw := asString(value(records[0], "metadata")); raw != "" {
					if err := existing.Metadata.Unmarshal(raw); err != nil {
						return helper.NewError("unmarshal hyperedge metadata", err)
					}
				}
				existing.Merge(incoming)
				incoming = existing
			}

			metadata, err := incoming.Metadata.Marshal()
			if err != nil {
				return helper.NewError("marshal hyperedge metadata", err)
			}
			res, err = tx.Run(ctx, upsertHyperedgeQuery, map[string]any{
				"id":       incoming.ID,
				"content":  incoming.Content,
				"metadata": string(metadata),
				"names":    incoming.EntityNames,
			})
			if err != nil {
				return err
			}
			if _, err := res.Consume(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return helper.NewStoreError("upsert hyperedges", "", err)
	}
	return nil
}

func (s *Store) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	now := time.Now()
	params := make([]map[string]any, 0, len(chunks))
	for _, c := range chunks {
		if c.ID == "" {
			return helper.NewStoreError("upsert chunks", "", fmt.Errorf("chunk id is empty"))
		}
		if err := s.checkDimensions("upsert chunks", c.ID, c.Embedding); err != nil {
			return err
		}
		metadata, err := c.Metadata.MarshalJSON()
		if err != nil {
			return helper.NewStoreError("upsert chunks", c.ID, err)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		params = append(params, map[string]any{
			"id":         c.ID,
			"content":    c.Content,
			"metadata":   string(metadata),
			"embedding":  toList(c.Embedding),
			"created_at": createdAt,
		})
	}

	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, upsertChunksQuery, map[string]any{"chunks": params})
		if err != nil {
			return err
		}
		_, err = res.Consume(ctx)
		return err
	})
	if err != nil {
		return helper.NewStoreError("upsert chunks", "", err)
	}
	return nil
}

// LinkChunkEntities creates MENTIONED_IN relationships. Unknown chunks and
// entities are skipped.
func (s *Store) LinkChunkEntities(ctx context.Context, links []model.ChunkLink) error {
	if len(links) == 0 {
		return nil
	}

	params := make([]map[string]any, 0, len(links))
	for _, link := range links {
		params = append(params, map[string]any{
			"chunk_id":     link.ChunkID,
			"entity_names": model.NormalizeEntityNames(link.EntityNames),
		})
	}

	linked := 0
	err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		res, err := tx.Run(ctx, linkChunkEntitiesQuery, map[string]any{"links": params})
		if err != nil {
			return err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return err
		}
		linked = asInt(value(record, "linked"))
		return nil
	})
	if err != nil {
		return helper.NewStoreError("link chunk entities", "", err)
	}

	s.logger.Debug("Linked chunks to entities", "links", linked)
	return nil
}
