package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	loadSql "github.com/siherrmann/hypergrapher/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	UpsertChunks(ctx context.Context, chunks []*model.Chunk) error
	LinkChunkEntities(ctx context.Context, links []model.ChunkLink) (int, error)
	DeleteChunk(ctx context.Context, id string) error
	SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error)
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error)
	SelectChunkIDsByEntity(ctx context.Context, name string) ([]string, error)
	SelectEntityNamesByChunk(ctx context.Context, chunkID string) ([]string, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// It loads the chunk-related SQL functions and creates the tables. The
// entities table has to exist already since chunk links reference it.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' and 'chunk_entities' tables in the database.
// If the tables already exist, it does not create them again.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init chunks", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// UpsertChunks writes the chunks in one transaction. Chunk.Entities is
// ignored; use LinkChunkEntities.
func (h *ChunksDBHandler) UpsertChunks(ctx context.Context, chunks []*model.Chunk) error {
	return withTx(ctx, h.db.Instance, func(tx *sql.Tx) error {
		for _, chunk := range chunks {
			_, err := tx.ExecContext(
				ctx,
				`SELECT * FROM upsert_chunk($1, $2, $3, $4)`,
				chunk.ID,
				chunk.Content,
				chunk.Metadata,
				toVector(chunk.Embedding),
			)
			if err != nil {
				return helper.NewError("upsert chunk "+chunk.ID, err)
			}
		}
		return nil
	})
}

// LinkChunkEntities records which entities a chunk mentions and returns the
// number of new links. Unknown chunks and entities are skipped.
func (h *ChunksDBHandler) LinkChunkEntities(ctx context.Context, links []model.ChunkLink) (int, error) {
	linked := 0
	err := withTx(ctx, h.db.Instance, func(tx *sql.Tx) error {
		for _, link := range links {
			var n int
			err := tx.QueryRowContext(
				ctx,
				`SELECT link_chunk_entities($1, $2)`,
				link.ChunkID,
				pq.Array(model.NormalizeEntityNames(link.EntityNames)),
			).Scan(&n)
			if err != nil {
				return helper.NewError("link chunk "+link.ChunkID, err)
			}
			linked += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return linked, nil
}

// DeleteChunk deletes a chunk by ID
func (h *ChunksDBHandler) DeleteChunk(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_chunk($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectChunks retrieves chunks by ID in the requested order. Unknown IDs are skipped.
func (h *ChunksDBHandler) SelectChunks(ctx context.Context, ids []string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks($1)`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	byID := map[string]*model.Chunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		err := rows.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.Metadata,
			pq.Array(&chunk.Embedding),
			pq.Array(&chunk.Entities),
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		byID[chunk.ID] = chunk
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	chunks := make([]*model.Chunk, 0, len(byID))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			chunks = append(chunks, chunk)
			delete(byID, id)
		}
	}

	return chunks, nil
}

// SelectChunksBySimilarity performs vector similarity search
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2)`,
		toVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.ScoredChunk{}
	for rows.Next() {
		chunk := &model.Chunk{}
		var similarity float64
		err := rows.Scan(
			&chunk.ID,
			&chunk.Content,
			&chunk.Metadata,
			pq.Array(&chunk.Embedding),
			pq.Array(&chunk.Entities),
			&chunk.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, &model.ScoredChunk{Chunk: chunk, Score: similarity})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectChunkIDsByEntity retrieves the sorted IDs of the chunks mentioning an entity
func (h *ChunksDBHandler) SelectChunkIDsByEntity(ctx context.Context, name string) ([]string, error) {
	return selectStrings(ctx, h.db.Instance, `SELECT * FROM select_chunk_ids_by_entity($1)`, model.NormalizeEntityName(name))
}

// SelectEntityNamesByChunk retrieves the sorted names of the entities a chunk mentions
func (h *ChunksDBHandler) SelectEntityNamesByChunk(ctx context.Context, chunkID string) ([]string, error) {
	return selectStrings(ctx, h.db.Instance, `SELECT * FROM select_entity_names_by_chunk($1)`, chunkID)
}
