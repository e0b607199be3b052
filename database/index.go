package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/hypergrapher/helper"
)

const (
	IndexTypeHNSW    = "hnsw"
	IndexTypeIVFFlat = "ivfflat"

	chunksEmbeddingIndex   = "idx_chunks_embedding"
	entitiesEmbeddingIndex = "idx_entities_embedding"
)

// ChangeIndexType changes the chunk vector index type between HNSW and IVFFlat
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return changeIndexType(ctx, h.db, "chunks", chunksEmbeddingIndex, indexType, params)
}

// ChangeIndexType changes the entity vector index type, see ChunksDBHandler.ChangeIndexType.
func (h *EntitiesDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return changeIndexType(ctx, h.db, "entities", entitiesEmbeddingIndex, indexType, params)
}

func changeIndexType(ctx context.Context, db *helper.Database, table string, index string, indexType string, params map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var createIndexSQL string

	switch indexType {
	case IndexTypeHNSW:
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			index, table, m, efConstruction,
		)

	case IndexTypeIVFFlat:
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			index, table, lists,
		)

	default:
		return helper.NewConfigError("index_type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	_, err := db.Instance.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, index))
	if err != nil {
		return helper.NewError("drop index", err)
	}

	db.Logger.Info("Dropped existing vector index", "index", index)

	_, err = db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	db.Logger.Info(fmt.Sprintf("Created %s index with params: %v", indexType, params), "index", index)

	return nil
}
