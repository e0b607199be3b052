package database

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/hypergrapher/helper"
)

// withTx runs fn in a transaction and commits it when fn succeeds.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}
	return nil
}

// toVector converts an embedding to a query parameter. Empty embeddings become NULL.
func toVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}
