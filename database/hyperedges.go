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

// HyperedgesDBHandlerFunctions defines the interface for Hyperedges database operations.
type HyperedgesDBHandlerFunctions interface {
	UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error
	DeleteHyperedge(ctx context.Context, id string) error
	SelectHyperedgesByEntity(ctx context.Context, name string, limit int) ([]*model.Hyperedge, error)
	SelectHyperedgeIDsByEntity(ctx context.Context, name string) ([]string, error)
	SelectParticipants(ctx context.Context, id string) ([]string, error)
}

// HyperedgesDBHandler handles hyperedge-related database operations
type HyperedgesDBHandler struct {
	db *helper.Database
}

// NewHyperedgesDBHandler creates a new hyperedges database handler.
// It loads the hyperedge-related SQL functions and creates the tables.
// If force is true, it will reload the SQL functions even if they already exist.
func NewHyperedgesDBHandler(db *helper.Database, force bool) (*HyperedgesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	hyperedgesDbHandler := &HyperedgesDBHandler{
		db: db,
	}

	err := loadSql.LoadHyperedgesSql(hyperedgesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load hyperedges sql", err)
	}

	err = hyperedgesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized HyperedgesDBHandler")

	return hyperedgesDbHandler, nil
}

// CreateTable creates the 'hyperedges' and 'hyperedge_entities' tables.
func (h *HyperedgesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_hyperedges();`)
	if err != nil {
		return helper.NewError("init hyperedges", err)
	}

	h.db.Logger.Info("Checked/created table hyperedges")

	return nil
}

// UpsertHyperedges merges the hyperedges by ID in one transaction.
// Hyperedges without an ID get the one derived from participants and content.
func (h *HyperedgesDBHandler) UpsertHyperedges(ctx context.Context, hyperedges []*model.Hyperedge) error {
	return withTx(ctx, h.db.Instance, func(tx *sql.Tx) error {
		for _, hyperedge := range hyperedges {
			names := model.NormalizeEntityNames(hyperedge.EntityNames)
			id := hyperedge.ID
			if id == "" {
				id = model.HyperedgeID(names, hyperedge.Content)
			}

			_, err := tx.ExecContext(
				ctx,
				`SELECT * FROM upsert_hyperedge($1, $2, $3, $4)`,
				id,
				pq.Array(names),
				hyperedge.Content,
				hyperedge.Metadata,
			)
			if err != nil {
				return helper.NewError("upsert hyperedge "+id, err)
			}
		}
		return nil
	})
}

// DeleteHyperedge deletes a hyperedge and its participations
func (h *HyperedgesDBHandler) DeleteHyperedge(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_hyperedge($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectHyperedgesByEntity retrieves the hyperedges an entity participates in, ordered by ID
func (h *HyperedgesDBHandler) SelectHyperedgesByEntity(ctx context.Context, name string, limit int) ([]*model.Hyperedge, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_hyperedges_by_entity($1, $2)`,
		model.NormalizeEntityName(name),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	hyperedges := []*model.Hyperedge{}
	for rows.Next() {
		hyperedge := &model.Hyperedge{}
		err := rows.Scan(
			&hyperedge.ID,
			pq.Array(&hyperedge.EntityNames),
			&hyperedge.Content,
			&hyperedge.Metadata,
			&hyperedge.CreatedAt,
			&hyperedge.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		hyperedges = append(hyperedges, hyperedge)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return hyperedges, nil
}

// SelectHyperedgeIDsByEntity retrieves the sorted IDs of the hyperedges an entity participates in
func (h *HyperedgesDBHandler) SelectHyperedgeIDsByEntity(ctx context.Context, name string) ([]string, error) {
	return selectStrings(ctx, h.db.Instance, `SELECT * FROM select_hyperedge_ids_by_entity($1)`, model.NormalizeEntityName(name))
}

// SelectParticipants retrieves the sorted entity names of a hyperedge
func (h *HyperedgesDBHandler) SelectParticipants(ctx context.Context, id string) ([]string, error) {
	return selectStrings(ctx, h.db.Instance, `SELECT * FROM select_hyperedge_participants($1)`, id)
}

// selectStrings runs a query returning a single text column.
func selectStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, helper.NewError("scan", err)
		}
		values = append(values, value)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return values, nil
}
