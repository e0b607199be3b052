package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
	loadSql "github.com/siherrmann/hypergrapher/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntities(ctx context.Context, entities []*model.Entity) error
	DeleteEntity(ctx context.Context, name string) error
	SelectEntity(ctx context.Context, name string) (*model.Entity, error)
	SelectEntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error)
	SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredEntity, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads the entity-related SQL functions and creates the table with an
// embedding column of the given dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init entities", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntities merges the entities by name in one transaction.
// MentionedIn is ignored; mentions are written through chunk links.
func (h *EntitiesDBHandler) UpsertEntities(ctx context.Context, entities []*model.Entity) error {
	return withTx(ctx, h.db.Instance, func(tx *sql.Tx) error {
		for _, entity := range entities {
			_, err := tx.ExecContext(
				ctx,
				`SELECT * FROM upsert_entity($1, $2, $3, $4)`,
				model.NormalizeEntityName(entity.Name),
				string(entity.Type),
				entity.Description,
				toVector(entity.Embedding),
			)
			if err != nil {
				return helper.NewError("upsert entity "+entity.Name, err)
			}
		}
		return nil
	})
}

// DeleteEntity deletes an entity by name
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, name string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_entity($1)`,
		name,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by name. An unknown name is a NotFoundError.
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, name string) (*model.Entity, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_entity($1)`,
		model.NormalizeEntityName(name),
	)

	entity := &model.Entity{}
	err := row.Scan(
		&entity.Name,
		&entity.Type,
		&entity.Description,
		pq.Array(&entity.Embedding),
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, helper.NewNotFoundError("select entity", name)
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntitiesByNames retrieves the known entities among names, ordered by name
func (h *EntitiesDBHandler) SelectEntitiesByNames(ctx context.Context, names []string) ([]*model.Entity, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_names($1)`,
		pq.Array(names),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	entities := []*model.Entity{}
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.Name,
			&entity.Type,
			&entity.Description,
			pq.Array(&entity.Embedding),
			&entity.CreatedAt,
			&entity.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// SelectEntitiesBySimilarity performs vector similarity search over entity embeddings
func (h *EntitiesDBHandler) SelectEntitiesBySimilarity(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredEntity, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_similarity($1, $2)`,
		toVector(embedding),
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.ScoredEntity{}
	for rows.Next() {
		entity := &model.Entity{}
		var similarity float64
		err := rows.Scan(
			&entity.Name,
			&entity.Type,
			&entity.Description,
			pq.Array(&entity.Embedding),
			&entity.CreatedAt,
			&entity.UpdatedAt,
			&similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, &model.ScoredEntity{Entity: entity, Score: similarity})
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}
