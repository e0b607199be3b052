// Package neo4jstore implements graph.Store on Neo4j 5.
//
// Entities, hyperedges and chunks are nodes. Participation is modelled as
// (:Entity)-[:PARTICIPATES_IN]->(:Hyperedge) and mentions as
// (:Entity)-[:MENTIONED_IN]->(:Chunk). Similarity search uses native vector
// indexes with cosine similarity.
package neo4jstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/siherrmann/hypergrapher/core/graph"
	"github.com/siherrmann/hypergrapher/helper"
	"github.com/siherrmann/hypergrapher/model"
)

var schemaStatements = []string{
	"CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE",
	"CREATE CONSTRAINT hyperedge_id_unique IF NOT EXISTS FOR (h:Hyperedge) REQUIRE h.id IS UNIQUE",
	"CREATE CONSTRAINT chunk_id_unique IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
}

var vectorIndexes = []struct {
	name  string
	label string
}{
	{graph.ChunkIndexName, "Chunk"},
	{graph.EntityIndexName, "Entity"},
}

// Store is a graph.Store on Neo4j.
type Store struct {
	driver     neo4j.DriverWithContext
	database   string
	dimensions int
	logger     *slog.Logger
}

// NewStore connects to Neo4j, verifies connectivity and creates the
// constraints and vector indexes if they do not exist.
func NewStore(ctx context.Context, config *helper.Neo4jConfiguration, dimensions int, logger *slog.Logger) (*Store, error) {
	if config == nil {
		return nil, helper.NewConfigError("neo4j", fmt.Errorf("configuration is nil"))
	}
	if dimensions <= 0 {
		return nil, helper.NewConfigError("dimensions", fmt.Errorf("must be positive, got %d", dimensions))
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}

	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""), func(cfg *neo4j.Config) {
		if config.MaxPoolSize > 0 {
			cfg.MaxConnectionPoolSize = config.MaxPoolSize
		}
		if config.ConnectTimeout > 0 {
			cfg.SocketConnectTimeout = config.ConnectTimeout
		}
	})
	if err != nil {
		return nil, helper.NewError("neo4j driver", err)
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	verifyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, helper.NewError("neo4j verify connectivity", err)
	}

	s := &Store{
		driver:     driver,
		database:   config.Database,
		dimensions: dimensions,
		logger:     logger.With(slog.String("store", "neo4j")),
	}
	if err := s.initSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	s.logger.Info("Connected to neo4j", slog.String("uri", config.URI), slog.String("database", config.Database))
	return s, nil
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database, AccessMode: mode})
}

// run executes an auto-commit query and drains its result.
func (s *Store) run(ctx context.Context, query string, params map[string]any) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	res, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// write runs fn in a managed write transaction.
func (s *Store) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return err
}

// read runs query in a managed read transaction and returns all records.
func (s *Store) read(ctx context.Context, query string, params map[string]any) ([]*db.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := result.([]*db.Record)
	return records, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, statement := range schemaStatements {
		if err := s.run(ctx, statement, nil); err != nil {
			return helper.NewError("create constraint", err)
		}
	}
	for _, idx := range vectorIndexes {
		query := fmt.Sprintf(
			"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.embedding) "+
				"OPTIONS {indexConfig: {`vector.dimensions`: $dimensions, `vector.similarity_function`: 'cosine'}}",
			idx.name, idx.label,
		)
		if err := s.run(ctx, query, map[string]any{"dimensions": s.dimensions}); err != nil {
			return helper.NewError("create vector index "+idx.name, err)
		}
	}
	return nil
}

func (s *Store) checkDimensions(operation string, key string, vector []float32) error {
	if len(vector) > 0 && len(vector) != s.dimensions {
		return helper.NewStoreError(operation, key, fmt.Errorf("embedding dimension %d, expected %d", len(vector), s.dimensions))
	}
	return nil
}

// HealthCheck runs a trivial query and reads the vector index dimensions
// from SHOW INDEXES. A missing vector index is reported as an error.
func (s *Store) HealthCheck(ctx context.Context) *model.StoreHealth {
	health := &model.StoreHealth{Indexes: map[string]int{}}

	if _, err := s.read(ctx, "RETURN 1 AS ok", nil); err != nil {
		health.Errors = append(health.Errors, fmt.Sprintf("connect: %v", err))
		return health
	}
	health.Connected = true

	records, err := s.read(ctx, "SHOW INDEXES YIELD name, type, options WHERE type = 'VECTOR' RETURN name, options", nil)
	if err != nil {
		health.Errors = append(health.Errors, fmt.Sprintf("show indexes: %v", err))
		return health
	}
	for _, record := range records {
		config := asMap(asMap(value(record, "options"))["indexConfig"])
		if dimensions, ok := config["vector.dimensions"]; ok {
			health.Indexes[asString(value(record, "name"))] = asInt(dimensions)
		}
	}
	for _, idx := range vectorIndexes {
		if _, ok := health.Indexes[idx.name]; !ok {
			health.Errors = append(health.Errors, fmt.Sprintf("%s: vector index is missing", idx.name))
		}
	}

	return health
}

// Reset deletes all nodes and relationships and rebuilds the vector indexes.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.run(ctx, "MATCH (n) DETACH DELETE n", nil); err != nil {
		return helper.NewStoreError("reset", "", err)
	}
	for _, idx := range vectorIndexes {
		if err := s.run(ctx, fmt.Sprintf("DROP INDEX %s IF EXISTS", idx.name), nil); err != nil {
			return helper.NewStoreError("reset", idx.name, err)
		}
	}
	if err := s.initSchema(ctx); err != nil {
		return helper.NewStoreError("reset", "", err)
	}

	s.logger.Info("Reset neo4j store")
	return nil
}

func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

var (
	_ graph.Store        = (*Store)(nil)
	_ graph.Neighborhood = (*Store)(nil)
)
