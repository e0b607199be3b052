package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed hyperedges.sql
var hyperedgesSQL string

//go:embed chunks.sql
var chunksSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"upsert_entity",
	"select_entity",
	"select_entities_by_names",
	"select_entities_by_similarity",
	"delete_entity",
}

var HyperedgesFunctions = []string{
	"init_hyperedges",
	"upsert_hyperedge",
	"select_hyperedges_by_entity",
	"select_hyperedge_ids_by_entity",
	"select_hyperedge_participants",
	"delete_hyperedge",
}

var ChunksFunctions = []string{
	"init_chunks",
	"upsert_chunk",
	"link_chunk_entities",
	"select_chunks",
	"select_chunks_by_similarity",
	"select_chunk_ids_by_entity",
	"select_entity_names_by_chunk",
	"delete_chunk",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadSql(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadHyperedgesSql loads hyperedge-related SQL functions
func LoadHyperedgesSql(db *sql.DB, force bool) error {
	return loadSql(db, "hyperedges", hyperedgesSQL, HyperedgesFunctions, force)
}

// LoadChunksSql loads chunk-related SQL functions
func LoadChunksSql(db *sql.DB, force bool) error {
	return loadSql(db, "chunks", chunksSQL, ChunksFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadHyperedgesSql(db, force); err != nil {
		return err
	}

	if err := LoadChunksSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadSql executes the given SQL unless force is false and all functions already exist.
func loadSql(db *sql.DB, name string, statements string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(statements)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
