package helper

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Neo4jConfiguration holds the Neo4j connection settings.
type Neo4jConfiguration struct {
	URI            string
	Username       string
	Password       string
	Database       string
	MaxPoolSize    int
	ConnectTimeout time.Duration
}

// NewNeo4jConfiguration reads the configuration from NEO4J_* environment variables.
func NewNeo4jConfiguration() (*Neo4jConfiguration, error) {
	_ = godotenv.Load()

	config := &Neo4jConfiguration{
		URI:            os.Getenv("NEO4J_URI"),
		Username:       os.Getenv("NEO4J_USER"),
		Password:       os.Getenv("NEO4J_PASSWORD"),
		Database:       os.Getenv("NEO4J_DATABASE"),
		MaxPoolSize:    50,
		ConnectTimeout: 10 * time.Second,
	}
	if config.URI == "" {
		config.URI = "bolt://localhost:7687"
	}
	if config.Username == "" {
		config.Username = "neo4j"
	}
	if config.Database == "" {
		config.Database = "neo4j"
	}
	if v := os.Getenv("NEO4J_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return nil, NewConfigError("NEO4J_TIMEOUT_SECONDS", fmt.Errorf("invalid value %q", v))
		}
		config.ConnectTimeout = time.Duration(seconds) * time.Second
	}

	return config, nil
}
