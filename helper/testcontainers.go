package helper

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	testDatabaseName     = "database"
	testDatabaseUser     = "user"
	testDatabasePassword = "password"
	testNeo4jPassword    = "password"
)

// MustStartPostgresContainer starts a pgvector enabled PostgreSQL container
// and returns its terminate function and mapped port.
func MustStartPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase(testDatabaseName),
		postgres.WithUsername(testDatabaseUser),
		postgres.WithPassword(testDatabasePassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

// SetTestDatabaseConfigEnvs points the DB_* variables at the test container.
func SetTestDatabaseConfigEnvs(t *testing.T, dbPort string) {
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", dbPort)
	t.Setenv("DB_DATABASE", testDatabaseName)
	t.Setenv("DB_USERNAME", testDatabaseUser)
	t.Setenv("DB_PASSWORD", testDatabasePassword)
	t.Setenv("DB_SCHEMA", "public")
	t.Setenv("DB_SSLMODE", "disable")
}

// NewTestDatabase connects to the test database and fails hard on error.
func NewTestDatabase(config *DatabaseConfiguration) *Database {
	logger := NewLogger(slog.LevelWarn)
	database, err := NewDatabase("test", config, logger)
	if err != nil {
		log.Fatalf("error connecting to test database: %v", err)
	}
	return database
}

// MustStartNeo4jContainer starts a Neo4j 5 container and returns its
// terminate function and the bolt URI.
func MustStartNeo4jContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5",
		ExposedPorts: []string{"7687/tcp"},
		Env: map[string]string{
			"NEO4J_AUTH": "neo4j/" + testNeo4jPassword,
		},
		WaitingFor: wait.ForLog("Started.").WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("error starting neo4j container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("error getting neo4j host: %w", err)
	}
	port, err := container.MappedPort(ctx, "7687/tcp")
	if err != nil {
		return nil, "", fmt.Errorf("error getting neo4j port: %w", err)
	}

	return container.Terminate, fmt.Sprintf("bolt://%s:%s", host, port.Port()), nil
}

// SetTestNeo4jConfigEnvs points the NEO4J_* variables at the test container.
func SetTestNeo4jConfigEnvs(t *testing.T, uri string) {
	t.Setenv("NEO4J_URI", uri)
	t.Setenv("NEO4J_USER", "neo4j")
	t.Setenv("NEO4J_PASSWORD", testNeo4jPassword)
	t.Setenv("NEO4J_DATABASE", "neo4j")
}
