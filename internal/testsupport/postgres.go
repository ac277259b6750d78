// Package testsupport starts throwaway PostgreSQL and Redis containers for integration
// tests and reads Prometheus metrics back in assertions.
package testsupport

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rafaeljc/flagscope/internal/config"
	"github.com/rafaeljc/flagscope/internal/database"
	"github.com/rafaeljc/flagscope/migrations"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresDatabase = "flagscope_test"
	postgresUser     = "flagscope"
	postgresPassword = "flagscope-test-password"
)

// PostgresContainer is a running database with the datafile schema applied and a pool open on it.
type PostgresContainer struct {
	Container        testcontainers.Container
	DB               *pgxpool.Pool
	ConnectionString string
}

// Terminate closes the pool and removes the container.
func (c *PostgresContainer) Terminate(ctx context.Context) error {
	c.DB.Close()
	return c.Container.Terminate(ctx)
}

// Truncate empties the datafiles table and restarts its id sequence.
func (c *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := c.DB.Exec(ctx, `TRUNCATE datafiles RESTART IDENTITY`)
	return err
}

// StartPostgresContainer runs a disposable PostgreSQL and applies the embedded migrations.
func StartPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	ctr, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase(postgresDatabase),
		postgres.WithUsername(postgresUser),
		postgres.WithPassword(postgresPassword),
		// The server logs readiness twice: once for the init run and once for the real start.
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, &config.DatabaseConfig{
		URL:            dsn,
		MaxConns:       5,
		MinConns:       1,
		ConnectTimeout: 5 * time.Second,
	})
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}

	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		_ = ctr.Terminate(ctx)
		return nil, err
	}

	return &PostgresContainer{Container: ctr, DB: pool, ConnectionString: dsn}, nil
}
