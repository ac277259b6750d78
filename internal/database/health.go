package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/flagscope/internal/observability"
)

// schemaProbe fails when the pool is up but the migrations have not run.
const schemaProbe = `SELECT 1 FROM datafiles LIMIT 1`

// NewHealthChecker returns a readiness check that pings PostgreSQL and makes
// sure the datafiles table is reachable.
func NewHealthChecker(pool *pgxpool.Pool) observability.Checker {
	return observability.CheckerFunc{
		Component: "postgres",
		Fn: func(ctx context.Context) error {
			if pool == nil {
				return errors.New("database pool is nil")
			}
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			if _, err := pool.Exec(ctx, schemaProbe); err != nil {
				return fmt.Errorf("datafiles table unavailable: %w", err)
			}
			return nil
		},
	}
}
