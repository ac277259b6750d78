// Package store is the PostgreSQL repository for uploaded datafiles.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/flagscope/internal/validation"
)

var _ DatafileRepository = (*PostgresStore)(nil)

var (
	// ErrNotFound is returned when no datafile exists for an SDK key.
	ErrNotFound = errors.New("datafile not found")
	// ErrDuplicate is returned when the same document was already stored for an SDK key.
	ErrDuplicate = errors.New("datafile already exists")
)

// Datafile mirrors a row of the 'datafiles' table. Document is stored as json text
// and read back byte-for-byte, so Fingerprint always describes it.
type Datafile struct {
	ID             int64     `db:"id"`
	SDKKey         string    `db:"sdk_key"`
	Revision       string    `db:"revision"`
	EnvironmentKey string    `db:"environment_key"`
	Fingerprint    string    `db:"fingerprint"`
	Document       []byte    `db:"document"`
	CreatedAt      time.Time `db:"created_at"`
}

// DatafileRepository defines datafile persistence operations.
type DatafileRepository interface {
	// CreateDatafile inserts a datafile and populates ID and CreatedAt.
	CreateDatafile(ctx context.Context, d *Datafile) error

	// GetLatest returns the newest datafile stored for sdkKey.
	GetLatest(ctx context.Context, sdkKey string) (*Datafile, error)

	// ListLatest returns the newest datafile of every SDK key, ordered by SDK key.
	ListLatest(ctx context.Context) ([]*Datafile, error)

	// ListRevisions returns a page of the history of sdkKey, newest first, and the total count.
	ListRevisions(ctx context.Context, sdkKey string, limit, offset int) ([]*Datafile, int64, error)
}

// PostgresStore implements DatafileRepository on PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	validation.AssertNotNil(db, "database pool")
	return &PostgresStore{db: db}
}

const datafileColumns = `id, sdk_key, revision, environment_key, fingerprint, document, created_at`

func (s *PostgresStore) CreateDatafile(ctx context.Context, d *Datafile) error {
	query := `
		INSERT INTO datafiles (sdk_key, revision, environment_key, fingerprint, document)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		d.SDKKey,
		d.Revision,
		d.EnvironmentKey,
		d.Fingerprint,
		d.Document,
	).Scan(&d.ID, &d.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		// 23505: unique_violation
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("sdk key %q fingerprint %s: %w", d.SDKKey, d.Fingerprint, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert datafile: %w", err)
	}

	return nil
}

func (s *PostgresStore) GetLatest(ctx context.Context, sdkKey string) (*Datafile, error) {
	query := `
		SELECT ` + datafileColumns + `
		FROM datafiles
		WHERE sdk_key = $1
		ORDER BY id DESC
		LIMIT 1
	`

	d, err := scanDatafile(s.db.QueryRow(ctx, query, sdkKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("sdk key %q: %w", sdkKey, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get latest datafile: %w", err)
	}
	return d, nil
}

func (s *PostgresStore) ListLatest(ctx context.Context) ([]*Datafile, error) {
	query := `
		SELECT DISTINCT ON (sdk_key) ` + datafileColumns + `
		FROM datafiles
		ORDER BY sdk_key, id DESC
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest datafiles: %w", err)
	}
	defer rows.Close()

	return collectDatafiles(rows, 0)
}

// ListRevisions runs a count query first and skips the page query when there is no history.
func (s *PostgresStore) ListRevisions(ctx context.Context, sdkKey string, limit, offset int) ([]*Datafile, int64, error) {
	var total int64
	countQuery := `SELECT count(*) FROM datafiles WHERE sdk_key = $1`

	if err := s.db.QueryRow(ctx, countQuery, sdkKey).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count datafiles: %w", err)
	}

	if total == 0 {
		return []*Datafile{}, 0, nil
	}

	query := `
		SELECT ` + datafileColumns + `
		FROM datafiles
		WHERE sdk_key = $1
		ORDER BY id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.Query(ctx, query, sdkKey, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list datafile revisions: %w", err)
	}
	defer rows.Close()

	list, err := collectDatafiles(rows, limit)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func scanDatafile(row pgx.Row) (*Datafile, error) {
	var d Datafile
	if err := row.Scan(
		&d.ID,
		&d.SDKKey,
		&d.Revision,
		&d.EnvironmentKey,
		&d.Fingerprint,
		&d.Document,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDatafiles(rows pgx.Rows, capacity int) ([]*Datafile, error) {
	list := make([]*Datafile, 0, capacity)
	for rows.Next() {
		d, err := scanDatafile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan datafile row: %w", err)
		}
		list = append(list, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return list, nil
}
