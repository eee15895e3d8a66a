package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements DocumentStore using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(errs.ErrConfig, "postgres: parse config: "+err.Error())
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: create pool: "+err.Error())
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(errs.ErrStorage, "postgres: ping: "+err.Error())
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_lower TEXT NOT NULL,
	record     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name_lower ON companies(name_lower);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	if err != nil {
		return eris.Wrap(errs.ErrStorage, "postgres: migrate: "+err.Error())
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Put(ctx context.Context, record *model.CompanyRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(errs.ErrStorage, "postgres: marshal record: "+err.Error())
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO companies (id, name, name_lower, record, updated_at) VALUES ($1, $2, lower($2), $3, $4)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, name_lower = EXCLUDED.name_lower,
		 record = EXCLUDED.record, updated_at = EXCLUDED.updated_at`,
		record.ID, record.Name, string(recordJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(errs.ErrStorage, "postgres: upsert company %s: %v", record.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*model.CompanyRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT record FROM companies WHERE id = $1`, id)
	return scanPgRecord(row)
}

func (s *PostgresStore) GetByName(ctx context.Context, name string) (*model.CompanyRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT record FROM companies WHERE name_lower = lower($1) ORDER BY updated_at DESC LIMIT 1`,
		name,
	)
	return scanPgRecord(row)
}

func (s *PostgresStore) SearchByName(ctx context.Context, fragment string) ([]*model.CompanyRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM companies WHERE name_lower LIKE '%' || lower($1) || '%' ORDER BY name_lower`,
		fragment,
	)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: search by name: "+err.Error())
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (s *PostgresStore) List(ctx context.Context) ([]*model.CompanyRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM companies ORDER BY name_lower`)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: list: "+err.Error())
	}
	defer rows.Close()
	return collectPgRecords(rows)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(errs.ErrStorage, "postgres: delete company %s: %v", id, err)
	}
	return nil
}

func scanPgRecord(row pgx.Row) (*model.CompanyRecord, error) {
	var recordJSON []byte
	err := row.Scan(&recordJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: scan record: "+err.Error())
	}

	var r model.CompanyRecord
	if err := json.Unmarshal(recordJSON, &r); err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: unmarshal record: "+err.Error())
	}
	return &r, nil
}

func collectPgRecords(rows pgx.Rows) ([]*model.CompanyRecord, error) {
	var records []*model.CompanyRecord
	for rows.Next() {
		r, err := scanPgRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "postgres: iterate records: "+err.Error())
	}
	return records, nil
}
