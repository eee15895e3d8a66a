package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/AntoineDubuc/theodore/internal/errs"
	"github.com/AntoineDubuc/theodore/internal/model"
)

// SQLiteStore implements DocumentStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: open: "+err.Error())
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(errs.ErrStorage, "sqlite: exec %s: %v", pragma, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	name_lower TEXT NOT NULL,
	record     TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name_lower ON companies(name_lower);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	if err != nil {
		return eris.Wrap(errs.ErrStorage, "sqlite: migrate: "+err.Error())
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, record *model.CompanyRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return eris.Wrap(errs.ErrStorage, "sqlite: marshal record: "+err.Error())
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, name_lower, record, updated_at) VALUES (?, ?, lower(?), ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, name_lower = excluded.name_lower,
		 record = excluded.record, updated_at = excluded.updated_at`,
		record.ID, record.Name, record.Name, string(recordJSON), time.Now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(errs.ErrStorage, "sqlite: upsert company %s: %v", record.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.CompanyRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM companies WHERE id = ?`, id)
	return scanRecord(row)
}

func (s *SQLiteStore) GetByName(ctx context.Context, name string) (*model.CompanyRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT record FROM companies WHERE name_lower = lower(?) ORDER BY updated_at DESC LIMIT 1`,
		name,
	)
	return scanRecord(row)
}

func (s *SQLiteStore) SearchByName(ctx context.Context, fragment string) ([]*model.CompanyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM companies WHERE name_lower LIKE '%' || lower(?) || '%' ORDER BY name_lower`,
		fragment,
	)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: search by name: "+err.Error())
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*model.CompanyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM companies ORDER BY name_lower`)
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: list: "+err.Error())
	}
	defer rows.Close()
	return collectRecords(rows)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM companies WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(errs.ErrStorage, "sqlite: delete company %s: %v", id, err)
	}
	return nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.CompanyRecord, error) {
	var recordJSON string
	err := row.Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: scan record: "+err.Error())
	}

	var r model.CompanyRecord
	if err := json.Unmarshal([]byte(recordJSON), &r); err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: unmarshal record: "+err.Error())
	}
	return &r, nil
}

func collectRecords(rows *sql.Rows) ([]*model.CompanyRecord, error) {
	var records []*model.CompanyRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(errs.ErrStorage, "sqlite: iterate records: "+err.Error())
	}
	return records, nil
}
