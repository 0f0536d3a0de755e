package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect holds the driver name and the statements that differ between SQL
// backends.
type Dialect struct {
	Driver string
	schema string
	load   string
	save   string
	delete string
}

var SQLite = Dialect{
	Driver: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS kv_store (
    doc_key TEXT PRIMARY KEY,
    doc_value BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	load: `SELECT doc_value FROM kv_store WHERE doc_key = ?`,
	save: `
INSERT INTO kv_store (doc_key, doc_value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (doc_key) DO UPDATE SET doc_value = excluded.doc_value, updated_at = excluded.updated_at`,
	delete: `DELETE FROM kv_store WHERE doc_key = ?`,
}

var Postgres = Dialect{
	Driver: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS kv_store (
    doc_key TEXT PRIMARY KEY,
    doc_value BYTEA NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT NOW()
);`,
	load: `SELECT doc_value FROM kv_store WHERE doc_key = $1`,
	save: `
INSERT INTO kv_store (doc_key, doc_value, updated_at) VALUES ($1, $2, NOW())
ON CONFLICT (doc_key) DO UPDATE SET doc_value = EXCLUDED.doc_value, updated_at = EXCLUDED.updated_at`,
	delete: `DELETE FROM kv_store WHERE doc_key = $1`,
}

// SQLStore keeps documents in a kv_store table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// OpenSQL connects, verifies the connection and creates the schema.
func OpenSQL(ctx context.Context, d Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	if d.Driver == SQLite.Driver {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	s, err := NewSQLStore(ctx, db, d)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an open database. Safe to call on an existing schema.
func NewSQLStore(ctx context.Context, db *sql.DB, d Dialect) (*SQLStore, error) {
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]byte, error) {
	var b []byte
	err := s.db.QueryRowContext(ctx, s.dialect.load, key).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return b, nil
}

func (s *SQLStore) Save(ctx context.Context, key string, data []byte) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.save, key, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.delete, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
