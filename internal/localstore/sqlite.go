package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS local_store (
	namespace  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (namespace, scope, name)
)`

// SQLiteStore is a file-backed Store for single-node deployments.
type SQLiteStore struct {
	db        *sql.DB
	namespace string
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent persists.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create local_store table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Namespace returns a view of the store scoped to ns.
func (s *SQLiteStore) Namespace(ns string) *SQLiteStore {
	return &SQLiteStore{db: s.db, namespace: ns}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM local_store WHERE namespace = ? AND scope = ? AND name = ?`,
		s.namespace, key.Scope.String(), key.Name,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key.Name, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key Key, value string) error {
	if key.Name == "" {
		return fmt.Errorf("key name is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO local_store (namespace, scope, name, value, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (namespace, scope, name)
		 DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		s.namespace, key.Scope.String(), key.Name, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key.Name, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, scope Scope) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM local_store WHERE namespace = ? AND scope = ?`,
		s.namespace, scope.String(),
	)
	if err != nil {
		return fmt.Errorf("clear %s scope: %w", scope, err)
	}
	return nil
}
