package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS local_store (
	namespace  TEXT        NOT NULL,
	scope      TEXT        NOT NULL,
	name       TEXT        NOT NULL,
	value      TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (namespace, scope, name)
)`

// PostgresStore is a PostgreSQL-backed Store.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

// NewPostgresStore creates the local_store table if needed and returns a store.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("create local_store table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Namespace returns a view of the store scoped to ns.
func (s *PostgresStore) Namespace(ns string) *PostgresStore {
	return &PostgresStore{pool: s.pool, namespace: ns}
}

func (s *PostgresStore) Get(ctx context.Context, key Key) (string, bool, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM local_store
		 WHERE namespace = $1 AND scope = $2 AND name = $3`,
		s.namespace,
		key.Scope.String(),
		key.Name,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key.Name, err)
	}
	return value, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, key Key, value string) error {
	if key.Name == "" {
		return fmt.Errorf("key name is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO local_store (namespace, scope, name, value, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (namespace, scope, name)
		 DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		s.namespace,
		key.Scope.String(),
		key.Name,
		value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key.Name, err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, scope Scope) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM local_store WHERE namespace = $1 AND scope = $2`,
		s.namespace,
		scope.String(),
	)
	if err != nil {
		return fmt.Errorf("clear %s scope: %w", scope, err)
	}
	return nil
}
