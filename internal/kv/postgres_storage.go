package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Storage = (*PostgresStorage)(nil)

const createKVTableQuery = `CREATE TABLE IF NOT EXISTS kv_store (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (namespace, key)
);`

type PostgresStorage struct {
	db *pgxpool.Pool
}

func NewPostgresStorage(db *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{
		db: db,
	}
}

func (s *PostgresStorage) Pool() *pgxpool.Pool {
	return s.db
}

// Initialize creates the kv_store table if it's missing.
func (s *PostgresStorage) Initialize(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createKVTableQuery); err != nil {
		return fmt.Errorf("create kv_store table: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		ctx,
		`SELECT value FROM kv_store WHERE namespace = $1 AND key = $2;`,
		namespace, key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("select value: %w", err)
	}
	return value, nil
}

func (s *PostgresStorage) Put(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.Exec(
		ctx,
		`INSERT INTO kv_store (namespace, key, value, updated_at) VALUES ($1, $2, $3, now())
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now();`,
		namespace, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert value: %w", err)
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	s.db.Close()
	return nil
}
