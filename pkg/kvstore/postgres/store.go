// Package postgres provides PostgreSQL storage for kvstore values.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/txn2/ai-notebook/pkg/kvstore"
)

// Store implements kvstore.Store using the kv_store table.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL kvstore. The kv_store table is created by migrations.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the value for key, or nil, nil when absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, nil
}

// Set upserts value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	query := `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Remove deletes key.
func (s *Store) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = $1`, key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

// Mode returns kvstore.ModePostgres.
func (*Store) Mode() string { return kvstore.ModePostgres }

var _ kvstore.Store = (*Store)(nil)
