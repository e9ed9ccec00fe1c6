package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const postgresStateSchema = `
	CREATE TABLE IF NOT EXISTS interaction_state (
		state_key  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

const sqliteStateSchema = `
	CREATE TABLE IF NOT EXISTS interaction_state (
		state_key  TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)
`

// StateRepository stores serialized interaction snapshots, one row per key.
// It satisfies storage.Store.
type StateRepository struct {
	db *DB
}

// NewStateRepository creates a new interaction state repository
func NewStateRepository(db *DB) *StateRepository {
	return &StateRepository{db: db}
}

// EnsureSchema creates the interaction_state table if it does not exist
func (r *StateRepository) EnsureSchema(ctx context.Context) error {
	schema := postgresStateSchema
	if r.db.Dialect() == DialectSQLite {
		schema = sqliteStateSchema
	}
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create interaction_state table: %w", err)
	}
	return nil
}

// Get retrieves the payload stored under key
func (r *StateRepository) Get(ctx context.Context, key string) (string, bool, error) {
	query := r.db.rebind(`
		SELECT payload
		FROM interaction_state
		WHERE state_key = $1
	`)

	var payload string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get interaction state: %w", err)
	}
	return payload, true, nil
}

// Set creates or replaces the payload stored under key
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	query := r.db.rebind(`
		INSERT INTO interaction_state (state_key, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (state_key) DO UPDATE
		SET payload = EXCLUDED.payload,
		    updated_at = EXCLUDED.updated_at
	`)

	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx, query, key, value, now, now); err != nil {
		return fmt.Errorf("failed to upsert interaction state: %w", err)
	}
	return nil
}

// Delete removes the row for key
func (r *StateRepository) Delete(ctx context.Context, key string) error {
	query := r.db.rebind(`DELETE FROM interaction_state WHERE state_key = $1`)
	if _, err := r.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete interaction state: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (r *StateRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying connection
func (r *StateRepository) Close() error {
	return r.db.Close()
}
