package licensestore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "cnw_entitlement_licenses"

// validIdentifier matches safe PostgreSQL identifiers (letters, digits, underscores).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithTableName sets the PostgreSQL table name. Default: "cnw_entitlement_licenses".
func WithTableName(name string) PostgresOption {
	return func(s *PostgresStore) {
		s.tableName = name
	}
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresStore creates a new PostgreSQL-backed license store.
// It auto-creates the table on initialization.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{
		pool:      pool,
		tableName: defaultPostgresTable,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !validIdentifier.MatchString(s.tableName) {
		return nil, fmt.Errorf("invalid table name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", s.tableName)
	}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			workspace_id TEXT PRIMARY KEY,
			ciphertext   TEXT NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`, s.tableName)
	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *PostgresStore) Save(ctx context.Context, workspaceID, ciphertext string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (workspace_id, ciphertext, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (workspace_id) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	if _, err := s.pool.Exec(ctx, query, workspaceID, ciphertext, time.Now()); err != nil {
		return fmt.Errorf("save license: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, workspaceID string) (*Record, error) {
	query := fmt.Sprintf(`
		SELECT workspace_id, ciphertext, updated_at
		FROM %s WHERE workspace_id = $1
	`, s.tableName)

	var r Record
	err := s.pool.QueryRow(ctx, query, workspaceID).Scan(&r.WorkspaceID, &r.Ciphertext, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load license: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, workspaceID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE workspace_id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, query, workspaceID); err != nil {
		return fmt.Errorf("delete license: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	return nil // user manages the pgxpool.Pool lifecycle
}
