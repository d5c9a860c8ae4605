// Package db provides PostgreSQL persistence for the application pipeline.
// It implements the store.Store contract.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	rules JSONB NOT NULL DEFAULT '{}',
	quality JSONB NOT NULL DEFAULT '{}',
	limits JSONB NOT NULL DEFAULT '{}',
	deleted_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS candidates (
	id UUID PRIMARY KEY,
	external_id TEXT NOT NULL,
	title TEXT NOT NULL,
	company TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	requirements JSONB,
	skills JSONB,
	location TEXT NOT NULL DEFAULT '',
	salary JSONB,
	experience_level TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS queue_items (
	id UUID PRIMARY KEY,
	profile_id UUID NOT NULL REFERENCES profiles(id),
	candidate_id UUID NOT NULL REFERENCES candidates(id),
	state TEXT NOT NULL,
	content JSONB,
	review_notes TEXT NOT NULL DEFAULT '',
	state_reason TEXT NOT NULL DEFAULT '',
	retry_count INT NOT NULL DEFAULT 0,
	max_retries INT NOT NULL DEFAULT 3,
	next_eligible_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	priority INT NOT NULL DEFAULT 50,
	lease_owner TEXT NOT NULL DEFAULT '',
	lease_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS queue_items_pickup_idx ON queue_items (state, priority DESC, created_at);
CREATE INDEX IF NOT EXISTS queue_items_profile_idx ON queue_items (profile_id);

CREATE TABLE IF NOT EXISTS submission_attempts (
	id UUID PRIMARY KEY,
	queue_item_id UUID NOT NULL REFERENCES queue_items(id),
	attempt_number INT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	outcome TEXT NOT NULL,
	http_status INT NOT NULL DEFAULT 0,
	error_detail TEXT NOT NULL DEFAULT '',
	duration_ms BIGINT NOT NULL DEFAULT 0,
	captcha_encountered BOOLEAN NOT NULL DEFAULT FALSE,
	human_intervention_required BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS submission_attempts_item_idx ON submission_attempts (queue_item_id, attempt_number);

CREATE TABLE IF NOT EXISTS rate_limit_windows (
	profile_id UUID NOT NULL,
	kind TEXT NOT NULL,
	window_start TIMESTAMPTZ NOT NULL,
	count INT NOT NULL DEFAULT 0,
	PRIMARY KEY (profile_id, kind, window_start)
);
`

// Migrate creates the schema if it does not exist.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
