package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// CreateProfile inserts a new automation profile.
func (db *DB) CreateProfile(ctx context.Context, p *types.AutomationProfile) error {
	rules, quality, limits, err := marshalProfileSettings(p)
	if err != nil {
		return &store.StorageError{Op: "create profile", Err: err}
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO profiles (id, owner_id, name, status, rules, quality, limits, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.OwnerID, p.Name, p.Status, rules, quality, limits, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "create profile", Err: err}
	}
	return nil
}

// GetProfile fetches a profile by ID, including soft-deleted ones.
func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (*types.AutomationProfile, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, status, rules, quality, limits, deleted_at, created_at, updated_at
		 FROM profiles WHERE id = $1`, id)
	return scanProfile(row)
}

// UpdateProfile replaces a profile's settings.
func (db *DB) UpdateProfile(ctx context.Context, p *types.AutomationProfile) error {
	rules, quality, limits, err := marshalProfileSettings(p)
	if err != nil {
		return &store.StorageError{Op: "update profile", Err: err}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE profiles SET name = $2, status = $3, rules = $4, quality = $5, limits = $6, updated_at = NOW()
		 WHERE id = $1`,
		p.ID, p.Name, p.Status, rules, quality, limits,
	)
	if err != nil {
		return &store.StorageError{Op: "update profile", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SoftDeleteProfile marks a profile deleted. It is never hard-removed while
// queue items reference it.
func (db *DB) SoftDeleteProfile(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE profiles SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return &store.StorageError{Op: "delete profile", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetProfileStatus pauses or resumes a profile.
func (db *DB) SetProfileStatus(ctx context.Context, id uuid.UUID, status types.ProfileStatus) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE profiles SET status = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id, status)
	if err != nil {
		return &store.StorageError{Op: "set profile status", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func marshalProfileSettings(p *types.AutomationProfile) (rules, quality, limits []byte, err error) {
	if rules, err = json.Marshal(p.Rules); err != nil {
		return nil, nil, nil, err
	}
	if quality, err = json.Marshal(p.Quality); err != nil {
		return nil, nil, nil, err
	}
	if limits, err = json.Marshal(p.Limits); err != nil {
		return nil, nil, nil, err
	}
	return rules, quality, limits, nil
}

func scanProfile(row pgx.Row) (*types.AutomationProfile, error) {
	var p types.AutomationProfile
	var rules, quality, limits []byte
	var deletedAt *time.Time
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Status, &rules, &quality, &limits, &deletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, &store.StorageError{Op: "get profile", Err: err}
	}
	p.DeletedAt = deletedAt
	if err := json.Unmarshal(rules, &p.Rules); err != nil {
		return nil, &store.StorageError{Op: "decode profile rules", Err: err}
	}
	if err := json.Unmarshal(quality, &p.Quality); err != nil {
		return nil, &store.StorageError{Op: "decode profile quality", Err: err}
	}
	if err := json.Unmarshal(limits, &p.Limits); err != nil {
		return nil, &store.StorageError{Op: "decode profile limits", Err: err}
	}
	return &p, nil
}
