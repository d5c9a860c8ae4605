package db

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// CreateCandidate inserts an immutable job candidate.
func (db *DB) CreateCandidate(ctx context.Context, c *types.JobCandidate) error {
	requirements, err := json.Marshal(c.Requirements)
	if err != nil {
		return &store.StorageError{Op: "create candidate", Err: err}
	}
	skills, err := json.Marshal(c.Skills)
	if err != nil {
		return &store.StorageError{Op: "create candidate", Err: err}
	}
	var salary []byte
	if c.Salary != nil {
		if salary, err = json.Marshal(c.Salary); err != nil {
			return &store.StorageError{Op: "create candidate", Err: err}
		}
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO candidates (id, external_id, title, company, description, requirements, skills, location, salary, experience_level, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		c.ID, c.ExternalID, c.Title, c.Company, c.Description, requirements, skills, c.Location, salary, c.ExperienceLevel, c.CreatedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "create candidate", Err: err}
	}
	return nil
}

// GetCandidate fetches a candidate by ID.
func (db *DB) GetCandidate(ctx context.Context, id uuid.UUID) (*types.JobCandidate, error) {
	var c types.JobCandidate
	var requirements, skills, salary []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, external_id, title, company, description, requirements, skills, location, salary, experience_level, created_at
		 FROM candidates WHERE id = $1`, id,
	).Scan(&c.ID, &c.ExternalID, &c.Title, &c.Company, &c.Description, &requirements, &skills, &c.Location, &salary, &c.ExperienceLevel, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, &store.StorageError{Op: "get candidate", Err: err}
	}
	if len(requirements) > 0 {
		if err := json.Unmarshal(requirements, &c.Requirements); err != nil {
			return nil, &store.StorageError{Op: "decode candidate requirements", Err: err}
		}
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &c.Skills); err != nil {
			return nil, &store.StorageError{Op: "decode candidate skills", Err: err}
		}
	}
	if len(salary) > 0 {
		if err := json.Unmarshal(salary, &c.Salary); err != nil {
			return nil, &store.StorageError{Op: "decode candidate salary", Err: err}
		}
	}
	return &c, nil
}

// CandidateSeen reports whether the profile already queued this external job ID.
func (db *DB) CandidateSeen(ctx context.Context, profileID uuid.UUID, externalID string) (bool, error) {
	var seen bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM queue_items q
			JOIN candidates c ON c.id = q.candidate_id
			WHERE q.profile_id = $1 AND c.external_id = $2
		 )`, profileID, externalID,
	).Scan(&seen)
	if err != nil {
		return false, &store.StorageError{Op: "check candidate seen", Err: err}
	}
	return seen, nil
}
