package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

const attemptColumns = `id, queue_item_id, attempt_number, ts, outcome, http_status, error_detail,
	duration_ms, captcha_encountered, human_intervention_required`

// RecordAttempt appends to the submission log. The log is append-only; rows
// are never updated or deleted.
func (db *DB) RecordAttempt(ctx context.Context, a *types.SubmissionAttempt) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO submission_attempts (id, queue_item_id, attempt_number, ts, outcome, http_status,
			error_detail, duration_ms, captcha_encountered, human_intervention_required)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.QueueItemID, a.AttemptNumber, a.Timestamp, a.Outcome, a.HTTPStatus,
		a.ErrorDetail, a.DurationMs, a.CaptchaEncountered, a.HumanInterventionRequired,
	)
	if err != nil {
		return &store.StorageError{Op: "record attempt", Err: err}
	}
	return nil
}

// ListAttempts returns the attempts for one item in attempt order.
func (db *DB) ListAttempts(ctx context.Context, itemID uuid.UUID) ([]*types.SubmissionAttempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM submission_attempts WHERE queue_item_id = $1 ORDER BY attempt_number`,
		itemID,
	)
	if err != nil {
		return nil, &store.StorageError{Op: "list attempts", Err: err}
	}
	defer rows.Close()
	return scanAttempts(rows)
}

// AttemptsInRange returns a profile's attempts with timestamps in [from, to).
func (db *DB) AttemptsInRange(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]*types.SubmissionAttempt, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT a.id, a.queue_item_id, a.attempt_number, a.ts, a.outcome, a.http_status, a.error_detail,
			a.duration_ms, a.captcha_encountered, a.human_intervention_required
		 FROM submission_attempts a
		 JOIN queue_items q ON q.id = a.queue_item_id
		 WHERE q.profile_id = $1 AND a.ts >= $2 AND a.ts < $3
		 ORDER BY a.ts`,
		profileID, from, to,
	)
	if err != nil {
		return nil, &store.StorageError{Op: "attempts in range", Err: err}
	}
	defer rows.Close()
	return scanAttempts(rows)
}

func scanAttempts(rows pgx.Rows) ([]*types.SubmissionAttempt, error) {
	var attempts []*types.SubmissionAttempt
	for rows.Next() {
		var a types.SubmissionAttempt
		err := rows.Scan(&a.ID, &a.QueueItemID, &a.AttemptNumber, &a.Timestamp, &a.Outcome,
			&a.HTTPStatus, &a.ErrorDetail, &a.DurationMs, &a.CaptchaEncountered, &a.HumanInterventionRequired)
		if err != nil {
			return nil, &store.StorageError{Op: "scan attempt", Err: err}
		}
		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StorageError{Op: "iterate attempts", Err: err}
	}
	return attempts, nil
}
