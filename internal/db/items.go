package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/autoapply/internal/queue"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

const itemColumns = `id, profile_id, candidate_id, state, content, review_notes, state_reason,
	retry_count, max_retries, next_eligible_at, priority, lease_owner, lease_expires_at, created_at, updated_at`

// CreateItem inserts a new queue item.
func (db *DB) CreateItem(ctx context.Context, item *types.QueueItem) error {
	content, err := marshalContent(item.Content)
	if err != nil {
		return &store.StorageError{Op: "create item", Err: err}
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO queue_items (id, profile_id, candidate_id, state, content, review_notes, state_reason,
			retry_count, max_retries, next_eligible_at, priority, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		item.ID, item.ProfileID, item.CandidateID, item.State, content, item.ReviewNotes, item.StateReason,
		item.RetryCount, item.MaxRetries, item.NextEligibleAt, item.Priority, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return &store.StorageError{Op: "create item", Err: err}
	}
	return nil
}

// GetItem fetches a queue item by ID.
func (db *DB) GetItem(ctx context.Context, id uuid.UUID) (*types.QueueItem, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = $1`, id)
	return scanItem(row)
}

// ListItems returns items matching the filter, newest first.
func (db *DB) ListItems(ctx context.Context, filter store.ItemFilter) ([]*types.QueueItem, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE 1=1`
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.ProfileID != nil {
		query += ` AND profile_id = ` + arg(*filter.ProfileID)
	}
	if len(filter.States) > 0 {
		states := make([]string, len(filter.States))
		for i, s := range filter.States {
			states[i] = string(s)
		}
		query += ` AND state = ANY(` + arg(states) + `)`
	}
	if !filter.From.IsZero() {
		query += ` AND created_at >= ` + arg(filter.From)
	}
	if !filter.To.IsZero() {
		query += ` AND created_at < ` + arg(filter.To)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &store.StorageError{Op: "list items", Err: err}
	}
	defer rows.Close()
	return scanItems(rows)
}

// UpdateItem persists mutable item fields without a state change.
func (db *DB) UpdateItem(ctx context.Context, item *types.QueueItem) error {
	content, err := marshalContent(item.Content)
	if err != nil {
		return &store.StorageError{Op: "update item", Err: err}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE queue_items SET content = $2, review_notes = $3, state_reason = $4, retry_count = $5,
			next_eligible_at = $6, priority = $7, updated_at = NOW()
		 WHERE id = $1 AND state = $8`,
		item.ID, content, item.ReviewNotes, item.StateReason, item.RetryCount,
		item.NextEligibleAt, item.Priority, item.State,
	)
	if err != nil {
		return &store.StorageError{Op: "update item", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return store.ErrConflict
	}
	return nil
}

// TransitionItem validates the edge against the state graph, compare-and-sets
// on the expected state and applies mutate inside one transaction. The state
// change is effective only once the transaction commits.
func (db *DB) TransitionItem(ctx context.Context, id uuid.UUID, from, to types.QueueState, mutate store.MutateFunc) (*types.QueueItem, error) {
	if err := queue.ValidateTransition(from, to); err != nil {
		return nil, err
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, &store.StorageError{Op: "transition item", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	row := tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = $1 FOR UPDATE`, id)
	item, err := scanItem(row)
	if err != nil {
		return nil, err
	}
	if item.State != from {
		return nil, store.ErrConflict
	}

	item.State = to
	item.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(item)
	}
	content, err := marshalContent(item.Content)
	if err != nil {
		return nil, &store.StorageError{Op: "transition item", Err: err}
	}
	_, err = tx.Exec(ctx,
		`UPDATE queue_items SET state = $2, content = $3, review_notes = $4, state_reason = $5,
			retry_count = $6, next_eligible_at = $7, updated_at = $8
		 WHERE id = $1`,
		item.ID, item.State, content, item.ReviewNotes, item.StateReason,
		item.RetryCount, item.NextEligibleAt, item.UpdatedAt,
	)
	if err != nil {
		return nil, &store.StorageError{Op: "transition item", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, &store.StorageError{Op: "transition item", Err: err}
	}
	return item, nil
}

// DueItems returns unleased, due items of active profiles ordered by priority
// desc, then FIFO by enqueue time.
func (db *DB) DueItems(ctx context.Context, now time.Time, limit int) ([]*types.QueueItem, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+qualifiedItemColumns("q")+`
		 FROM queue_items q
		 JOIN profiles p ON p.id = q.profile_id
		 WHERE p.status = 'active' AND p.deleted_at IS NULL
		   AND q.state = ANY($1)
		   AND (q.state = 'queued' OR q.next_eligible_at <= $2)
		   AND (q.lease_owner = '' OR q.lease_expires_at IS NULL OR q.lease_expires_at <= $2)
		 ORDER BY q.priority DESC, q.created_at ASC
		 LIMIT $3`,
		[]string{
			string(types.StateQueued), string(types.StateGenerating),
			string(types.StateReadyToSubmit), string(types.StateRetrying),
		}, now, limit,
	)
	if err != nil {
		return nil, &store.StorageError{Op: "due items", Err: err}
	}
	defer rows.Close()
	return scanItems(rows)
}

// AcquireLease claims the item for a worker until the expiry time. The update
// only succeeds while the item is unleased (or its lease expired) and in a
// leasable state, giving single-writer semantics across the pool.
func (db *DB) AcquireLease(ctx context.Context, id uuid.UUID, owner string, until time.Time) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE queue_items SET lease_owner = $2, lease_expires_at = $3, updated_at = NOW()
		 WHERE id = $1
		   AND state = ANY($4)
		   AND (lease_owner = '' OR lease_expires_at IS NULL OR lease_expires_at <= NOW())`,
		id, owner, until,
		[]string{
			string(types.StateQueued), string(types.StateGenerating),
			string(types.StateReadyToSubmit), string(types.StateRetrying),
		},
	)
	if err != nil {
		return false, &store.StorageError{Op: "acquire lease", Err: err}
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseLease clears the lease if the owner still holds it.
func (db *DB) ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE queue_items SET lease_owner = '', lease_expires_at = NULL, updated_at = NOW()
		 WHERE id = $1 AND lease_owner = $2`,
		id, owner,
	)
	if err != nil {
		return &store.StorageError{Op: "release lease", Err: err}
	}
	return nil
}

func marshalContent(content *types.GeneratedContent) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	return json.Marshal(content)
}

func qualifiedItemColumns(alias string) string {
	return alias + `.id, ` + alias + `.profile_id, ` + alias + `.candidate_id, ` + alias + `.state, ` +
		alias + `.content, ` + alias + `.review_notes, ` + alias + `.state_reason, ` + alias + `.retry_count, ` +
		alias + `.max_retries, ` + alias + `.next_eligible_at, ` + alias + `.priority, ` + alias + `.lease_owner, ` +
		alias + `.lease_expires_at, ` + alias + `.created_at, ` + alias + `.updated_at`
}

func scanItem(row pgx.Row) (*types.QueueItem, error) {
	var item types.QueueItem
	var content []byte
	var leaseExpires *time.Time
	err := row.Scan(&item.ID, &item.ProfileID, &item.CandidateID, &item.State, &content,
		&item.ReviewNotes, &item.StateReason, &item.RetryCount, &item.MaxRetries,
		&item.NextEligibleAt, &item.Priority, &item.LeaseOwner, &leaseExpires,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, &store.StorageError{Op: "scan item", Err: err}
	}
	item.LeaseExpiresAt = leaseExpires
	if len(content) > 0 {
		if err := json.Unmarshal(content, &item.Content); err != nil {
			return nil, &store.StorageError{Op: "decode item content", Err: err}
		}
	}
	return &item, nil
}

func scanItems(rows pgx.Rows) ([]*types.QueueItem, error) {
	var items []*types.QueueItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.StorageError{Op: "iterate items", Err: err}
	}
	return items, nil
}
