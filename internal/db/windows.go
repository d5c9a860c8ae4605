package db

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/ratelimit"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// TryIncrementWindows atomically increments the day/week/month counters for a
// profile iff every capped counter is strictly below its cap. The check and the
// increments run in one transaction with the counter rows locked, so concurrent
// workers cannot exceed the caps.
func (db *DB) TryIncrementWindows(ctx context.Context, profileID uuid.UUID, limits types.RateLimits, now time.Time) (ratelimit.Decision, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return ratelimit.Decision{}, &store.StorageError{Op: "rate limit check", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	starts := make(map[ratelimit.WindowKind]time.Time, len(ratelimit.Kinds))
	counts := ratelimit.Counts{}
	for _, kind := range ratelimit.Kinds {
		start := ratelimit.WindowStart(kind, now)
		starts[kind] = start

		// Ensure the row exists, then lock it for the compare-and-increment.
		if _, err := tx.Exec(ctx,
			`INSERT INTO rate_limit_windows (profile_id, kind, window_start, count)
			 VALUES ($1, $2, $3, 0)
			 ON CONFLICT (profile_id, kind, window_start) DO NOTHING`,
			profileID, kind, start,
		); err != nil {
			return ratelimit.Decision{}, &store.StorageError{Op: "rate limit check", Err: err}
		}
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT count FROM rate_limit_windows
			 WHERE profile_id = $1 AND kind = $2 AND window_start = $3 FOR UPDATE`,
			profileID, kind, start,
		).Scan(&count); err != nil {
			return ratelimit.Decision{}, &store.StorageError{Op: "rate limit check", Err: err}
		}
		switch kind {
		case ratelimit.WindowDay:
			counts.Day = count
		case ratelimit.WindowWeek:
			counts.Week = count
		case ratelimit.WindowMonth:
			counts.Month = count
		}
	}

	decision := ratelimit.Evaluate(counts, limits, now)
	if !decision.Allowed {
		// Nothing incremented; all-or-nothing.
		return decision, nil
	}

	for _, kind := range ratelimit.Kinds {
		if _, err := tx.Exec(ctx,
			`UPDATE rate_limit_windows SET count = count + 1
			 WHERE profile_id = $1 AND kind = $2 AND window_start = $3`,
			profileID, kind, starts[kind],
		); err != nil {
			return ratelimit.Decision{}, &store.StorageError{Op: "rate limit increment", Err: err}
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return ratelimit.Decision{}, &store.StorageError{Op: "rate limit increment", Err: err}
	}
	return decision, nil
}
