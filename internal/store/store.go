// Package store defines the persistence contract for the application pipeline
// and ships an in-memory implementation. The PostgreSQL implementation lives in
// internal/db.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/ratelimit"
	"github.com/jonathan/autoapply/internal/types"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// StorageError wraps a persistence failure. Queue item state is never
// considered advanced until the write succeeds, so callers propagate these.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ItemFilter selects queue items for listing.
type ItemFilter struct {
	ProfileID *uuid.UUID
	States    []types.QueueState
	From      time.Time
	To        time.Time
	Limit     int
}

// MutateFunc adjusts item fields (retry count, content, next-eligible time,
// reason) inside the same atomic write as a state transition.
type MutateFunc func(*types.QueueItem)

// Store is the transactional persistence boundary for the pipeline.
type Store interface {
	// Profiles
	CreateProfile(ctx context.Context, p *types.AutomationProfile) error
	GetProfile(ctx context.Context, id uuid.UUID) (*types.AutomationProfile, error)
	UpdateProfile(ctx context.Context, p *types.AutomationProfile) error
	SoftDeleteProfile(ctx context.Context, id uuid.UUID) error
	SetProfileStatus(ctx context.Context, id uuid.UUID, status types.ProfileStatus) error

	// Candidates
	CreateCandidate(ctx context.Context, c *types.JobCandidate) error
	GetCandidate(ctx context.Context, id uuid.UUID) (*types.JobCandidate, error)
	// CandidateSeen reports whether the profile already has a queue item for
	// this external job ID (duplicate suppression at ingest).
	CandidateSeen(ctx context.Context, profileID uuid.UUID, externalID string) (bool, error)

	// Queue items. TransitionItem validates the edge against the state graph,
	// compare-and-sets on the expected current state, and applies mutate in
	// the same write; the state change is effective only once persisted.
	CreateItem(ctx context.Context, item *types.QueueItem) error
	GetItem(ctx context.Context, id uuid.UUID) (*types.QueueItem, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*types.QueueItem, error)
	UpdateItem(ctx context.Context, item *types.QueueItem) error
	TransitionItem(ctx context.Context, id uuid.UUID, from, to types.QueueState, mutate MutateFunc) (*types.QueueItem, error)

	// Worker pickup. DueItems returns unleased, due items of active profiles
	// ordered by priority desc then enqueue time. Leases guarantee
	// single-writer semantics; an expired lease makes the item eligible again.
	DueItems(ctx context.Context, now time.Time, limit int) ([]*types.QueueItem, error)
	AcquireLease(ctx context.Context, id uuid.UUID, owner string, until time.Time) (bool, error)
	ReleaseLease(ctx context.Context, id uuid.UUID, owner string) error

	// Submission log (append-only).
	RecordAttempt(ctx context.Context, a *types.SubmissionAttempt) error
	ListAttempts(ctx context.Context, itemID uuid.UUID) ([]*types.SubmissionAttempt, error)
	AttemptsInRange(ctx context.Context, profileID uuid.UUID, from, to time.Time) ([]*types.SubmissionAttempt, error)

	// Rate-limit windows.
	ratelimit.WindowStore
}

// leasableStates are the states a worker may claim an item in.
var leasableStates = map[types.QueueState]bool{
	types.StateQueued:        true,
	types.StateGenerating:    true,
	types.StateReadyToSubmit: true,
	types.StateRetrying:      true,
}

// Leasable reports whether a worker may acquire a lease on an item in the
// given state.
func Leasable(state types.QueueState) bool {
	return leasableStates[state]
}
