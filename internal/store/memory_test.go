package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoapply/internal/types"
)

func newProfile(t *testing.T, m *Memory) *types.AutomationProfile {
	t.Helper()
	p := &types.AutomationProfile{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		Name:      "test profile",
		Status:    types.ProfileActive,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.CreateProfile(context.Background(), p))
	return p
}

func newItem(t *testing.T, m *Memory, profileID uuid.UUID, state types.QueueState, priority int) *types.QueueItem {
	t.Helper()
	it := &types.QueueItem{
		ID:         uuid.New(),
		ProfileID:  profileID,
		State:      state,
		Priority:   priority,
		MaxRetries: 3,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, m.CreateItem(context.Background(), it))
	return it
}

func TestMemory_TransitionItem_ValidEdge(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateQueued, 50)

	updated, err := m.TransitionItem(ctx, it.ID, types.StateQueued, types.StateGenerating, nil)

	require.NoError(t, err)
	assert.Equal(t, types.StateGenerating, updated.State)
}

func TestMemory_TransitionItem_InvalidEdgeRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateQueued, 50)

	_, err := m.TransitionItem(ctx, it.ID, types.StateQueued, types.StateSubmitted, nil)

	assert.Error(t, err)

	got, err := m.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateQueued, got.State, "state must not advance on invalid transition")
}

func TestMemory_TransitionItem_StaleStateConflicts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateQueued, 50)

	_, err := m.TransitionItem(ctx, it.ID, types.StateQueued, types.StateGenerating, nil)
	require.NoError(t, err)

	_, err = m.TransitionItem(ctx, it.ID, types.StateQueued, types.StateGenerating, nil)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemory_TransitionItem_MutateAppliedAtomically(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateSubmitting, 50)

	updated, err := m.TransitionItem(ctx, it.ID, types.StateSubmitting, types.StateFailedTransient, func(q *types.QueueItem) {
		q.RetryCount++
		q.StateReason = "timeout"
	})

	require.NoError(t, err)
	assert.Equal(t, 1, updated.RetryCount)
	assert.Equal(t, "timeout", updated.StateReason)
}

func TestMemory_DueItems_PriorityThenFIFO(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)

	low := newItem(t, m, p.ID, types.StateReadyToSubmit, 50)
	high := newItem(t, m, p.ID, types.StateReadyToSubmit, 80)

	due, err := m.DueItems(ctx, time.Now().UTC(), 10)

	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, high.ID, due[0].ID)
	assert.Equal(t, low.ID, due[1].ID)
}

func TestMemory_DueItems_SkipsFutureRetries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)

	it := newItem(t, m, p.ID, types.StateRetrying, 50)
	it.NextEligibleAt = time.Now().UTC().Add(time.Hour)
	require.NoError(t, m.UpdateItem(ctx, it))

	due, err := m.DueItems(ctx, time.Now().UTC(), 10)

	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemory_DueItems_SkipsPausedProfiles(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	newItem(t, m, p.ID, types.StateQueued, 50)

	require.NoError(t, m.SetProfileStatus(ctx, p.ID, types.ProfilePaused))

	due, err := m.DueItems(ctx, time.Now().UTC(), 10)

	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestMemory_Lease_SingleWriter(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateReadyToSubmit, 50)

	until := time.Now().UTC().Add(time.Minute)
	ok, err := m.AcquireLease(ctx, it.ID, "worker-1", until)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.AcquireLease(ctx, it.ID, "worker-2", until)
	require.NoError(t, err)
	assert.False(t, ok, "second worker must not claim a leased item")
}

func TestMemory_Lease_ExpiredLeaseReclaimable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateReadyToSubmit, 50)

	ok, err := m.AcquireLease(ctx, it.ID, "crashed-worker", time.Now().UTC().Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.AcquireLease(ctx, it.ID, "worker-2", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok, "expired lease must be reclaimable")
}

func TestMemory_Lease_ReleaseRequiresOwner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateReadyToSubmit, 50)

	until := time.Now().UTC().Add(time.Minute)
	_, err := m.AcquireLease(ctx, it.ID, "worker-1", until)
	require.NoError(t, err)

	require.NoError(t, m.ReleaseLease(ctx, it.ID, "worker-2"))
	got, err := m.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.True(t, got.Leased(time.Now().UTC()), "release by a non-owner is a no-op")

	require.NoError(t, m.ReleaseLease(ctx, it.ID, "worker-1"))
	got, err = m.GetItem(ctx, it.ID)
	require.NoError(t, err)
	assert.False(t, got.Leased(time.Now().UTC()))
}

func TestMemory_TryIncrementWindows_CapEnforced(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	profileID := uuid.New()
	limits := types.RateLimits{DailyLimit: 2}
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		d, err := m.TryIncrementWindows(ctx, profileID, limits, now)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := m.TryIncrementWindows(ctx, profileID, limits, now)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), d.NextEligible)
}

func TestMemory_TryIncrementWindows_ResetsAtBoundary(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	profileID := uuid.New()
	limits := types.RateLimits{DailyLimit: 1}
	day1 := time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC)

	d, err := m.TryIncrementWindows(ctx, profileID, limits, day1)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = m.TryIncrementWindows(ctx, profileID, limits, day1)
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = m.TryIncrementWindows(ctx, profileID, limits, day2)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "counter resets at the UTC day boundary")
}

func TestMemory_CandidateSeen(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)

	c := &types.JobCandidate{ID: uuid.New(), ExternalID: "board-123", Title: "Go Developer", Company: "Acme"}
	require.NoError(t, m.CreateCandidate(ctx, c))
	it := newItem(t, m, p.ID, types.StateQueued, 50)
	it.CandidateID = c.ID
	require.NoError(t, m.UpdateItem(ctx, it))

	seen, err := m.CandidateSeen(ctx, p.ID, "board-123")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = m.CandidateSeen(ctx, p.ID, "board-999")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemory_SoftDeleteProfileKeepsItems(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	p := newProfile(t, m)
	it := newItem(t, m, p.ID, types.StateQueued, 50)

	require.NoError(t, m.SoftDeleteProfile(ctx, p.ID))

	got, err := m.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.DeletedAt)

	_, err = m.GetItem(ctx, it.ID)
	assert.NoError(t, err, "queue items survive profile soft-deletion")
}
