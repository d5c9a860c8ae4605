package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/queue"
	"github.com/jonathan/autoapply/internal/ratelimit"
	"github.com/jonathan/autoapply/internal/types"
)

// ErrConflict indicates a compare-and-set failed because the item's state
// changed concurrently.
var ErrConflict = errors.New("item state conflict")

type windowKey struct {
	profile uuid.UUID
	kind    ratelimit.WindowKind
	start   time.Time
}

// Memory is an in-memory Store. It backs tests and the no-database development
// mode; all operations are safe for concurrent use.
type Memory struct {
	mu         sync.Mutex
	profiles   map[uuid.UUID]*types.AutomationProfile
	candidates map[uuid.UUID]*types.JobCandidate
	items      map[uuid.UUID]*types.QueueItem
	attempts   []*types.SubmissionAttempt
	windows    map[windowKey]int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		profiles:   make(map[uuid.UUID]*types.AutomationProfile),
		candidates: make(map[uuid.UUID]*types.JobCandidate),
		items:      make(map[uuid.UUID]*types.QueueItem),
		windows:    make(map[windowKey]int),
	}
}

func copyProfile(p *types.AutomationProfile) *types.AutomationProfile {
	cp := *p
	return &cp
}

func copyItem(it *types.QueueItem) *types.QueueItem {
	cp := *it
	if it.Content != nil {
		content := *it.Content
		cp.Content = &content
	}
	if it.LeaseExpiresAt != nil {
		exp := *it.LeaseExpiresAt
		cp.LeaseExpiresAt = &exp
	}
	return &cp
}

// CreateProfile stores a new profile.
func (m *Memory) CreateProfile(_ context.Context, p *types.AutomationProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = copyProfile(p)
	return nil
}

// GetProfile returns a profile by ID.
func (m *Memory) GetProfile(_ context.Context, id uuid.UUID) (*types.AutomationProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyProfile(p), nil
}

// UpdateProfile replaces a profile's settings.
func (m *Memory) UpdateProfile(_ context.Context, p *types.AutomationProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	m.profiles[p.ID] = copyProfile(p)
	return nil
}

// SoftDeleteProfile marks a profile deleted; queue items keep referencing it.
func (m *Memory) SoftDeleteProfile(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now().UTC()
	p.DeletedAt = &now
	p.UpdatedAt = now
	return nil
}

// SetProfileStatus pauses or resumes a profile.
func (m *Memory) SetProfileStatus(_ context.Context, id uuid.UUID, status types.ProfileStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CreateCandidate stores an immutable job candidate.
func (m *Memory) CreateCandidate(_ context.Context, c *types.JobCandidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.candidates[c.ID] = &cp
	return nil
}

// GetCandidate returns a candidate by ID.
func (m *Memory) GetCandidate(_ context.Context, id uuid.UUID) (*types.JobCandidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

// CandidateSeen reports whether the profile already queued this external job.
func (m *Memory) CandidateSeen(_ context.Context, profileID uuid.UUID, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ProfileID != profileID {
			continue
		}
		if c, ok := m.candidates[it.CandidateID]; ok && c.ExternalID == externalID {
			return true, nil
		}
	}
	return false, nil
}

// CreateItem stores a new queue item.
func (m *Memory) CreateItem(_ context.Context, item *types.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = copyItem(item)
	return nil
}

// GetItem returns a queue item by ID.
func (m *Memory) GetItem(_ context.Context, id uuid.UUID) (*types.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyItem(it), nil
}

// ListItems returns items matching the filter, newest first.
func (m *Memory) ListItems(_ context.Context, filter ItemFilter) ([]*types.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.QueueItem
	for _, it := range m.items {
		if filter.ProfileID != nil && it.ProfileID != *filter.ProfileID {
			continue
		}
		if len(filter.States) > 0 && !containsState(filter.States, it.State) {
			continue
		}
		if !filter.From.IsZero() && it.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !it.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// UpdateItem replaces a stored item's mutable fields without a state change.
func (m *Memory) UpdateItem(_ context.Context, item *types.QueueItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.items[item.ID]
	if !ok {
		return ErrNotFound
	}
	if current.State != item.State {
		return ErrConflict
	}
	item.UpdatedAt = time.Now().UTC()
	m.items[item.ID] = copyItem(item)
	return nil
}

// TransitionItem validates the edge, compare-and-sets on the expected state and
// applies mutate atomically.
func (m *Memory) TransitionItem(_ context.Context, id uuid.UUID, from, to types.QueueState, mutate MutateFunc) (*types.QueueItem, error) {
	if err := queue.ValidateTransition(from, to); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if it.State != from {
		return nil, ErrConflict
	}
	it.State = to
	it.UpdatedAt = time.Now().UTC()
	if mutate != nil {
		mutate(it)
	}
	return copyItem(it), nil
}

// DueItems returns unleased, due items of active profiles ordered by priority
// desc, then FIFO by enqueue time.
func (m *Memory) DueItems(_ context.Context, now time.Time, limit int) ([]*types.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.QueueItem
	for _, it := range m.items {
		if !Leasable(it.State) || it.Leased(now) {
			continue
		}
		if it.State != types.StateQueued && it.NextEligibleAt.After(now) {
			continue
		}
		p, ok := m.profiles[it.ProfileID]
		if !ok || !p.Active() {
			continue
		}
		out = append(out, copyItem(it))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AcquireLease claims the item for a worker until the expiry time. It fails if
// the item is already leased or not in a leasable state.
func (m *Memory) AcquireLease(_ context.Context, id uuid.UUID, owner string, until time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return false, ErrNotFound
	}
	if !Leasable(it.State) || it.Leased(time.Now().UTC()) {
		return false, nil
	}
	it.LeaseOwner = owner
	exp := until
	it.LeaseExpiresAt = &exp
	return true, nil
}

// ReleaseLease clears the lease if the owner still holds it.
func (m *Memory) ReleaseLease(_ context.Context, id uuid.UUID, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if it.LeaseOwner == owner {
		it.LeaseOwner = ""
		it.LeaseExpiresAt = nil
	}
	return nil
}

// RecordAttempt appends to the submission log. Records are never mutated.
func (m *Memory) RecordAttempt(_ context.Context, a *types.SubmissionAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.attempts = append(m.attempts, &cp)
	return nil
}

// ListAttempts returns the attempts for one item in order.
func (m *Memory) ListAttempts(_ context.Context, itemID uuid.UUID) ([]*types.SubmissionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.SubmissionAttempt
	for _, a := range m.attempts {
		if a.QueueItemID == itemID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

// AttemptsInRange returns a profile's attempts with timestamps in [from, to).
func (m *Memory) AttemptsInRange(_ context.Context, profileID uuid.UUID, from, to time.Time) ([]*types.SubmissionAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.SubmissionAttempt
	for _, a := range m.attempts {
		it, ok := m.items[a.QueueItemID]
		if !ok || it.ProfileID != profileID {
			continue
		}
		if a.Timestamp.Before(from) || !a.Timestamp.Before(to) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// TryIncrementWindows atomically increments all three calendar counters iff
// each capped counter is strictly below its cap.
func (m *Memory) TryIncrementWindows(_ context.Context, profileID uuid.UUID, limits types.RateLimits, now time.Time) (ratelimit.Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make(map[ratelimit.WindowKind]windowKey, len(ratelimit.Kinds))
	counts := ratelimit.Counts{}
	for _, kind := range ratelimit.Kinds {
		key := windowKey{profile: profileID, kind: kind, start: ratelimit.WindowStart(kind, now)}
		keys[kind] = key
		switch kind {
		case ratelimit.WindowDay:
			counts.Day = m.windows[key]
		case ratelimit.WindowWeek:
			counts.Week = m.windows[key]
		case ratelimit.WindowMonth:
			counts.Month = m.windows[key]
		}
	}

	decision := ratelimit.Evaluate(counts, limits, now)
	if !decision.Allowed {
		return decision, nil
	}
	for _, kind := range ratelimit.Kinds {
		m.windows[keys[kind]]++
	}
	return decision, nil
}

func containsState(states []types.QueueState, s types.QueueState) bool {
	for _, state := range states {
		if state == s {
			return true
		}
	}
	return false
}
