package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// QueueState is the lifecycle state of a queue item. Transitions are validated
// by the queue package; states are never mutated outside a transition.
type QueueState string

const (
	StateQueued          QueueState = "queued"
	StateGenerating      QueueState = "generating"
	StatePendingReview   QueueState = "pending_review"
	StateReadyToSubmit   QueueState = "ready_to_submit"
	StateSubmitting      QueueState = "submitting"
	StateRetrying        QueueState = "retrying"
	StateSubmitted       QueueState = "submitted"
	StateRejected        QueueState = "rejected"
	StateFailedTransient QueueState = "failed_transient"
	StateFailedPermanent QueueState = "failed_permanent"
)

// Terminal reports whether the state has no outgoing transitions.
func (s QueueState) Terminal() bool {
	switch s {
	case StateSubmitted, StateRejected, StateFailedPermanent:
		return true
	}
	return false
}

// ContentScores are the three quality metrics returned by the content generator,
// each in [0,1].
type ContentScores struct {
	Quality          float64 `json:"quality"`
	Personalization  float64 `json:"personalization"`
	AtsCompatibility float64 `json:"ats_compatibility"`
}

// GeneratedContent is the snapshot of generator output attached to a queue item.
type GeneratedContent struct {
	CoverLetter   string        `json:"cover_letter"`
	ResumeSummary string        `json:"resume_summary,omitempty"`
	Scores        ContentScores `json:"scores"`
	GeneratedAt   time.Time     `json:"generated_at"`
}

// QueueItem is one application in the queue. It is owned exclusively by its
// profile; at most one worker holds its lease at any time.
type QueueItem struct {
	ID          uuid.UUID         `json:"id"`
	ProfileID   uuid.UUID         `json:"profile_id"`
	CandidateID uuid.UUID         `json:"candidate_id"`
	State       QueueState        `json:"state"`
	Content     *GeneratedContent `json:"content,omitempty"`
	ReviewNotes string            `json:"review_notes,omitempty"`
	StateReason string            `json:"state_reason,omitempty"`
	RetryCount  int               `json:"retry_count"`
	MaxRetries  int               `json:"max_retries"`
	// NextEligibleAt is the earliest time a submission attempt may start.
	NextEligibleAt time.Time  `json:"next_eligible_at"`
	Priority       int        `json:"priority"`
	LeaseOwner     string     `json:"-"`
	LeaseExpiresAt *time.Time `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Leased reports whether the item holds an unexpired lease at the given time.
func (q *QueueItem) Leased(now time.Time) bool {
	return q.LeaseOwner != "" && q.LeaseExpiresAt != nil && q.LeaseExpiresAt.After(now)
}

// ReviewRequest carries a human review decision for a pending_review item.
type ReviewRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=2000"`
}

// Validate validates the ReviewRequest using the validator.
func (r *ReviewRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
