package types

import (
	"time"

	"github.com/google/uuid"
)

// AttemptOutcome classifies the result of a single submission attempt.
type AttemptOutcome string

const (
	OutcomeSuccess          AttemptOutcome = "success"
	OutcomeTransientFailure AttemptOutcome = "transient_failure"
	OutcomePermanentFailure AttemptOutcome = "permanent_failure"
)

// SubmissionAttempt is one entry in the append-only submission log.
// Records are never mutated after being written.
type SubmissionAttempt struct {
	ID                        uuid.UUID      `json:"id"`
	QueueItemID               uuid.UUID      `json:"queue_item_id"`
	AttemptNumber             int            `json:"attempt_number"`
	Timestamp                 time.Time      `json:"timestamp"`
	Outcome                   AttemptOutcome `json:"outcome"`
	HTTPStatus                int            `json:"http_status_or_equivalent,omitempty"`
	ErrorDetail               string         `json:"error_detail,omitempty"`
	DurationMs                int64          `json:"duration_ms"`
	CaptchaEncountered        bool           `json:"captcha_encountered"`
	HumanInterventionRequired bool           `json:"human_intervention_required"`
}
