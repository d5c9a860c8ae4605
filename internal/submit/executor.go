// Package submit executes external submission attempts for leased queue items
// and classifies their outcomes.
package submit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/types"
)

// Request carries everything the external collaborator needs for one attempt.
type Request struct {
	Item      *types.QueueItem
	Candidate *types.JobCandidate
	Content   *types.GeneratedContent
}

// Result is the collaborator's response. Captcha and human-intervention
// signals come from this response, never from chance.
type Result struct {
	HTTPStatus                int
	CaptchaEncountered        bool
	HumanInterventionRequired bool
}

// Submitter is the external submission collaborator.
type Submitter interface {
	Submit(ctx context.Context, req Request) (*Result, error)
}

// TransientError marks a failure where a retry may succeed (timeouts,
// 5xx-equivalent, transport errors).
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient submission failure: %v", e.Err)
	}
	return fmt.Sprintf("transient submission failure: status %d", e.Status)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError marks a failure a retry cannot help with (captcha, manual
// review, rejected requests). It halts automation for the item and flags the
// profile for operator attention.
type PermanentError struct {
	Status  int
	Captcha bool
	Human   bool
	Detail  string
}

func (e *PermanentError) Error() string {
	switch {
	case e.Captcha:
		return "permanent submission failure: captcha encountered"
	case e.Human:
		return "permanent submission failure: human intervention required"
	}
	return fmt.Sprintf("permanent submission failure: %s (status %d)", e.Detail, e.Status)
}

// Executor runs submission attempts with a bounded timeout and exponential
// backoff for transient failures.
type Executor struct {
	submitter Submitter
	timeout   time.Duration
	baseDelay time.Duration
	maxDelay  time.Duration
}

// NewExecutor creates an executor over the given collaborator.
func NewExecutor(submitter Submitter, timeout, baseDelay, maxDelay time.Duration) *Executor {
	return &Executor{submitter: submitter, timeout: timeout, baseDelay: baseDelay, maxDelay: maxDelay}
}

// Backoff computes the retry delay: min(baseDelay * 2^retryCount, maxDelay).
func (e *Executor) Backoff(retryCount int) time.Duration {
	delay := e.baseDelay
	for i := 0; i < retryCount; i++ {
		delay *= 2
		if delay >= e.maxDelay {
			return e.maxDelay
		}
	}
	if delay > e.maxDelay {
		return e.maxDelay
	}
	return delay
}

// Execute performs one attempt and returns its immutable log record. Every
// attempt, success or failure, produces exactly one record; the caller appends
// it to the submission log and applies the matching state transition.
func (e *Executor) Execute(ctx context.Context, req Request) *types.SubmissionAttempt {
	attempt := &types.SubmissionAttempt{
		ID:            uuid.New(),
		QueueItemID:   req.Item.ID,
		AttemptNumber: req.Item.RetryCount + 1,
		Timestamp:     time.Now().UTC(),
	}

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.submitter.Submit(cctx, req)
	attempt.DurationMs = time.Since(start).Milliseconds()

	switch {
	case err != nil:
		// Timeouts and transport errors are retryable.
		attempt.Outcome = types.OutcomeTransientFailure
		attempt.ErrorDetail = (&TransientError{Err: err}).Error()
	case result.CaptchaEncountered || result.HumanInterventionRequired:
		attempt.Outcome = types.OutcomePermanentFailure
		attempt.HTTPStatus = result.HTTPStatus
		attempt.CaptchaEncountered = result.CaptchaEncountered
		attempt.HumanInterventionRequired = result.HumanInterventionRequired
		attempt.ErrorDetail = (&PermanentError{
			Status:  result.HTTPStatus,
			Captcha: result.CaptchaEncountered,
			Human:   result.HumanInterventionRequired,
		}).Error()
	case result.HTTPStatus >= 500 || result.HTTPStatus == 429:
		attempt.Outcome = types.OutcomeTransientFailure
		attempt.HTTPStatus = result.HTTPStatus
		attempt.ErrorDetail = (&TransientError{Status: result.HTTPStatus}).Error()
	case result.HTTPStatus >= 400:
		attempt.Outcome = types.OutcomePermanentFailure
		attempt.HTTPStatus = result.HTTPStatus
		attempt.ErrorDetail = (&PermanentError{Status: result.HTTPStatus, Detail: "request rejected"}).Error()
	default:
		attempt.Outcome = types.OutcomeSuccess
		attempt.HTTPStatus = result.HTTPStatus
	}

	return attempt
}
