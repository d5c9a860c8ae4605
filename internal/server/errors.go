// Package server provides the HTTP REST API for the application pipeline.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/queue"
	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// ErrProfileNotFound indicates the profile does not exist or was deleted
type ErrProfileNotFound struct {
	ProfileID uuid.UUID
}

func (e *ErrProfileNotFound) Error() string {
	return fmt.Sprintf("profile not found: %s", e.ProfileID)
}

// ErrItemNotFound indicates the queue item was not found
type ErrItemNotFound struct {
	ItemID uuid.UUID
}

func (e *ErrItemNotFound) Error() string {
	return fmt.Sprintf("queue item not found: %s", e.ItemID)
}

// ErrDuplicateCandidate indicates the profile already queued this job
type ErrDuplicateCandidate struct {
	ExternalID string
}

func (e *ErrDuplicateCandidate) Error() string {
	return fmt.Sprintf("candidate already queued: %s", e.ExternalID)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrInvalidState indicates the requested action is not allowed in the item's
// current state
type ErrInvalidState struct {
	Action string
	State  types.QueueState
}

func (e *ErrInvalidState) Error() string {
	return fmt.Sprintf("cannot %s item in state %s", e.Action, e.State)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch err.(type) {
	case *ErrProfileNotFound, *ErrItemNotFound:
		return http.StatusNotFound
	case *ErrValidation:
		return http.StatusBadRequest
	case *ErrDuplicateCandidate, *ErrInvalidState:
		return http.StatusConflict
	}

	var invalid *queue.ErrInvalidTransition
	var ruleErr *types.RuleValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict), errors.As(err, &invalid):
		return http.StatusConflict
	case errors.As(err, &ruleErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
