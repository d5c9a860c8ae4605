// Package queue defines the application-queue state machine. Transitions are
// the only place item state changes; every edge not listed here is invalid.
package queue

import (
	"fmt"

	"github.com/jonathan/autoapply/internal/types"
)

// transitions is the full edge set of the state graph. Terminal states
// (submitted, rejected, failed_permanent) have no outgoing edges.
var transitions = map[types.QueueState][]types.QueueState{
	types.StateQueued:     {types.StateGenerating, types.StateRejected},
	types.StateGenerating: {types.StatePendingReview, types.StateReadyToSubmit, types.StateRejected},
	types.StatePendingReview: {
		types.StateReadyToSubmit, // human approval
		types.StateRejected,      // human rejection or cancellation
	},
	types.StateReadyToSubmit:   {types.StateSubmitting, types.StateRejected},
	types.StateSubmitting:      {types.StateSubmitted, types.StateFailedTransient, types.StateFailedPermanent},
	types.StateFailedTransient: {types.StateRetrying, types.StateFailedPermanent},
	types.StateRetrying:        {types.StateSubmitting, types.StateRejected},
}

// cancellable lists the states a user may cancel from. Cancelling while
// submitting is forbidden to avoid double submission.
var cancellable = map[types.QueueState]bool{
	types.StateQueued:        true,
	types.StatePendingReview: true,
	types.StateReadyToSubmit: true,
	types.StateRetrying:      true,
}

// CancelReason is recorded on user-cancelled items.
const CancelReason = "user-cancelled"

// ErrInvalidTransition indicates a transition outside the state graph.
type ErrInvalidTransition struct {
	From types.QueueState
	To   types.QueueState
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid queue transition %s -> %s", e.From, e.To)
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to types.QueueState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an ErrInvalidTransition for edges outside the graph.
func ValidateTransition(from, to types.QueueState) error {
	if !CanTransition(from, to) {
		return &ErrInvalidTransition{From: from, To: to}
	}
	return nil
}

// Cancellable reports whether a user may cancel an item in the given state.
func Cancellable(state types.QueueState) bool {
	return cancellable[state]
}

// NextAfterTransientFailure decides where a failed_transient item goes: back to
// retrying while retries remain, otherwise failed_permanent. The invariant
// retryCount <= maxRetries holds at every observed state.
func NextAfterTransientFailure(retryCount, maxRetries int) types.QueueState {
	if retryCount < maxRetries {
		return types.StateRetrying
	}
	return types.StateFailedPermanent
}
