package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autoapply/internal/types"
)

func TestCanTransition_ValidEdges(t *testing.T) {
	valid := []struct {
		from types.QueueState
		to   types.QueueState
	}{
		{types.StateQueued, types.StateGenerating},
		{types.StateGenerating, types.StatePendingReview},
		{types.StateGenerating, types.StateReadyToSubmit},
		{types.StateGenerating, types.StateRejected},
		{types.StatePendingReview, types.StateReadyToSubmit},
		{types.StatePendingReview, types.StateRejected},
		{types.StateReadyToSubmit, types.StateSubmitting},
		{types.StateSubmitting, types.StateSubmitted},
		{types.StateSubmitting, types.StateFailedTransient},
		{types.StateSubmitting, types.StateFailedPermanent},
		{types.StateFailedTransient, types.StateRetrying},
		{types.StateFailedTransient, types.StateFailedPermanent},
		{types.StateRetrying, types.StateSubmitting},
	}

	for _, tt := range valid {
		assert.True(t, CanTransition(tt.from, tt.to), "%s -> %s should be valid", tt.from, tt.to)
	}
}

func TestCanTransition_NoEdgeSkipsAState(t *testing.T) {
	invalid := []struct {
		from types.QueueState
		to   types.QueueState
	}{
		{types.StateQueued, types.StateSubmitted},
		{types.StateQueued, types.StateSubmitting},
		{types.StateQueued, types.StateReadyToSubmit},
		{types.StateGenerating, types.StateSubmitting},
		{types.StatePendingReview, types.StateSubmitted},
		{types.StateReadyToSubmit, types.StateSubmitted},
		{types.StateRetrying, types.StateSubmitted},
	}

	for _, tt := range invalid {
		assert.False(t, CanTransition(tt.from, tt.to), "%s -> %s should be invalid", tt.from, tt.to)
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	terminals := []types.QueueState{types.StateSubmitted, types.StateRejected, types.StateFailedPermanent}
	all := []types.QueueState{
		types.StateQueued, types.StateGenerating, types.StatePendingReview,
		types.StateReadyToSubmit, types.StateSubmitting, types.StateRetrying,
		types.StateSubmitted, types.StateRejected, types.StateFailedTransient,
		types.StateFailedPermanent,
	}

	for _, terminal := range terminals {
		assert.True(t, terminal.Terminal())
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "terminal %s must not transition to %s", terminal, to)
		}
	}
}

func TestValidateTransition_ErrorNamesStates(t *testing.T) {
	err := ValidateTransition(types.StateQueued, types.StateSubmitted)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "queued")
	assert.Contains(t, err.Error(), "submitted")
}

func TestCancellable(t *testing.T) {
	assert.True(t, Cancellable(types.StateQueued))
	assert.True(t, Cancellable(types.StatePendingReview))
	assert.True(t, Cancellable(types.StateReadyToSubmit))
	assert.True(t, Cancellable(types.StateRetrying))

	assert.False(t, Cancellable(types.StateSubmitting), "cancelling mid-submission risks double submission")
	assert.False(t, Cancellable(types.StateSubmitted))
	assert.False(t, Cancellable(types.StateFailedPermanent))
}

func TestNextAfterTransientFailure(t *testing.T) {
	assert.Equal(t, types.StateRetrying, NextAfterTransientFailure(1, 3))
	assert.Equal(t, types.StateRetrying, NextAfterTransientFailure(2, 3))
	assert.Equal(t, types.StateFailedPermanent, NextAfterTransientFailure(3, 3))
	assert.Equal(t, types.StateFailedPermanent, NextAfterTransientFailure(4, 3))
}
