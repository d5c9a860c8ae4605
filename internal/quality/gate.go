// Package quality implements the decision function mapping generated-content
// scores to a queue routing outcome.
package quality

import (
	"fmt"

	"github.com/jonathan/autoapply/internal/types"
)

// Decision is the outcome of gating one piece of generated content.
type Decision struct {
	State  types.QueueState
	Reason string
	// DataError is set when the generator returned out-of-range scores. The
	// item is routed to pending_review rather than silently passing.
	DataError bool
}

// Gate evaluates the decision table top-down, first match wins:
//  1. any score below its minimum threshold -> rejected
//  2. all scores >= auto-submit threshold and approval not required -> ready_to_submit
//  3. otherwise -> pending_review
//
// Scores are clamped to [0,1] before comparison.
func Gate(content *types.GeneratedContent, settings *types.QualitySettings) Decision {
	scores := content.Scores
	dataError := outOfRange(scores.Quality) || outOfRange(scores.Personalization) || outOfRange(scores.AtsCompatibility)

	q := clamp(scores.Quality)
	p := clamp(scores.Personalization)
	a := clamp(scores.AtsCompatibility)

	if dataError {
		return Decision{
			State:     types.StatePendingReview,
			Reason:    "generator returned out-of-range scores",
			DataError: true,
		}
	}

	switch {
	case q < settings.MinimumQualityScore:
		return Decision{State: types.StateRejected, Reason: failure("quality", q, settings.MinimumQualityScore)}
	case p < settings.MinimumPersonalizationScore:
		return Decision{State: types.StateRejected, Reason: failure("personalization", p, settings.MinimumPersonalizationScore)}
	case a < settings.MinimumAtsCompatibility:
		return Decision{State: types.StateRejected, Reason: failure("ats_compatibility", a, settings.MinimumAtsCompatibility)}
	}

	threshold := settings.AutoSubmitThreshold
	if !settings.ApprovalRequired && q >= threshold && p >= threshold && a >= threshold {
		return Decision{State: types.StateReadyToSubmit, Reason: "all scores above auto-submit threshold"}
	}

	return Decision{State: types.StatePendingReview, Reason: "scores require human review"}
}

func failure(metric string, got, minimum float64) string {
	return fmt.Sprintf("%s score %.2f below minimum %.2f", metric, got, minimum)
}

func outOfRange(v float64) bool {
	return v < 0 || v > 1
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
