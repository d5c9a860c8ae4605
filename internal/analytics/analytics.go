// Package analytics computes read-only aggregates over a profile's queue items
// and submission log. It never mutates queue state.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/store"
	"github.com/jonathan/autoapply/internal/types"
)

// Aggregator derives profile statistics from the store.
type Aggregator struct {
	store store.Store
}

// NewAggregator creates an aggregator over the given store.
func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// ProfileStats aggregates outcomes, scores and attempt metrics for a profile
// over [from, to). Success rate is submitted over submitted plus permanently
// failed; items still in flight do not count toward either side.
func (a *Aggregator) ProfileStats(ctx context.Context, profileID uuid.UUID, from, to time.Time) (*types.ProfileStats, error) {
	items, err := a.store.ListItems(ctx, store.ItemFilter{
		ProfileID: &profileID,
		From:      from,
		To:        to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items for analytics: %w", err)
	}

	stats := &types.ProfileStats{From: from, To: to}

	var scoreCount int
	var sumQuality, sumPersonalization, sumAts float64
	for _, item := range items {
		switch item.State {
		case types.StateSubmitted:
			stats.Submitted++
		case types.StateFailedPermanent:
			stats.FailedPermanent++
		case types.StateRejected:
			stats.Rejected++
		default:
			stats.InFlight++
		}

		if item.Content != nil {
			scoreCount++
			sumQuality += item.Content.Scores.Quality
			sumPersonalization += item.Content.Scores.Personalization
			sumAts += item.Content.Scores.AtsCompatibility
		}
	}

	if scoreCount > 0 {
		stats.AvgQuality = sumQuality / float64(scoreCount)
		stats.AvgPersonalization = sumPersonalization / float64(scoreCount)
		stats.AvgAtsCompatibility = sumAts / float64(scoreCount)
	}

	if decided := stats.Submitted + stats.FailedPermanent; decided > 0 {
		stats.SuccessRate = float64(stats.Submitted) / float64(decided)
	}

	attempts, err := a.store.AttemptsInRange(ctx, profileID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for analytics: %w", err)
	}

	stats.TotalAttempts = len(attempts)
	if len(attempts) > 0 {
		var sumDuration int64
		for _, attempt := range attempts {
			sumDuration += attempt.DurationMs
		}
		stats.AvgAttemptDurationMs = float64(sumDuration) / float64(len(attempts))
	}

	if days := to.Sub(from).Hours() / 24; days > 0 {
		stats.ThroughputPerDay = float64(stats.Submitted) / days
	}

	return stats, nil
}
