package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/autoapply/internal/types"
)

func TestWindowStart_Day(t *testing.T) {
	at := time.Date(2024, 3, 15, 17, 42, 3, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), WindowStart(WindowDay, at))
}

func TestWindowStart_WeekStartsMonday(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want time.Time
	}{
		{"wednesday", time.Date(2024, 3, 13, 12, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"monday itself", time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
		{"sunday", time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC), time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WindowStart(WindowWeek, tt.at))
		})
	}
}

func TestWindowStart_Month(t *testing.T) {
	at := time.Date(2024, 3, 15, 17, 42, 3, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), WindowStart(WindowMonth, at))
}

func TestWindowEnd(t *testing.T) {
	at := time.Date(2024, 12, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), WindowEnd(WindowDay, at))
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), WindowEnd(WindowMonth, at))
}

func TestEvaluate_AllBelowCaps(t *testing.T) {
	limits := types.RateLimits{DailyLimit: 5, WeeklyLimit: 20, MonthlyLimit: 50}

	d := Evaluate(Counts{Day: 4, Week: 19, Month: 49}, limits, time.Now())

	assert.True(t, d.Allowed)
	assert.Empty(t, d.Exceeded)
}

func TestEvaluate_AtCapIsDeferred(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	limits := types.RateLimits{DailyLimit: 2}

	d := Evaluate(Counts{Day: 2}, limits, now)

	assert.False(t, d.Allowed)
	assert.Equal(t, []WindowKind{WindowDay}, d.Exceeded)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), d.NextEligible)
}

func TestEvaluate_SoonestExpiringWindowWins(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	limits := types.RateLimits{DailyLimit: 2, MonthlyLimit: 10}

	d := Evaluate(Counts{Day: 2, Month: 10}, limits, now)

	assert.False(t, d.Allowed)
	assert.Len(t, d.Exceeded, 2)
	// Day window expires before the month window.
	assert.Equal(t, WindowEnd(WindowDay, now), d.NextEligible)
}

func TestEvaluate_ZeroCapMeansUnlimited(t *testing.T) {
	d := Evaluate(Counts{Day: 1000}, types.RateLimits{}, time.Now())

	assert.True(t, d.Allowed)
}
