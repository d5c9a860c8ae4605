// Package ratelimit caps submission volume per profile over fixed
// calendar-aligned windows (UTC day, ISO week, calendar month). Windows never
// slide; counters reset at window boundaries.
package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/autoapply/internal/types"
)

// WindowKind identifies one of the three counting windows.
type WindowKind string

const (
	WindowDay   WindowKind = "day"
	WindowWeek  WindowKind = "week"
	WindowMonth WindowKind = "month"
)

// Kinds lists all window kinds in checking order.
var Kinds = []WindowKind{WindowDay, WindowWeek, WindowMonth}

// WindowStart returns the fixed start of the window containing t, in UTC.
// Days start at midnight UTC, weeks on Monday (ISO), months on the 1st.
func WindowStart(kind WindowKind, t time.Time) time.Time {
	t = t.UTC()
	switch kind {
	case WindowDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case WindowWeek:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case WindowMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return t
}

// WindowEnd returns the start of the next window after the one containing t.
func WindowEnd(kind WindowKind, t time.Time) time.Time {
	start := WindowStart(kind, t)
	switch kind {
	case WindowDay:
		return start.AddDate(0, 0, 1)
	case WindowWeek:
		return start.AddDate(0, 0, 7)
	case WindowMonth:
		return start.AddDate(0, 1, 0)
	}
	return start
}

// Counts are the current counter values for the three windows containing now.
type Counts struct {
	Day   int
	Week  int
	Month int
}

// Get returns the count for a window kind.
func (c Counts) Get(kind WindowKind) int {
	switch kind {
	case WindowDay:
		return c.Day
	case WindowWeek:
		return c.Week
	case WindowMonth:
		return c.Month
	}
	return 0
}

// Decision is the outcome of a rate-limit check. When not allowed,
// NextEligible is the end of the soonest-expiring exceeded window.
type Decision struct {
	Allowed      bool
	Exceeded     []WindowKind
	NextEligible time.Time
}

// cap returns the configured cap for a window kind; zero or negative means unlimited.
func capFor(limits types.RateLimits, kind WindowKind) int {
	switch kind {
	case WindowDay:
		return limits.DailyLimit
	case WindowWeek:
		return limits.WeeklyLimit
	case WindowMonth:
		return limits.MonthlyLimit
	}
	return 0
}

// Evaluate decides whether an attempt may proceed given the current counts.
// An attempt is allowed only if every capped counter is strictly below its cap.
// Stores call this inside the same transaction that increments the counters, so
// the compare-and-increment is atomic.
func Evaluate(counts Counts, limits types.RateLimits, now time.Time) Decision {
	d := Decision{Allowed: true}
	for _, kind := range Kinds {
		limit := capFor(limits, kind)
		if limit <= 0 {
			continue
		}
		if counts.Get(kind) >= limit {
			d.Allowed = false
			d.Exceeded = append(d.Exceeded, kind)
			end := WindowEnd(kind, now)
			if d.NextEligible.IsZero() || end.Before(d.NextEligible) {
				d.NextEligible = end
			}
		}
	}
	return d
}

// WindowStore is the persistence contract for window counters. The increment
// must be transactional: either all three counters advance or none do.
type WindowStore interface {
	TryIncrementWindows(ctx context.Context, profileID uuid.UUID, limits types.RateLimits, now time.Time) (Decision, error)
}

// Limiter gates submission attempts for profiles against their configured caps.
type Limiter struct {
	windows WindowStore
}

// NewLimiter creates a limiter over the given window store.
func NewLimiter(windows WindowStore) *Limiter {
	return &Limiter{windows: windows}
}

// Allow consumes one slot from all three windows if every counter is below its
// cap. When a cap is reached the attempt is deferred, not failed: the returned
// decision carries the next eligible time and no retry attempt is consumed.
func (l *Limiter) Allow(ctx context.Context, profile *types.AutomationProfile, now time.Time) (Decision, error) {
	return l.windows.TryIncrementWindows(ctx, profile.ID, profile.Limits, now)
}
