package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMaxPerDay = 3
	dayLayout        = "2006-01-02"
)

// Store tracks daily send counters. Reserve must check and increment as one
// atomic step.
type Store interface {
	Reserve(ctx context.Context, recipient, day string) (bool, error)
	Release(ctx context.Context, recipient, day string) error
	Count(ctx context.Context, recipient, day string) (int, error)
}

// Day returns the calendar-day key for t in loc. A nil loc means UTC.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}
