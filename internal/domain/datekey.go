package domain

import (
	"fmt"
	"time"
)

// DateKeyLayout is the calendar-day key format.
const DateKeyLayout = "2006-01-02"

// DateKey normalizes t to its calendar day in t's own location.
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ParseDateKey parses a DateKey into midnight UTC of that day.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}

// AddDays shifts a DateKey by n calendar days. Invalid keys are returned
// unchanged.
func AddDays(key string, n int) string {
	t, err := ParseDateKey(key)
	if err != nil {
		return key
	}
	return DateKey(t.AddDate(0, 0, n))
}

// DaysBetween returns the number of calendar days from one key to another
// (positive when to is later). Keys are compared as UTC dates, so DST
// transitions never produce fractional days. Invalid keys yield 0.
func DaysBetween(from, to string) int {
	a, err := ParseDateKey(from)
	if err != nil {
		return 0
	}
	b, err := ParseDateKey(to)
	if err != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
