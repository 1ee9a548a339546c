package model

import (
	"fmt"
	"time"
)

// DateLayout is the ISO 8601 calendar day format used as the snapshot key.
const DateLayout = "2006-01-02"

// DayOf returns the UTC calendar day of t.
func DayOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDay parses a YYYY-MM-DD day and returns its UTC midnight.
func ParseDay(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// DayWindow returns the [start, end) UTC bounds of a calendar day.
func DayWindow(date string) (start, end time.Time, err error) {
	start, err = ParseDay(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 0, 1), nil
}
