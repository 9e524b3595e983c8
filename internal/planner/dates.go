package planner

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used throughout plan documents.
const DateLayout = "2006-01-02"

// ParseDate parses an ISO calendar date as a UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as an ISO calendar date.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// MondayOf returns the Monday on or before t, at UTC midnight.
func MondayOf(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	// time.Weekday: Sunday=0 .. Saturday=6; shift so Monday=0.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// AddDays shifts an ISO date by n days.
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// calendarWeeksBetween counts Monday-based calendar week boundaries from
// start to end. Negative when end is in an earlier week.
func calendarWeeksBetween(start, end time.Time) int {
	days := MondayOf(end).Sub(MondayOf(start)).Hours() / 24
	return int(days) / 7
}

// daysBetween returns b - a in whole days.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
