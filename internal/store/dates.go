package store

import (
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	DeadlineLayout = "2006-01-02T15:04"
)

var deadlineLayouts = []string{
	DeadlineLayout,
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseDeadline accepts the local date-time form written by the task form,
// a bare date (midnight), or RFC3339 converted to loc.
func ParseDeadline(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), true
	}
	return time.Time{}, false
}

// ParseDate returns local midnight of a YYYY-MM-DD date. RFC3339 values
// written by older builds are reduced to their local calendar day.
func ParseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation(DateLayout, value, loc); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return StartOfDay(t.In(loc)), true
	}
	return time.Time{}, false
}

// ParseClock returns hours and minutes of an HH:MM value.
func ParseClock(value string) (int, int, bool) {
	t, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

// EventStart is the event's date at its time, or at defaultHour:00 when the
// event has no time.
func EventStart(e CalendarEvent, loc *time.Location, defaultHour int) (time.Time, bool) {
	day, ok := ParseDate(e.Date, loc)
	if !ok {
		return time.Time{}, false
	}
	hour, minute := defaultHour, 0
	if e.Time != "" {
		h, m, ok := ParseClock(e.Time)
		if !ok {
			return time.Time{}, false
		}
		hour, minute = h, m
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc), true
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
