package views

import (
	"sort"
	"time"

	"skcrm/core/internal/store"
)

// Entry is one item on the calendar: a stored event or a task deadline.
type Entry struct {
	ID     string
	Title  string
	Start  time.Time
	AllDay bool
	// TaskID is set for deadline entries.
	TaskID string
	Event  *store.CalendarEvent
}

// EventsInRange returns events whose date falls in [from, to), by start.
func EventsInRange(events []store.CalendarEvent, from, to time.Time) []store.CalendarEvent {
	loc := from.Location()
	type dated struct {
		event store.CalendarEvent
		start time.Time
	}
	var found []dated
	for _, e := range events {
		start, ok := store.EventStart(e, loc, 0)
		if !ok {
			continue
		}
		day := store.StartOfDay(start)
		if day.Before(store.StartOfDay(from)) || !day.Before(to) {
			continue
		}
		found = append(found, dated{event: e, start: start})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start.Before(found[j].start) })

	out := make([]store.CalendarEvent, len(found))
	for i, d := range found {
		out[i] = d.event
	}
	return out
}

// EventsForDay returns the events dated on day's calendar day.
func EventsForDay(events []store.CalendarEvent, day time.Time) []store.CalendarEvent {
	start := store.StartOfDay(day)
	return EventsInRange(events, start, start.AddDate(0, 0, 1))
}

// CalendarEntries merges events in [from, to) with deadline entries for
// tasks due in the same range.
func CalendarEntries(events []store.CalendarEvent, tasks []store.Task, from, to time.Time) []Entry {
	loc := from.Location()
	var out []Entry
	for _, e := range EventsInRange(events, from, to) {
		e := e
		start, _ := store.EventStart(e, loc, 0)
		out = append(out, Entry{
			ID:     e.ID,
			Title:  e.Title,
			Start:  start,
			AllDay: e.Time == "",
			Event:  &e,
		})
	}
	for _, t := range tasks {
		deadline, ok := store.ParseDeadline(t.Deadline, loc)
		if !ok || deadline.Before(from) || !deadline.Before(to) {
			continue
		}
		out = append(out, Entry{
			ID:     "task_" + t.ID,
			Title:  DeadlineTitle(t),
			Start:  deadline,
			TaskID: t.ID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// DeadlineTitle is the calendar label of a task deadline.
func DeadlineTitle(t store.Task) string {
	return "Дедлайн: " + t.Title
}
