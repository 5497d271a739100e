package store

import (
	"testing"
	"time"
)

func TestParseDeadline(t *testing.T) {
	loc := time.UTC
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{in: "2024-01-10T15:30", want: time.Date(2024, 1, 10, 15, 30, 0, 0, loc), ok: true},
		{in: "2024-01-10T15:30:45", want: time.Date(2024, 1, 10, 15, 30, 45, 0, loc), ok: true},
		{in: "2024-01-10", want: time.Date(2024, 1, 10, 0, 0, 0, 0, loc), ok: true},
		{in: "2024-01-10T12:00:00Z", want: time.Date(2024, 1, 10, 12, 0, 0, 0, loc), ok: true},
		{in: "", ok: false},
		{in: "tomorrow", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseDeadline(tt.in, loc)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEventStart(t *testing.T) {
	loc := time.UTC
	timed, ok := EventStart(CalendarEvent{Date: "2024-01-10", Time: "14:15"}, loc, 9)
	if !ok || !timed.Equal(time.Date(2024, 1, 10, 14, 15, 0, 0, loc)) {
		t.Fatalf("timed = %s, %v", timed, ok)
	}

	allDay, ok := EventStart(CalendarEvent{Date: "2024-01-10"}, loc, 9)
	if !ok || !allDay.Equal(time.Date(2024, 1, 10, 9, 0, 0, 0, loc)) {
		t.Fatalf("allDay = %s, %v", allDay, ok)
	}

	if _, ok := EventStart(CalendarEvent{Date: "2024-01-10", Time: "25:99"}, loc, 9); ok {
		t.Fatal("invalid clock should not parse")
	}
	if _, ok := EventStart(CalendarEvent{Date: "10.01.2024"}, loc, 9); ok {
		t.Fatal("invalid date should not parse")
	}
}

func TestParseDateAcceptsLegacyISO(t *testing.T) {
	got, ok := ParseDate("2024-03-05T10:00:00Z", time.UTC)
	if !ok || !got.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("ParseDate() = %s, %v", got, ok)
	}
}

func TestTaskInvolves(t *testing.T) {
	task := Task{Creator: "c", AssignedTo: "a", CoAssignees: []string{"co"}, Watchers: []string{"w"}}
	for _, id := range []string{"c", "a", "co", "w"} {
		if !task.Involves(id) {
			t.Fatalf("Involves(%q) = false", id)
		}
	}
	if task.Involves("x") {
		t.Fatal("Involves(x) = true")
	}
}

func TestUserDisplayName(t *testing.T) {
	if got := (User{Username: "ivan"}).DisplayName(); got != "ivan" {
		t.Fatalf("DisplayName() = %q", got)
	}
	if got := (User{Username: "ivan", FirstName: "Иван", LastName: "Петров"}).DisplayName(); got != "Иван Петров" {
		t.Fatalf("DisplayName() = %q", got)
	}
}
