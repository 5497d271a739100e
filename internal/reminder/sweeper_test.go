package reminder

import (
	"context"
	"testing"
	"time"

	"skcrm/core/internal/logging"
	"skcrm/core/internal/store"
)

func TestSweep(t *testing.T) {
	clock := &fakeClock{now: start}
	notifier := &memNotifier{}
	tasks := []store.Task{
		{ID: "late", Title: "Late", Deadline: "2024-01-08T10:00", AssignedTo: "a", CoAssignees: []string{"b"}},
		{ID: "soon", Title: "Soon", Deadline: "2024-01-10T09:00", AssignedTo: "a"},
		{ID: "later", Title: "Later", Deadline: "2024-01-12T09:00", AssignedTo: "a"},
		{ID: "done", Title: "Done", Deadline: "2024-01-08T10:00", AssignedTo: "a", Status: store.StatusDone},
		{ID: "nobody", Title: "Nobody", Deadline: "2024-01-08T10:00", Creator: "c"},
	}
	events := []store.CalendarEvent{
		{ID: "e-today", Title: "Call", Date: "2024-01-09", CreatedBy: "u"},
		{ID: "e-tomorrow", Title: "Demo", Date: "2024-01-10", CreatedBy: "u"},
		{ID: "e-next-week", Title: "Retro", Date: "2024-01-16", CreatedBy: "u"},
		{ID: "e-orphan", Title: "Orphan", Date: "2024-01-09"},
	}
	sweeper := NewSweeper(SweeperOptions{
		Source: SourceFuncs{
			TasksFn:  func() []store.Task { return tasks },
			EventsFn: func() []store.CalendarEvent { return events },
		},
		Notifier: notifier,
		Clock:    clock,
		Location: time.UTC,
		Log:      logging.Discard(),
	})

	if got := sweeper.Sweep(context.Background()); got != 5 {
		t.Fatalf("first Sweep() = %d, want 5", got)
	}
	if got := sweeper.Sweep(context.Background()); got != 0 {
		t.Fatalf("second Sweep() = %d, want 0", got)
	}

	want := map[string]string{
		"a/late":       SweepOverdue,
		"b/late":       SweepOverdue,
		"a/soon":       SweepDeadline,
		"u/e-today":    SweepToday,
		"u/e-tomorrow": SweepTomorrow,
	}
	for _, n := range notifier.all() {
		item := n.TaskID
		if item == "" {
			item = n.EventID
		}
		key := n.UserID + "/" + item
		kind, ok := want[key]
		if !ok {
			t.Fatalf("unexpected notification %s (%+v)", key, n)
		}
		if n.NotificationType != kind {
			t.Fatalf("%s kind = %q, want %q", key, n.NotificationType, kind)
		}
		delete(want, key)
	}
	if len(want) != 0 {
		t.Fatalf("missing notifications %v", want)
	}
}

func TestSweepMovesFromDeadlineToOverdue(t *testing.T) {
	clock := &fakeClock{now: start}
	notifier := &memNotifier{}
	tasks := []store.Task{{ID: "t", Title: "T", Deadline: "2024-01-10T09:00", AssignedTo: "a"}}
	sweeper := NewSweeper(SweeperOptions{
		Source:   SourceFuncs{TasksFn: func() []store.Task { return tasks }},
		Notifier: notifier,
		Clock:    clock,
		Location: time.UTC,
		Log:      logging.Discard(),
	})

	sweeper.Sweep(context.Background())
	clock.Advance(24 * time.Hour)
	sweeper.Sweep(context.Background())

	got := notifier.all()
	if len(got) != 2 || got[0].NotificationType != SweepDeadline || got[1].NotificationType != SweepOverdue {
		t.Fatalf("notifications = %+v", got)
	}
	if got[1].Type != store.NotifyOverdue || got[1].LinkType != store.LinkTask {
		t.Fatalf("overdue notification = %+v", got[1])
	}
}

func TestRunStopsWithContext(t *testing.T) {
	notifier := &memNotifier{}
	sweeper := NewSweeper(SweeperOptions{
		Source: SourceFuncs{EventsFn: func() []store.CalendarEvent {
			return []store.CalendarEvent{{ID: "e", Date: "2024-01-09", CreatedBy: "u"}}
		}},
		Notifier: notifier,
		Clock:    &fakeClock{now: start},
		Location: time.UTC,
		Interval: time.Hour,
		Log:      logging.Discard(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for len(notifier.all()) == 0 {
		select {
		case <-deadline:
			t.Fatal("Run did not sweep immediately")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
