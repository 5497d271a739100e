package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/store"
)

// Sweep dedup kinds stored in Notification.NotificationType.
const (
	SweepOverdue  = "overdue"
	SweepDeadline = "deadline"
	SweepToday    = "today"
	SweepTomorrow = "tomorrow"
)

// Source supplies the data a sweep reads.
type Source interface {
	Tasks() []store.Task
	Events() []store.CalendarEvent
}

// SourceFuncs adapts two functions to Source.
type SourceFuncs struct {
	TasksFn  func() []store.Task
	EventsFn func() []store.CalendarEvent
}

func (f SourceFuncs) Tasks() []store.Task {
	if f.TasksFn == nil {
		return nil
	}
	return f.TasksFn()
}

func (f SourceFuncs) Events() []store.CalendarEvent {
	if f.EventsFn == nil {
		return nil
	}
	return f.EventsFn()
}

// Sweeper periodically turns overdue and soon-due tasks, and events of
// today and tomorrow, into notifications. Each is recorded once per user.
type Sweeper struct {
	source   Source
	notifier Notifier
	clock    Clock
	loc      *time.Location
	interval time.Duration
	log      logrus.FieldLogger
}

type SweeperOptions struct {
	Source   Source
	Notifier Notifier
	Clock    Clock
	Location *time.Location
	Interval time.Duration
	Log      logrus.FieldLogger
}

func NewSweeper(opts SweeperOptions) *Sweeper {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Hour
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Sweeper{
		source:   opts.Source,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		loc:      opts.Location,
		interval: opts.Interval,
		log:      opts.Log.WithField("component", "sweeper"),
	}
}

// Run sweeps immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.Sweep(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many notifications it created.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.clock.Now().In(s.loc)
	created := 0
	for _, n := range s.taskNotifications(now) {
		created += s.record(ctx, n)
	}
	for _, n := range s.eventNotifications(now) {
		created += s.record(ctx, n)
	}
	if created > 0 {
		s.log.WithField("created", created).Info("sweep recorded notifications")
	}
	return created
}

func (s *Sweeper) record(ctx context.Context, n store.Notification) int {
	_, created, err := s.notifier.AddUnique(ctx, n)
	if err != nil {
		s.log.WithError(err).WithField("user", n.UserID).Error("record sweep notification")
		return 0
	}
	if created {
		return 1
	}
	return 0
}

func (s *Sweeper) taskNotifications(now time.Time) []store.Notification {
	var out []store.Notification
	for _, t := range s.source.Tasks() {
		if t.IsDone() {
			continue
		}
		deadline, ok := store.ParseDeadline(t.Deadline, s.loc)
		if !ok {
			continue
		}
		shown := deadline.Format("02.01.2006 15:04")
		for _, userID := range assignees(t) {
			if deadline.Before(now) {
				out = append(out, store.Notification{
					UserID:           userID,
					Type:             store.NotifyOverdue,
					Title:            "Просрочена задача",
					Message:          fmt.Sprintf("Задача %q просрочена. Крайний срок был %s.", t.Title, shown),
					Link:             t.ID,
					LinkType:         store.LinkTask,
					TaskID:           t.ID,
					NotificationType: SweepOverdue,
				})
				continue
			}
			if !now.Before(deadline.AddDate(0, 0, -1)) {
				out = append(out, store.Notification{
					UserID:           userID,
					Type:             store.NotifyTaskDue,
					Title:            "Скоро истечет срок задачи",
					Message:          fmt.Sprintf("Срок задачи %q истекает завтра (%s).", t.Title, shown),
					Link:             t.ID,
					LinkType:         store.LinkTask,
					TaskID:           t.ID,
					NotificationType: SweepDeadline,
				})
			}
		}
	}
	return out
}

func (s *Sweeper) eventNotifications(now time.Time) []store.Notification {
	today := store.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var out []store.Notification
	for _, e := range s.source.Events() {
		if e.CreatedBy == "" {
			continue
		}
		day, ok := store.ParseDate(e.Date, s.loc)
		if !ok {
			continue
		}
		var title, when, kind string
		switch {
		case day.Equal(today):
			title, when, kind = "Событие сегодня", "на сегодня", SweepToday
		case day.Equal(tomorrow):
			title, when, kind = "Событие завтра", "на завтра", SweepTomorrow
		default:
			continue
		}
		out = append(out, store.Notification{
			UserID:           e.CreatedBy,
			Type:             store.NotifyCalendar,
			Title:            title,
			Message:          fmt.Sprintf("У вас запланировано событие %q %s.", e.Title, when),
			Link:             e.ID,
			LinkType:         store.LinkCalendar,
			EventID:          e.ID,
			NotificationType: kind,
		})
	}
	return out
}

// assignees are the users the sweep warns about a task: the assignee and
// co-assignees.
func assignees(t store.Task) []string {
	var out []string
	seen := make(map[string]bool)
	for _, id := range append([]string{t.AssignedTo}, t.CoAssignees...) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
