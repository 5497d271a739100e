// Package reminder arms one-shot timers for event reminders and task
// deadline reminders, and runs the periodic due-date sweep.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/store"
)

// Reminder kinds. DedupKind pairs one with the fire instant to form the
// notification dedup kind.
const (
	KindEvent = store.NotifyEventReminder
	KindTask  = store.NotifyTaskDeadline
)

type State int

const (
	Unscheduled State = iota
	Armed
	Fired
	Cancelled
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Fired:
		return "fired"
	case Cancelled:
		return "cancelled"
	default:
		return "unscheduled"
	}
}

// Key identifies one schedulable reminder.
type Key struct {
	ItemID string
	Kind   string
}

// Notifier records a fired reminder. AddUnique must be idempotent per
// dedup key so that a re-fire after restart never duplicates a record.
type Notifier interface {
	AddUnique(ctx context.Context, n store.Notification) (store.Notification, bool, error)
}

type Options struct {
	Clock    Clock
	Location *time.Location
	// ReminderHour is the local hour used for events without a time and
	// for the day-before task reminder.
	ReminderHour int
	Notifier     Notifier
	Log          logrus.FieldLogger
}

type handle struct {
	timer Timer
	gen   uint64
	at    time.Time
}

// Scheduler holds at most one live timer per Key. Timers are never
// persisted; Rebuild re-derives them from data.
type Scheduler struct {
	clock    Clock
	loc      *time.Location
	hour     int
	notifier Notifier
	log      logrus.FieldLogger

	mu      sync.Mutex
	gen     uint64
	handles map[Key]*handle
	states  map[Key]State
	closed  bool
	wg      sync.WaitGroup
}

func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Scheduler{
		clock:    opts.Clock,
		loc:      opts.Location,
		hour:     opts.ReminderHour,
		notifier: opts.Notifier,
		log:      opts.Log.WithField("component", "reminder"),
		handles:  make(map[Key]*handle),
		states:   make(map[Key]State),
	}
}

// EventFireTime is the event start minus its reminder lead. ok is false
// when the event has no reminder or an unparseable date.
func EventFireTime(e store.CalendarEvent, loc *time.Location, hour int) (time.Time, bool) {
	if e.Reminder <= 0 {
		return time.Time{}, false
	}
	start, ok := store.EventStart(e, loc, hour)
	if !ok {
		return time.Time{}, false
	}
	return start.Add(-time.Duration(e.Reminder) * time.Minute), true
}

// DedupKind is the notification dedup kind for a reminder of kind firing
// at at. Rescheduling to a new instant yields a new kind, while the same
// data re-armed after a restart yields the same one.
func DedupKind(kind string, at time.Time) string {
	return kind + "@" + at.Format(time.RFC3339)
}

// TaskFireTime is the day before the deadline at hour:00. ok is false for
// finished tasks and tasks without a usable deadline.
func TaskFireTime(t store.Task, loc *time.Location, hour int) (time.Time, bool) {
	if t.IsDone() {
		return time.Time{}, false
	}
	deadline, ok := store.ParseDeadline(t.Deadline, loc)
	if !ok {
		return time.Time{}, false
	}
	day := deadline.AddDate(0, 0, -1)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, loc), true
}

// ScheduleEvent (re)arms the reminder for e and returns the resulting state.
func (s *Scheduler) ScheduleEvent(e store.CalendarEvent) State {
	key := Key{ItemID: e.ID, Kind: KindEvent}
	at, ok := EventFireTime(e, s.loc, s.hour)
	return s.arm(key, at, ok, func(ctx context.Context) { s.fireEvent(ctx, e, at) })
}

// ScheduleTask (re)arms the deadline reminder for t.
func (s *Scheduler) ScheduleTask(t store.Task) State {
	key := Key{ItemID: t.ID, Kind: KindTask}
	at, ok := TaskFireTime(t, s.loc, s.hour)
	return s.arm(key, at, ok, func(ctx context.Context) { s.fireTask(ctx, t, at) })
}

func (s *Scheduler) CancelEvent(id string) {
	s.Cancel(Key{ItemID: id, Kind: KindEvent})
}

func (s *Scheduler) CancelTask(id string) {
	s.Cancel(Key{ItemID: id, Kind: KindTask})
}

// Cancel stops the timer for key. Only an armed reminder becomes Cancelled.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopLocked(key) {
		s.states[key] = Cancelled
	}
}

// Rebuild cancels every timer and re-derives them from events and tasks.
func (s *Scheduler) Rebuild(events []store.CalendarEvent, tasks []store.Task) {
	s.mu.Lock()
	for key := range s.handles {
		s.stopLocked(key)
	}
	s.states = make(map[Key]State)
	s.mu.Unlock()

	for _, e := range events {
		s.ScheduleEvent(e)
	}
	for _, t := range tasks {
		s.ScheduleTask(t)
	}
}

func (s *Scheduler) State(key Key) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[key]
}

// FireAt reports when key is armed to fire.
func (s *Scheduler) FireAt(key Key) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[key]
	if !ok {
		return time.Time{}, false
	}
	return h.at, true
}

// Armed counts live timers.
func (s *Scheduler) Armed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close stops every timer and waits for callbacks already running.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for key := range s.handles {
		s.stopLocked(key)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) arm(key Key, at time.Time, ok bool, fire func(context.Context)) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := s.stopLocked(key)
	if s.closed || !ok || !at.After(s.clock.Now()) {
		state := Unscheduled
		if stopped {
			state = Cancelled
		}
		s.states[key] = state
		return state
	}

	s.gen++
	gen := s.gen
	h := &handle{gen: gen, at: at}
	h.timer = s.clock.AfterFunc(at.Sub(s.clock.Now()), func() { s.dispatch(key, gen, fire) })
	s.handles[key] = h
	s.states[key] = Armed
	return Armed
}

// dispatch runs on the timer goroutine. A timer stopped after it already
// started finds a different generation and does nothing.
func (s *Scheduler) dispatch(key Key, gen uint64, fire func(context.Context)) {
	s.mu.Lock()
	h, ok := s.handles[key]
	if !ok || h.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.handles, key)
	s.states[key] = Fired
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	fire(context.Background())
}

// stopLocked stops and forgets the handle for key and reports whether one
// was armed.
func (s *Scheduler) stopLocked(key Key) bool {
	h, ok := s.handles[key]
	if !ok {
		return false
	}
	h.timer.Stop()
	delete(s.handles, key)
	return true
}

func (s *Scheduler) fireEvent(ctx context.Context, e store.CalendarEvent, at time.Time) {
	if e.CreatedBy == "" {
		s.log.WithField("event", e.ID).Warn("event reminder has no owner, skipped")
		return
	}
	when := e.Date
	if day, ok := store.ParseDate(e.Date, s.loc); ok {
		when = day.Format("02.01.2006")
	}
	if e.Time != "" {
		when += " в " + e.Time
	}
	s.notify(ctx, store.Notification{
		UserID:           e.CreatedBy,
		Type:             store.NotifyEventReminder,
		Title:            "Напоминание о событии",
		Message:          fmt.Sprintf("Напоминание: %q %s", e.Title, when),
		Link:             e.ID,
		LinkType:         store.LinkCalendar,
		EventID:          e.ID,
		NotificationType: DedupKind(KindEvent, at),
	})
}

func (s *Scheduler) fireTask(ctx context.Context, t store.Task, at time.Time) {
	for _, userID := range taskRecipients(t) {
		s.notify(ctx, store.Notification{
			UserID:           userID,
			Type:             store.NotifyTaskDeadline,
			Title:            "Скоро дедлайн",
			Message:          fmt.Sprintf("Напоминание: Задача %q должна быть выполнена завтра!", t.Title),
			Link:             t.ID,
			LinkType:         store.LinkTask,
			TaskID:           t.ID,
			NotificationType: DedupKind(KindTask, at),
		})
	}
}

func (s *Scheduler) notify(ctx context.Context, n store.Notification) {
	if s.notifier == nil {
		return
	}
	if _, created, err := s.notifier.AddUnique(ctx, n); err != nil {
		s.log.WithError(err).WithField("user", n.UserID).Error("record reminder")
	} else if !created {
		s.log.WithFields(logrus.Fields{"user": n.UserID, "kind": n.NotificationType}).Debug("reminder already recorded")
	}
}

// taskRecipients are the assignee and co-assignees, or the creator when
// nobody is assigned.
func taskRecipients(t store.Task) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	add(t.AssignedTo)
	for _, id := range t.CoAssignees {
		add(id)
	}
	if len(out) == 0 {
		add(t.Creator)
	}
	return out
}
