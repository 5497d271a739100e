package repo

import (
	"context"
	"strings"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

type EventInput struct {
	Title       string
	Description string
	Date        string
	Time        string
	Reminder    int
	CreatedBy   string
}

type EventPatch struct {
	Title       *string
	Description *string
	Date        *string
	Time        *string
	Reminder    *int
}

type CalendarEvents struct {
	env    Env
	col    *collection[store.CalendarEvent]
	events Events
}

func NewCalendarEvents(env Env) *CalendarEvents {
	env = env.withDefaults()
	return &CalendarEvents{
		env:    env,
		col:    newCollection(env.Store, store.KeyCalendarEvents, func(e store.CalendarEvent) string { return e.ID }, nil),
		events: NopEvents{},
	}
}

func (r *CalendarEvents) SetEvents(events Events) {
	if events == nil {
		events = NopEvents{}
	}
	r.events = events
}

func (r *CalendarEvents) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *CalendarEvents) All() []store.CalendarEvent {
	return r.col.all()
}

func (r *CalendarEvents) ByID(id string) (store.CalendarEvent, bool) {
	return r.col.byID(id)
}

func (r *CalendarEvents) Add(ctx context.Context, in EventInput) (store.CalendarEvent, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.CalendarEvent{}, apperr.Validation("TITLE_REQUIRED", "event title is required")
	}
	if err := r.validate(in.Date, in.Time, in.Reminder); err != nil {
		return store.CalendarEvent{}, err
	}

	now := r.env.Now()
	event := store.CalendarEvent{
		ID:          r.env.NewID(),
		Title:       title,
		Description: in.Description,
		Date:        strings.TrimSpace(in.Date),
		Time:        strings.TrimSpace(in.Time),
		Reminder:    in.Reminder,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.col.mu.Lock()
	err := r.col.appendLocked(ctx, event)
	r.col.mu.Unlock()
	if err != nil {
		return store.CalendarEvent{}, err
	}

	r.events.EventSaved(ctx, event)
	return event, nil
}

func (r *CalendarEvents) Update(ctx context.Context, id string, patch EventPatch) (store.CalendarEvent, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return store.CalendarEvent{}, apperr.Validation("TITLE_REQUIRED", "event title is required")
	}

	r.col.mu.Lock()
	i := r.col.indexLocked(id)
	if i < 0 {
		r.col.mu.Unlock()
		return store.CalendarEvent{}, apperr.NotFound("EVENT_NOT_FOUND", "event "+id+" not found")
	}
	event := r.col.items[i]
	if patch.Title != nil {
		event.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		event.Description = *patch.Description
	}
	if patch.Date != nil {
		event.Date = strings.TrimSpace(*patch.Date)
	}
	if patch.Time != nil {
		event.Time = strings.TrimSpace(*patch.Time)
	}
	if patch.Reminder != nil {
		event.Reminder = *patch.Reminder
	}
	if err := r.validate(event.Date, event.Time, event.Reminder); err != nil {
		r.col.mu.Unlock()
		return store.CalendarEvent{}, err
	}
	event.UpdatedAt = r.env.Now()
	err := r.col.replaceLocked(ctx, i, event)
	r.col.mu.Unlock()
	if err != nil {
		return store.CalendarEvent{}, err
	}

	r.events.EventSaved(ctx, event)
	return event, nil
}

func (r *CalendarEvents) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	i := r.col.indexLocked(id)
	if i < 0 {
		r.col.mu.Unlock()
		return false, nil
	}
	removed := r.col.items[i]
	_, err := r.col.filterLocked(ctx, func(e store.CalendarEvent) bool { return e.ID != id })
	r.col.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.events.EventDeleted(ctx, removed)
	return true, nil
}

func (r *CalendarEvents) validate(date, clock string, reminder int) error {
	if strings.TrimSpace(date) == "" {
		return apperr.Validation("DATE_REQUIRED", "event date is required")
	}
	if _, ok := store.ParseDate(date, r.env.Now().Location()); !ok {
		return apperr.Validation("INVALID_DATE", "event date must be YYYY-MM-DD")
	}
	if strings.TrimSpace(clock) != "" {
		if _, _, ok := store.ParseClock(clock); !ok {
			return apperr.Validation("INVALID_TIME", "event time must be HH:MM")
		}
	}
	if reminder < 0 {
		return apperr.Validation("INVALID_REMINDER", "reminder must not be negative")
	}
	return nil
}
