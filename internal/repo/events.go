package repo

import (
	"context"

	"skcrm/core/internal/store"
)

// Events receives side effects after a mutation has been committed. Calls
// happen outside the repository lock, inline on the mutating goroutine.
type Events interface {
	TaskCreated(ctx context.Context, actorID string, task store.Task)
	TaskUpdated(ctx context.Context, actorID string, before, after store.Task)
	TaskDeleted(ctx context.Context, task store.Task)
	EventSaved(ctx context.Context, event store.CalendarEvent)
	EventDeleted(ctx context.Context, event store.CalendarEvent)
}

// NopEvents ignores everything.
type NopEvents struct{}

func (NopEvents) TaskCreated(context.Context, string, store.Task)             {}
func (NopEvents) TaskUpdated(context.Context, string, store.Task, store.Task) {}
func (NopEvents) TaskDeleted(context.Context, store.Task)                     {}
func (NopEvents) EventSaved(context.Context, store.CalendarEvent)             {}
func (NopEvents) EventDeleted(context.Context, store.CalendarEvent)           {}
