package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/repo"
	"skcrm/core/internal/search"
	"skcrm/core/internal/store"
)

var _ repo.Events = (*Service)(nil)

func (s *Service) TaskCreated(ctx context.Context, actorID string, task store.Task) {
	if task.AssignedTo != "" && task.AssignedTo != actorID {
		s.notify(ctx, store.Notification{
			UserID:   task.AssignedTo,
			Type:     store.NotifyTaskAssigned,
			Title:    "Вам назначена новая задача",
			Message:  fmt.Sprintf("Вам поставлена задача \"%s\"", task.Title),
			Link:     task.ID,
			LinkType: store.LinkTask,
		})
	}
	s.scheduler.ScheduleTask(task)
	s.search.IndexTask(task)
}

func (s *Service) TaskUpdated(ctx context.Context, actorID string, before, after store.Task) {
	completed := after.IsDone() && !before.IsDone()
	if completed && after.AssignedTo != "" && after.Creator != actorID {
		s.notify(ctx, store.Notification{
			UserID:   after.Creator,
			Type:     store.NotifyTaskCompleted,
			Title:    "Задача выполнена",
			Message:  fmt.Sprintf("Задача \"%s\" была выполнена", after.Title),
			Link:     after.ID,
			LinkType: store.LinkTask,
		})
	}
	// The armed callback holds a copy of the task, so any edit re-arms.
	s.scheduler.ScheduleTask(after)
	s.search.IndexTask(after)
}

func (s *Service) TaskDeleted(ctx context.Context, task store.Task) {
	s.scheduler.CancelTask(task.ID)
	if n, err := s.comments.RemoveForTask(ctx, task.ID); err != nil {
		s.log.WithError(err).WithField("task", task.ID).Error("remove task comments")
	} else if n > 0 {
		s.log.WithFields(logrus.Fields{"task": task.ID, "comments": n}).Debug("task comments removed")
	}
	s.search.Remove(search.ResultTask, task.ID)
}

func (s *Service) EventSaved(_ context.Context, event store.CalendarEvent) {
	s.scheduler.ScheduleEvent(event)
}

func (s *Service) EventDeleted(_ context.Context, event store.CalendarEvent) {
	s.scheduler.CancelEvent(event.ID)
}

func (s *Service) notify(ctx context.Context, n store.Notification) {
	created, err := s.notifications.Add(ctx, n)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user": n.UserID, "type": n.Type}).Error("record notification")
		return
	}
	s.relay(created)
}

// relay mails n to its recipient in the background when email
// notifications are switched on and the recipient has an address.
func (s *Service) relay(n store.Notification) {
	if s.mailer == nil || !s.mailer.IsConfigured() || !s.settings.Get().EmailNotifications {
		return
	}
	user, ok := s.users.ByID(n.UserID)
	if !ok || user.Email == "" {
		return
	}
	s.relays.Add(1)
	go func() {
		defer s.relays.Done()
		if err := s.mailer.SendNotification(user.Email, user.DisplayName(), n); err != nil {
			s.log.WithError(err).WithField("user", user.ID).Warn("email relay failed")
		}
	}()
}

// relayNotifier records reminder and sweep notifications and relays the
// ones that are new.
type relayNotifier struct {
	s *Service
}

func (r relayNotifier) AddUnique(ctx context.Context, n store.Notification) (store.Notification, bool, error) {
	created, ok, err := r.s.notifications.AddUnique(ctx, n)
	if err == nil && ok {
		r.s.relay(created)
	}
	return created, ok, err
}
