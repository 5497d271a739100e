package app

import (
	"context"
	"fmt"
	"time"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/backup"
	"skcrm/core/internal/export"
	"skcrm/core/internal/rbac"
	"skcrm/core/internal/views"
)

// ExportCalendar renders every event and the current user's task deadlines
// as an iCalendar file.
func (s *Service) ExportCalendar(ctx context.Context) (export.Result, error) {
	user, err := s.currentUser()
	if err != nil {
		return export.Result{}, err
	}
	return s.exporter.Calendar(s.calendar.All(), views.VisibleTasks(s.tasks.All(), user.ID)), nil
}

// ExportAgendaPDF prints the agenda of days starting at from. It needs a
// local Chrome.
func (s *Service) ExportAgendaPDF(ctx context.Context, from time.Time, days int) (*export.Result, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return s.exporter.Agenda(ctx, export.AgendaRequest{
		Owner:  user.DisplayName(),
		From:   from,
		Days:   days,
		Events: s.calendar.All(),
		Tasks:  views.VisibleTasks(s.tasks.All(), user.ID),
	})
}

// PublishCalendar uploads the current user's calendar to object storage
// and returns the object name.
func (s *Service) PublishCalendar(ctx context.Context) (string, error) {
	res, err := s.ExportCalendar(ctx)
	if err != nil {
		return "", err
	}
	if s.backup == nil {
		return "", apperr.Validation("PUBLISH_UNAVAILABLE", "object storage is not configured")
	}
	if err := s.backup.Publish(ctx, backup.CalendarObjectName, res.Data, res.MimeType); err != nil {
		return "", err
	}
	return backup.CalendarObjectName, nil
}

// Snapshot commits the stored collections to the backup history.
func (s *Service) Snapshot(ctx context.Context, message string) (backup.Commit, error) {
	user, err := s.currentUser()
	if err != nil {
		return backup.Commit{}, err
	}
	if s.backup == nil {
		return backup.Commit{}, apperr.Validation("BACKUP_UNAVAILABLE", "backups are not configured")
	}
	return s.backup.Snapshot(ctx, user.DisplayName(), message)
}

func (s *Service) SnapshotHistory(ctx context.Context, limit int) ([]backup.Commit, error) {
	if _, err := s.currentUser(); err != nil {
		return nil, err
	}
	if s.backup == nil {
		return []backup.Commit{}, nil
	}
	return s.backup.History(limit)
}

// RestoreSnapshot writes a snapshot back and reloads everything from the
// store, as on startup.
func (s *Service) RestoreSnapshot(ctx context.Context, hash string) ([]string, error) {
	if _, err := s.require(rbac.ActionSettingsAdmin); err != nil {
		return nil, err
	}
	if s.backup == nil {
		return nil, apperr.Validation("BACKUP_UNAVAILABLE", "backups are not configured")
	}
	keys, err := s.backup.Restore(ctx, hash)
	if err != nil {
		return nil, err
	}
	if err := s.initRepos(ctx); err != nil {
		return keys, fmt.Errorf("reload after restore: %w", err)
	}
	s.scheduler.Rebuild(s.calendar.All(), s.tasks.All())
	s.search.ReindexAll(s.snapshot())
	return keys, nil
}
