package app

import (
	"context"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/rbac"
	"skcrm/core/internal/repo"
	"skcrm/core/internal/search"
	"skcrm/core/internal/store"
	"skcrm/core/internal/views"
)

// Tasks lists the current user's tasks through filter, sorted by sortBy.
func (s *Service) Tasks(ctx context.Context, filter, sortBy string) ([]store.Task, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return views.SortTasks(views.FilterTasks(s.tasks.All(), filter, user.ID), sortBy, s.loc), nil
}

// Task returns one task the current user is involved in.
func (s *Service) Task(ctx context.Context, id string) (store.Task, error) {
	user, err := s.currentUser()
	if err != nil {
		return store.Task{}, err
	}
	task, ok := s.tasks.ByID(id)
	if !ok || !(task.Involves(user.ID) || rbac.Allowed(user, rbac.ActionUserManage)) {
		return store.Task{}, errTaskNotFound(id)
	}
	return task, nil
}

func (s *Service) CreateTask(ctx context.Context, in repo.TaskInput) (store.Task, error) {
	user, err := s.require(rbac.ActionTaskWrite)
	if err != nil {
		return store.Task{}, err
	}
	return s.tasks.Add(ctx, user.ID, in)
}

func (s *Service) UpdateTask(ctx context.Context, id string, patch repo.TaskPatch) (store.Task, error) {
	user, err := s.require(rbac.ActionTaskWrite)
	if err != nil {
		return store.Task{}, err
	}
	return s.tasks.Update(ctx, user.ID, id, patch)
}

func (s *Service) ChangeTaskStatus(ctx context.Context, id, status string) (store.Task, error) {
	user, err := s.require(rbac.ActionTaskWrite)
	if err != nil {
		return store.Task{}, err
	}
	return s.tasks.ChangeStatus(ctx, user.ID, id, status)
}

// DeleteTask removes a task together with its comments and reminder.
func (s *Service) DeleteTask(ctx context.Context, id string) (bool, error) {
	if _, err := s.require(rbac.ActionTaskWrite); err != nil {
		return false, err
	}
	return s.tasks.Remove(ctx, id)
}

func (s *Service) Templates(ctx context.Context) ([]store.TaskTemplate, error) {
	if _, err := s.currentUser(); err != nil {
		return nil, err
	}
	return s.templates.All(), nil
}

func (s *Service) SaveTemplate(ctx context.Context, name string, data store.TemplateData) (store.TaskTemplate, error) {
	if _, err := s.require(rbac.ActionTaskWrite); err != nil {
		return store.TaskTemplate{}, err
	}
	return s.templates.Add(ctx, name, data)
}

// ApplyTemplate creates a new task from a stored template.
func (s *Service) ApplyTemplate(ctx context.Context, templateID string) (store.Task, error) {
	user, err := s.require(rbac.ActionTaskWrite)
	if err != nil {
		return store.Task{}, err
	}
	tpl, ok := s.templates.ByID(templateID)
	if !ok {
		return store.Task{}, apperr.NotFound("TEMPLATE_NOT_FOUND", "template "+templateID+" not found")
	}
	return s.tasks.Add(ctx, user.ID, repo.TemplateInput(tpl))
}

func (s *Service) DeleteTemplate(ctx context.Context, id string) (bool, error) {
	if _, err := s.require(rbac.ActionTaskWrite); err != nil {
		return false, err
	}
	return s.templates.Remove(ctx, id)
}

func (s *Service) AddComment(ctx context.Context, taskID, text string) (store.Comment, error) {
	user, err := s.currentUser()
	if err != nil {
		return store.Comment{}, err
	}
	if _, ok := s.tasks.ByID(taskID); !ok {
		return store.Comment{}, errTaskNotFound(taskID)
	}
	return s.comments.Add(ctx, taskID, user.ID, text)
}

// DeleteComment removes a comment. Only its author or an admin may.
func (s *Service) DeleteComment(ctx context.Context, id string) (bool, error) {
	user, err := s.currentUser()
	if err != nil {
		return false, err
	}
	comment, ok := s.comments.ByID(id)
	if !ok {
		return false, errCommentNotFound(id)
	}
	if comment.UserID != user.ID && rbac.Normalize(user) != rbac.RoleAdmin {
		return false, apperr.Validation("FORBIDDEN", "only the author can delete this comment")
	}
	return s.comments.Remove(ctx, id)
}

func (s *Service) Comments(ctx context.Context, taskID string) ([]store.Comment, error) {
	if _, err := s.currentUser(); err != nil {
		return nil, err
	}
	return s.comments.ForTask(taskID), nil
}

func (s *Service) Board(ctx context.Context, filter string) (views.Board, error) {
	if _, err := s.currentUser(); err != nil {
		return views.Board{}, err
	}
	return views.ProjectBoard(s.projects.All(), s.stages.Order(), filter), nil
}

// Stages is the project pipeline, first to last.
func (s *Service) Stages(ctx context.Context) ([]store.ProjectStage, error) {
	if _, err := s.currentUser(); err != nil {
		return nil, err
	}
	return s.stages.Order(), nil
}

// AddStage appends a stage to the end of the pipeline.
func (s *Service) AddStage(ctx context.Context, name string) (store.ProjectStage, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return store.ProjectStage{}, err
	}
	return s.stages.Add(ctx, name)
}

func (s *Service) RenameStage(ctx context.Context, id, name string) (store.ProjectStage, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return store.ProjectStage{}, err
	}
	return s.stages.Rename(ctx, id, name)
}

// DeleteStage removes an empty stage. A stage that still holds projects is
// kept and reported as a ReferentialConflict.
func (s *Service) DeleteStage(ctx context.Context, id string) (bool, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return false, err
	}
	return s.stages.Remove(ctx, id)
}

func (s *Service) CreateProject(ctx context.Context, in repo.ProjectInput) (store.Project, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return store.Project{}, err
	}
	p, err := s.projects.Add(ctx, in)
	if err != nil {
		return store.Project{}, err
	}
	s.search.IndexProject(p)
	return p, nil
}

func (s *Service) UpdateProject(ctx context.Context, id string, patch repo.ProjectPatch) (store.Project, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return store.Project{}, err
	}
	p, err := s.projects.Update(ctx, id, patch)
	if err != nil {
		return store.Project{}, err
	}
	s.search.IndexProject(p)
	return p, nil
}

func (s *Service) MoveProject(ctx context.Context, id, stageID string) (store.Project, error) {
	return s.UpdateProject(ctx, id, repo.ProjectPatch{StageID: &stageID})
}

func (s *Service) DeleteProject(ctx context.Context, id string) (bool, error) {
	if _, err := s.require(rbac.ActionProjectWrite); err != nil {
		return false, err
	}
	removed, err := s.projects.Remove(ctx, id)
	if removed {
		s.search.Remove(search.ResultProject, id)
	}
	return removed, err
}

// CreateEvent adds a calendar event owned by the current user.
func (s *Service) CreateEvent(ctx context.Context, in repo.EventInput) (store.CalendarEvent, error) {
	user, err := s.require(rbac.ActionCalendarWrite)
	if err != nil {
		return store.CalendarEvent{}, err
	}
	in.CreatedBy = user.ID
	return s.calendar.Add(ctx, in)
}

func (s *Service) UpdateEvent(ctx context.Context, id string, patch repo.EventPatch) (store.CalendarEvent, error) {
	if _, err := s.require(rbac.ActionCalendarWrite); err != nil {
		return store.CalendarEvent{}, err
	}
	return s.calendar.Update(ctx, id, patch)
}

func (s *Service) DeleteEvent(ctx context.Context, id string) (bool, error) {
	if _, err := s.require(rbac.ActionCalendarWrite); err != nil {
		return false, err
	}
	return s.calendar.Remove(ctx, id)
}
