package app

import (
	"context"
	"time"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/rbac"
	"skcrm/core/internal/repo"
	"skcrm/core/internal/search"
	"skcrm/core/internal/store"
	"skcrm/core/internal/views"
)

// ListUsers is the admin user list, narrowed by filter and query.
func (s *Service) ListUsers(ctx context.Context, filter, query string) ([]store.User, error) {
	if _, err := s.require(rbac.ActionUserManage); err != nil {
		return nil, err
	}
	return views.FilterUsers(s.users.All(), filter, query), nil
}

// CreateUser stores a new account with a hashed password.
func (s *Service) CreateUser(ctx context.Context, in repo.UserInput) (store.User, error) {
	if _, err := s.require(rbac.ActionUserManage); err != nil {
		return store.User{}, err
	}
	if in.Password == "" {
		return store.User{}, apperr.Validation("PASSWORD_REQUIRED", "password is required")
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return store.User{}, err
	}
	in.Password = hash
	user, err := s.users.Add(ctx, in)
	if err != nil {
		return store.User{}, err
	}
	s.search.IndexUser(user)
	return user, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, patch repo.UserPatch) (store.User, error) {
	if _, err := s.require(rbac.ActionUserManage); err != nil {
		return store.User{}, err
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			patch.Password = nil
		} else {
			hash, err := s.hasher.Hash(*patch.Password)
			if err != nil {
				return store.User{}, err
			}
			patch.Password = &hash
		}
	}
	user, err := s.users.Update(ctx, id, patch)
	if err != nil {
		return store.User{}, err
	}
	s.search.IndexUser(user)
	return user, nil
}

// DeleteUser removes an account. The logged-in user cannot delete
// themselves, and a user still named on a task is kept.
func (s *Service) DeleteUser(ctx context.Context, id string) (bool, error) {
	admin, err := s.require(rbac.ActionUserManage)
	if err != nil {
		return false, err
	}
	if admin.ID == id {
		return false, apperr.Validation("CANNOT_DELETE_SELF", "Нельзя удалить свою учетную запись")
	}
	removed, err := s.users.Remove(ctx, id)
	if removed {
		s.search.Remove(search.ResultUser, id)
	}
	return removed, err
}

// ProfilePatch is what users may change about themselves. Role and
// activity stay with admins; the password goes through ChangePassword.
type ProfilePatch struct {
	Email      *string
	Position   *string
	Department *string
	FirstName  *string
	LastName   *string
	Phone      *string
	Avatar     *string
}

// UpdateProfile edits the current user's own profile.
func (s *Service) UpdateProfile(ctx context.Context, patch ProfilePatch) (store.User, error) {
	user, err := s.currentUser()
	if err != nil {
		return store.User{}, err
	}
	updated, err := s.users.Update(ctx, user.ID, repo.UserPatch{
		Email:      patch.Email,
		Position:   patch.Position,
		Department: patch.Department,
		FirstName:  patch.FirstName,
		LastName:   patch.LastName,
		Phone:      patch.Phone,
		Avatar:     patch.Avatar,
	})
	if err != nil {
		return store.User{}, err
	}
	s.search.IndexUser(updated)
	return updated, nil
}

// Person resolves a user id for display. Unknown ids get a placeholder.
func (s *Service) Person(id string) views.Person {
	return views.ResolveUser(s.users.All(), id)
}

func (s *Service) SendMessage(ctx context.Context, recipientID, text string) (store.Message, error) {
	user, err := s.require(rbac.ActionMessageSend)
	if err != nil {
		return store.Message{}, err
	}
	if _, ok := s.users.ByID(recipientID); !ok {
		return store.Message{}, apperr.NotFound("USER_NOT_FOUND", "user "+recipientID+" not found")
	}
	return s.messages.Send(ctx, user.ID, recipientID, text)
}

// OpenConversation marks the messages from otherID as read and returns the
// whole exchange, oldest first.
func (s *Service) OpenConversation(ctx context.Context, otherID string) ([]store.Message, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	if _, err := s.messages.MarkRead(ctx, user.ID, otherID); err != nil {
		return nil, err
	}
	return s.messages.Between(user.ID, otherID), nil
}

func (s *Service) Conversations(ctx context.Context) ([]views.ConversationView, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return views.Conversations(s.messages.ConversationsFor(user.ID), s.users.All(), user.ID), nil
}

func (s *Service) MyNotifications(ctx context.Context) ([]store.Notification, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return s.notifications.ForUser(user.ID), nil
}

// MarkNotificationRead marks one of the current user's notifications read.
func (s *Service) MarkNotificationRead(ctx context.Context, id string) (bool, error) {
	user, err := s.currentUser()
	if err != nil {
		return false, err
	}
	n, ok := s.notifications.ByID(id)
	if !ok || n.UserID != user.ID {
		return false, apperr.NotFound("NOTIFICATION_NOT_FOUND", "notification "+id+" not found")
	}
	return s.notifications.MarkRead(ctx, id)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	user, err := s.currentUser()
	if err != nil {
		return 0, err
	}
	return s.notifications.MarkAllRead(ctx, user.ID)
}

func (s *Service) Dashboard(ctx context.Context) (views.Dashboard, error) {
	user, err := s.currentUser()
	if err != nil {
		return views.Dashboard{}, err
	}
	return views.BuildDashboard(views.DashboardInput{
		UserID:        user.ID,
		Now:           s.clock.Now(),
		Tasks:         s.tasks.All(),
		Projects:      s.projects.All(),
		Notifications: s.notifications.All(),
		Messages:      s.messages.All(),
	}), nil
}

// Calendar lists events and visible task deadlines in [from, to).
func (s *Service) Calendar(ctx context.Context, from, to time.Time) ([]views.Entry, error) {
	user, err := s.currentUser()
	if err != nil {
		return nil, err
	}
	return views.CalendarEntries(s.calendar.All(), views.VisibleTasks(s.tasks.All(), user.ID), from.In(s.loc), to.In(s.loc)), nil
}

// Search is the full global search: matching tasks, projects and, for
// admins, users.
func (s *Service) Search(ctx context.Context, query string) (search.Results, error) {
	viewer, err := s.viewer()
	if err != nil {
		return search.Results{}, err
	}
	return s.search.Global(s.snapshot(), query, viewer), nil
}

// QuickFind answers the search box, from the index when one is reachable.
func (s *Service) QuickFind(ctx context.Context, query string, limit int) ([]search.Result, error) {
	viewer, err := s.viewer()
	if err != nil {
		return nil, err
	}
	return s.search.QuickFind(s.snapshot(), query, viewer, limit), nil
}

func (s *Service) viewer() (search.Viewer, error) {
	user, err := s.currentUser()
	if err != nil {
		return search.Viewer{}, err
	}
	return search.Viewer{UserID: user.ID, IsAdmin: rbac.Allowed(user, rbac.ActionUserSearch)}, nil
}
