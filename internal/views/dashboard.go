package views

import (
	"sort"
	"time"

	"skcrm/core/internal/store"
)

type Dashboard struct {
	TasksNew            int
	TasksInProgress     int
	TasksDone           int
	Overdue             int
	ProjectsActive      int
	ProjectsCompleted   int
	UnreadNotifications int
	UnreadMessages      int
}

// DashboardInput is everything BuildDashboard reads.
type DashboardInput struct {
	UserID        string
	Now           time.Time
	Tasks         []store.Task
	Projects      []store.Project
	Notifications []store.Notification
	Messages      []store.Message
}

// BuildDashboard counts the tasks visible to the user per status, the
// projects per completion state and the user's unread items.
func BuildDashboard(in DashboardInput) Dashboard {
	var d Dashboard
	for _, t := range VisibleTasks(in.Tasks, in.UserID) {
		switch t.Status {
		case store.StatusNew:
			d.TasksNew++
		case store.StatusInProgress:
			d.TasksInProgress++
		case store.StatusDone:
			d.TasksDone++
		}
		if IsOverdue(t, in.Now) {
			d.Overdue++
		}
	}
	for _, p := range in.Projects {
		if p.IsCompleted {
			d.ProjectsCompleted++
		} else {
			d.ProjectsActive++
		}
	}
	for _, n := range in.Notifications {
		if n.UserID == in.UserID && !n.IsRead {
			d.UnreadNotifications++
		}
	}
	for _, m := range in.Messages {
		if m.RecipientID == in.UserID && !m.IsRead {
			d.UnreadMessages++
		}
	}
	return d
}

// IsOverdue reports whether an unfinished task's deadline is before now.
func IsOverdue(t store.Task, now time.Time) bool {
	if t.IsDone() {
		return false
	}
	deadline, ok := store.ParseDeadline(t.Deadline, now.Location())
	return ok && deadline.Before(now)
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
	store.Conversation
	Other       Person
	UnreadCount int
}

// Conversations lists userID's conversations newest first, each resolved
// against users.
func Conversations(convs []store.Conversation, users []store.User, userID string) []ConversationView {
	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		if !c.Has(userID) {
			continue
		}
		out = append(out, ConversationView{
			Conversation: c,
			Other:        ResolveUser(users, c.Other(userID)),
			UnreadCount:  c.UnreadFor(userID),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageTime.After(out[j].LastMessageTime) })
	return out
}
