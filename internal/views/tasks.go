// Package views holds read-only projections over repository snapshots.
// Nothing here mutates its input or touches the store.
package views

import (
	"sort"
	"strings"
	"time"

	"skcrm/core/internal/store"
)

// Task filters.
const (
	FilterAll        = "all"
	FilterMy         = "my"
	FilterCreated    = "created"
	FilterCoAssigned = "coAssigned"
	FilterWatched    = "watched"
	FilterActive     = "active"
	FilterCompleted  = "completed"
)

// Task sorts.
const (
	SortNewest   = "newest"
	SortOldest   = "oldest"
	SortDeadline = "deadline"
	SortPriority = "priority"
	SortTitle    = "title"
)

// FilterTasks keeps the tasks matching filter for userID. Unknown filters
// behave as FilterAll.
func FilterTasks(tasks []store.Task, filter, userID string) []store.Task {
	keep := taskFilter(filter, userID)
	out := make([]store.Task, 0, len(tasks))
	for _, t := range tasks {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func taskFilter(filter, userID string) func(store.Task) bool {
	switch filter {
	case FilterMy:
		return func(t store.Task) bool { return t.AssignedTo == userID }
	case FilterCreated:
		return func(t store.Task) bool { return t.Creator == userID }
	case FilterCoAssigned:
		return func(t store.Task) bool { return t.IsCoAssignee(userID) }
	case FilterWatched:
		return func(t store.Task) bool { return t.IsWatcher(userID) }
	case FilterActive:
		return func(t store.Task) bool { return !t.IsDone() && t.Involves(userID) }
	case FilterCompleted:
		return func(t store.Task) bool { return t.IsDone() && t.Involves(userID) }
	default:
		return func(t store.Task) bool { return t.Involves(userID) }
	}
}

// VisibleTasks is FilterAll: tasks where userID holds any role.
func VisibleTasks(tasks []store.Task, userID string) []store.Task {
	return FilterTasks(tasks, FilterAll, userID)
}

// SortTasks returns a sorted copy. Every sort is stable; an unknown sort
// keeps input order.
func SortTasks(tasks []store.Task, by string, loc *time.Location) []store.Task {
	out := append([]store.Task(nil), tasks...)
	switch by {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortDeadline:
		sortByDeadline(out, loc)
	case SortPriority:
		sort.SliceStable(out, func(i, j int) bool { return PriorityRank(out[i].Priority) < PriorityRank(out[j].Priority) })
	case SortTitle:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	}
	return out
}

func sortByDeadline(tasks []store.Task, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	type keyed struct {
		task     store.Task
		deadline time.Time
		ok       bool
	}
	items := make([]keyed, len(tasks))
	for i, t := range tasks {
		d, ok := store.ParseDeadline(t.Deadline, loc)
		items[i] = keyed{task: t, deadline: d, ok: ok}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ok && b.ok {
			return a.deadline.Before(b.deadline)
		}
		return a.ok && !b.ok
	})
	for i, item := range items {
		tasks[i] = item.task
	}
}

// PriorityRank orders high before medium before low; anything else last.
func PriorityRank(priority string) int {
	switch priority {
	case store.PriorityHigh:
		return 0
	case store.PriorityMedium:
		return 1
	case store.PriorityLow:
		return 2
	default:
		return 3
	}
}

// SearchTasks matches query against the tasks visible to userID: title,
// description, checklist text, assignee and creator usernames, and tags.
func SearchTasks(tasks []store.Task, users []store.User, query, userID string) []store.Task {
	q := strings.ToLower(strings.TrimSpace(query))
	visible := VisibleTasks(tasks, userID)
	if q == "" {
		return visible
	}
	names := usernames(users)

	out := make([]store.Task, 0)
	for _, t := range visible {
		if taskMatches(t, names, q) {
			out = append(out, t)
		}
	}
	return out
}

func taskMatches(t store.Task, names map[string]string, q string) bool {
	if containsFold(t.Title, q) || containsFold(t.Description, q) {
		return true
	}
	for _, item := range t.Checklist {
		if containsFold(item.Text, q) {
			return true
		}
	}
	if name, ok := names[t.AssignedTo]; ok && t.AssignedTo != "" && containsFold(name, q) {
		return true
	}
	if name, ok := names[t.Creator]; ok && containsFold(name, q) {
		return true
	}
	for _, tag := range t.Tags {
		if containsFold(tag, q) {
			return true
		}
	}
	return false
}

func usernames(users []store.User) map[string]string {
	out := make(map[string]string, len(users))
	for _, u := range users {
		out[u.ID] = u.Username
	}
	return out
}

// containsFold reports whether s contains the already lower-cased q.
func containsFold(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}
