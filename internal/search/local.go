package search

import (
	"strings"

	"skcrm/core/internal/store"
	"skcrm/core/internal/views"
)

// Global is the exact substring search over the in-memory snapshot. Tasks
// are limited to those the viewer holds a role on and users are searched
// only for admins. An empty query matches nothing.
func Global(snap Snapshot, query string, viewer Viewer) Results {
	res := Results{
		Tasks:    []store.Task{},
		Projects: []store.Project{},
		Users:    []store.User{},
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return res
	}

	for _, t := range views.VisibleTasks(snap.Tasks, viewer.UserID) {
		if anyContains(q, t.Title, t.Description, t.Status, t.Priority) {
			res.Tasks = append(res.Tasks, t)
		}
	}
	for _, p := range snap.Projects {
		if projectMatches(p, q) {
			res.Projects = append(res.Projects, p)
		}
	}
	if viewer.IsAdmin {
		for _, u := range snap.Users {
			if anyContains(q, u.Username, u.Email, u.Position, u.Department) {
				res.Users = append(res.Users, u)
			}
		}
	}
	return res
}

func projectMatches(p store.Project, q string) bool {
	if anyContains(q, p.Name) {
		return true
	}
	for _, f := range p.Fields {
		if anyContains(q, f.Name, f.Value) {
			return true
		}
	}
	return false
}

func anyContains(q string, values ...string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// Flatten turns global results into quick-find hits: tasks, then projects,
// then users.
func (r Results) Flatten() []Result {
	out := make([]Result, 0, len(r.Tasks)+len(r.Projects)+len(r.Users))
	for _, t := range r.Tasks {
		out = append(out, Result{Type: ResultTask, ID: t.ID, Title: t.Title, Snippet: t.Description})
	}
	for _, p := range r.Projects {
		out = append(out, Result{Type: ResultProject, ID: p.ID, Title: p.Name, Snippet: p.Description})
	}
	for _, u := range r.Users {
		out = append(out, Result{Type: ResultUser, ID: u.ID, Title: u.Username, Snippet: u.Email})
	}
	return out
}
