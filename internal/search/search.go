package search

import "skcrm/core/internal/store"

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultTask    ResultType = "task"
	ResultProject ResultType = "project"
	ResultUser    ResultType = "user"
)

// Result is a single quick-find hit.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
}

// Query describes a quick-find request against the index.
type Query struct {
	Text         string
	Limit        int
	IncludeUsers bool
}

// Viewer is who is searching.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

// Snapshot is the data the local scan and the post-filter read.
type Snapshot struct {
	Tasks    []store.Task
	Projects []store.Project
	Users    []store.User
}

// Results is the global search answer: three independent lists in
// repository order.
type Results struct {
	Tasks    []store.Task    `json:"tasks"`
	Projects []store.Project `json:"projects"`
	Users    []store.User    `json:"users"`
}

// Engine is a ranked full-text index.
type Engine interface {
	Healthy() bool
	Search(q Query) ([]Result, int, error)
	IndexTasks(tasks []TaskRecord) error
	IndexProjects(projects []ProjectRecord) error
	IndexUsers(users []UserRecord) error
	Delete(kind ResultType, id string) error
}

// TaskRecord is the data we index for a task.
type TaskRecord struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
}

// ProjectRecord is the data we index for a project.
type ProjectRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Fields      []string `json:"fields"`
}

// UserRecord is the data we index for a user.
type UserRecord struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Position   string `json:"position"`
	Department string `json:"department"`
}

func taskRecord(t store.Task) TaskRecord {
	return TaskRecord{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Tags:        t.Tags,
	}
}

func projectRecord(p store.Project) ProjectRecord {
	fields := make([]string, 0, len(p.Fields)*2)
	for _, f := range p.Fields {
		fields = append(fields, f.Name, f.Value)
	}
	return ProjectRecord{ID: p.ID, Name: p.Name, Description: p.Description, Fields: fields}
}

func userRecord(u store.User) UserRecord {
	return UserRecord{
		ID:         u.ID,
		Username:   u.Username,
		FullName:   u.FullName(),
		Email:      u.Email,
		Position:   u.Position,
		Department: u.Department,
	}
}
