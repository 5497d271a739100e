package repo

import (
	"context"
	"strings"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

type TaskInput struct {
	Title       string
	Description string
	Priority    string
	AssignedTo  string
	CoAssignees []string
	Watchers    []string
	Deadline    string
	ProjectID   string
	Checklist   []store.ChecklistItem
	Tags        []string
}

// TaskPatch carries only the fields being changed.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssignedTo  *string
	CoAssignees *[]string
	Watchers    *[]string
	Deadline    *string
	ProjectID   *string
	Checklist   *[]store.ChecklistItem
	Tags        *[]string
}

type Tasks struct {
	env    Env
	col    *collection[store.Task]
	events Events
}

func NewTasks(env Env) *Tasks {
	env = env.withDefaults()
	return &Tasks{
		env:    env,
		col:    newCollection(env.Store, store.KeyTasks, func(t store.Task) string { return t.ID }, cloneTask),
		events: NopEvents{},
	}
}

// SetEvents installs the side-effect sink. Call before the first mutation.
func (r *Tasks) SetEvents(events Events) {
	if events == nil {
		events = NopEvents{}
	}
	r.events = events
}

func (r *Tasks) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *Tasks) All() []store.Task {
	return r.col.all()
}

func (r *Tasks) ByID(id string) (store.Task, bool) {
	return r.col.byID(id)
}

// Add creates a task owned by creatorID with status new.
func (r *Tasks) Add(ctx context.Context, creatorID string, in TaskInput) (store.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Task{}, apperr.Validation("TITLE_REQUIRED", "task title is required")
	}
	if creatorID == "" {
		return store.Task{}, apperr.Validation("CREATOR_REQUIRED", "task creator is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = store.PriorityMedium
	}
	if !validPriority(priority) {
		return store.Task{}, apperr.Validation("INVALID_PRIORITY", "unknown priority "+priority)
	}
	if err := r.validateDeadline(in.Deadline); err != nil {
		return store.Task{}, err
	}

	now := r.env.Now()
	task := store.Task{
		ID:          r.env.NewID(),
		Title:       title,
		Description: in.Description,
		Status:      store.StatusNew,
		Priority:    priority,
		Creator:     creatorID,
		AssignedTo:  in.AssignedTo,
		CoAssignees: nonNilStrings(in.CoAssignees),
		Watchers:    nonNilStrings(in.Watchers),
		Deadline:    in.Deadline,
		ProjectID:   in.ProjectID,
		Checklist:   nonNilChecklist(in.Checklist),
		Tags:        nonNilStrings(in.Tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.col.mu.Lock()
	err := r.col.appendLocked(ctx, task)
	r.col.mu.Unlock()
	if err != nil {
		return store.Task{}, err
	}

	r.events.TaskCreated(ctx, creatorID, cloneTask(task))
	return cloneTask(task), nil
}

// Update merges patch over the task. actorID is the user making the change.
func (r *Tasks) Update(ctx context.Context, actorID, id string, patch TaskPatch) (store.Task, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return store.Task{}, apperr.Validation("TITLE_REQUIRED", "task title is required")
	}
	if patch.Priority != nil && !validPriority(*patch.Priority) {
		return store.Task{}, apperr.Validation("INVALID_PRIORITY", "unknown priority "+*patch.Priority)
	}
	if patch.Status != nil && strings.TrimSpace(*patch.Status) == "" {
		return store.Task{}, apperr.Validation("STATUS_REQUIRED", "task status is required")
	}
	if patch.Deadline != nil {
		if err := r.validateDeadline(*patch.Deadline); err != nil {
			return store.Task{}, err
		}
	}

	r.col.mu.Lock()
	i := r.col.indexLocked(id)
	if i < 0 {
		r.col.mu.Unlock()
		return store.Task{}, apperr.NotFound("TASK_NOT_FOUND", "task "+id+" not found")
	}
	before := cloneTask(r.col.items[i])
	after := applyTaskPatch(cloneTask(before), patch)
	after.UpdatedAt = r.env.Now()
	if after.UpdatedAt.Before(before.UpdatedAt) {
		after.UpdatedAt = before.UpdatedAt
	}
	err := r.col.replaceLocked(ctx, i, after)
	r.col.mu.Unlock()
	if err != nil {
		return store.Task{}, err
	}

	r.events.TaskUpdated(ctx, actorID, before, cloneTask(after))
	return cloneTask(after), nil
}

func (r *Tasks) ChangeStatus(ctx context.Context, actorID, id, status string) (store.Task, error) {
	return r.Update(ctx, actorID, id, TaskPatch{Status: &status})
}

func (r *Tasks) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	i := r.col.indexLocked(id)
	if i < 0 {
		r.col.mu.Unlock()
		return false, nil
	}
	removed := r.col.items[i]
	_, err := r.col.filterLocked(ctx, func(t store.Task) bool { return t.ID != id })
	r.col.mu.Unlock()
	if err != nil {
		return false, err
	}

	r.events.TaskDeleted(ctx, removed)
	return true, nil
}

// ReferencesUser reports whether any task names userID in any role.
func (r *Tasks) ReferencesUser(userID string) bool {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	return r.referencesLocked(userID)
}

// UnlessReferenced runs remove under the task lock when no task names
// userID. Tasks naming the user cannot be added until remove returns.
func (r *Tasks) UnlessReferenced(userID string, remove func() error) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if r.referencesLocked(userID) {
		return true, nil
	}
	return false, remove()
}

func (r *Tasks) referencesLocked(userID string) bool {
	for _, task := range r.col.items {
		if task.Involves(userID) {
			return true
		}
	}
	return false
}

func (r *Tasks) validateDeadline(deadline string) error {
	if deadline == "" {
		return nil
	}
	if _, ok := store.ParseDeadline(deadline, r.env.Now().Location()); !ok {
		return apperr.Validation("INVALID_DEADLINE", "deadline must be YYYY-MM-DD or YYYY-MM-DDTHH:MM")
	}
	return nil
}

func applyTaskPatch(task store.Task, patch TaskPatch) store.Task {
	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		task.AssignedTo = *patch.AssignedTo
	}
	if patch.CoAssignees != nil {
		task.CoAssignees = nonNilStrings(*patch.CoAssignees)
	}
	if patch.Watchers != nil {
		task.Watchers = nonNilStrings(*patch.Watchers)
	}
	if patch.Deadline != nil {
		task.Deadline = *patch.Deadline
	}
	if patch.ProjectID != nil {
		task.ProjectID = *patch.ProjectID
	}
	if patch.Checklist != nil {
		task.Checklist = nonNilChecklist(*patch.Checklist)
	}
	if patch.Tags != nil {
		task.Tags = nonNilStrings(*patch.Tags)
	}
	return task
}

func validPriority(p string) bool {
	switch p {
	case store.PriorityHigh, store.PriorityMedium, store.PriorityLow:
		return true
	default:
		return false
	}
}

func cloneTask(t store.Task) store.Task {
	t.CoAssignees = cloneStrings(t.CoAssignees)
	t.Watchers = cloneStrings(t.Watchers)
	t.Tags = cloneStrings(t.Tags)
	if t.Checklist != nil {
		t.Checklist = nonNilChecklist(t.Checklist)
	}
	return t
}

func nonNilStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func nonNilChecklist(items []store.ChecklistItem) []store.ChecklistItem {
	out := make([]store.ChecklistItem, len(items))
	copy(out, items)
	return out
}
