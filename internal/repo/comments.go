package repo

import (
	"context"
	"sort"
	"strings"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

type Comments struct {
	env Env
	col *collection[store.Comment]
}

func NewComments(env Env) *Comments {
	env = env.withDefaults()
	return &Comments{
		env: env,
		col: newCollection(env.Store, store.KeyComments, func(c store.Comment) string { return c.ID }, nil),
	}
}

func (r *Comments) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *Comments) All() []store.Comment {
	return r.col.all()
}

func (r *Comments) ByID(id string) (store.Comment, bool) {
	return r.col.byID(id)
}

func (r *Comments) Add(ctx context.Context, taskID, userID, text string) (store.Comment, error) {
	text = strings.TrimSpace(text)
	if taskID == "" || userID == "" || text == "" {
		return store.Comment{}, apperr.Validation("COMMENT_FIELDS_REQUIRED", "task, author and text are required")
	}
	comment := store.Comment{
		ID:        r.env.NewID(),
		TaskID:    taskID,
		UserID:    userID,
		Text:      text,
		CreatedAt: r.env.Now(),
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if err := r.col.appendLocked(ctx, comment); err != nil {
		return store.Comment{}, err
	}
	return comment, nil
}

// ForTask returns the task's comments oldest first.
func (r *Comments) ForTask(taskID string) []store.Comment {
	var out []store.Comment
	for _, c := range r.col.all() {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *Comments) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	removed, err := r.col.filterLocked(ctx, func(c store.Comment) bool { return c.ID != id })
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// RemoveForTask drops every comment on taskID and returns how many went.
func (r *Comments) RemoveForTask(ctx context.Context, taskID string) (int, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	return r.col.filterLocked(ctx, func(c store.Comment) bool { return c.TaskID != taskID })
}
