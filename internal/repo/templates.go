package repo

import (
	"context"
	"strings"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

type Templates struct {
	env Env
	col *collection[store.TaskTemplate]
}

func NewTemplates(env Env) *Templates {
	env = env.withDefaults()
	return &Templates{
		env: env,
		col: newCollection(env.Store, store.KeyTaskTemplates, func(t store.TaskTemplate) string { return t.ID }, cloneTemplate),
	}
}

func (r *Templates) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *Templates) All() []store.TaskTemplate {
	return r.col.all()
}

func (r *Templates) ByID(id string) (store.TaskTemplate, bool) {
	return r.col.byID(id)
}

func (r *Templates) Add(ctx context.Context, name string, data store.TemplateData) (store.TaskTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.TaskTemplate{}, apperr.Validation("NAME_REQUIRED", "template name is required")
	}
	tpl := cloneTemplate(store.TaskTemplate{
		ID:        r.env.NewID(),
		Name:      name,
		Data:      data,
		CreatedAt: r.env.Now(),
	})

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if err := r.col.appendLocked(ctx, tpl); err != nil {
		return store.TaskTemplate{}, err
	}
	return cloneTemplate(tpl), nil
}

func (r *Templates) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	removed, err := r.col.filterLocked(ctx, func(t store.TaskTemplate) bool { return t.ID != id })
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// TemplateInput turns a template into task input.
func TemplateInput(t store.TaskTemplate) TaskInput {
	return TaskInput{
		Title:       t.Data.Title,
		Description: t.Data.Description,
		Priority:    t.Data.Priority,
		AssignedTo:  t.Data.AssignedTo,
		ProjectID:   t.Data.ProjectID,
		Checklist:   nonNilChecklist(t.Data.Checklist),
		Tags:        nonNilStrings(t.Data.Tags),
	}
}

func cloneTemplate(t store.TaskTemplate) store.TaskTemplate {
	t.Data.Checklist = nonNilChecklist(t.Data.Checklist)
	t.Data.Tags = nonNilStrings(t.Data.Tags)
	return t
}
