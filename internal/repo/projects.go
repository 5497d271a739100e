package repo

import (
	"context"
	"strconv"
	"strings"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

// StageOrder is the ordered stage sequence projects move through.
type StageOrder interface {
	Order() []store.ProjectStage
}

type ProjectInput struct {
	Name        string
	Description string
	StageID     string
	Fields      []store.ProjectField
}

type ProjectPatch struct {
	Name        *string
	Description *string
	StageID     *string
	Fields      *[]store.ProjectField
}

type Projects struct {
	env    Env
	col    *collection[store.Project]
	stages StageOrder
}

func NewProjects(env Env, stages StageOrder) *Projects {
	env = env.withDefaults()
	return &Projects{
		env:    env,
		col:    newCollection(env.Store, store.KeyProjects, func(p store.Project) string { return p.ID }, cloneProject),
		stages: stages,
	}
}

func (r *Projects) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *Projects) All() []store.Project {
	return r.col.all()
}

func (r *Projects) ByID(id string) (store.Project, bool) {
	return r.col.byID(id)
}

// Add creates a project. An empty StageID means the first stage.
func (r *Projects) Add(ctx context.Context, in ProjectInput) (store.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return store.Project{}, apperr.Validation("NAME_REQUIRED", "project name is required")
	}
	order := r.stages.Order()
	stageID := in.StageID
	if stageID == "" && len(order) > 0 {
		stageID = order[0].ID
	}
	if stageID != "" && stageIndex(order, stageID) < 0 {
		return store.Project{}, apperr.Validation("UNKNOWN_STAGE", "unknown stage "+stageID)
	}

	now := r.env.Now()
	project := store.Project{
		ID:          r.env.NewID(),
		Name:        name,
		Description: in.Description,
		StageID:     stageID,
		Fields:      nonNilFields(in.Fields),
		IsCompleted: isLastStage(order, stageID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if err := r.col.appendLocked(ctx, project); err != nil {
		return store.Project{}, err
	}
	return cloneProject(project), nil
}

func (r *Projects) Update(ctx context.Context, id string, patch ProjectPatch) (store.Project, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return store.Project{}, apperr.Validation("NAME_REQUIRED", "project name is required")
	}
	order := r.stages.Order()
	if patch.StageID != nil && stageIndex(order, *patch.StageID) < 0 {
		return store.Project{}, apperr.Validation("UNKNOWN_STAGE", "unknown stage "+*patch.StageID)
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	i := r.col.indexLocked(id)
	if i < 0 {
		return store.Project{}, apperr.NotFound("PROJECT_NOT_FOUND", "project "+id+" not found")
	}
	project := cloneProject(r.col.items[i])
	if patch.Name != nil {
		project.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	if patch.StageID != nil {
		project.StageID = *patch.StageID
		project.IsCompleted = isLastStage(order, project.StageID)
	}
	if patch.Fields != nil {
		project.Fields = nonNilFields(*patch.Fields)
	}
	project.UpdatedAt = r.env.Now()
	if err := r.col.replaceLocked(ctx, i, project); err != nil {
		return store.Project{}, err
	}
	return cloneProject(project), nil
}

// MoveStage moves a project to stageID. Reaching the last stage completes it.
func (r *Projects) MoveStage(ctx context.Context, id, stageID string) (store.Project, error) {
	return r.Update(ctx, id, ProjectPatch{StageID: &stageID})
}

func (r *Projects) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	removed, err := r.col.filterLocked(ctx, func(p store.Project) bool { return p.ID != id })
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// ReferencesStage reports whether any project sits in stageID.
func (r *Projects) ReferencesStage(stageID string) bool {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	for _, p := range r.col.items {
		if p.StageID == stageID {
			return true
		}
	}
	return false
}

// ProjectReferences lets Stages ask whether a stage is still in use.
type ProjectReferences interface {
	ReferencesStage(stageID string) bool
}

type Stages struct {
	env      Env
	col      *collection[store.ProjectStage]
	projects ProjectReferences
}

func NewStages(env Env) *Stages {
	env = env.withDefaults()
	return &Stages{
		env: env,
		col: newCollection(env.Store, store.KeyProjectStages, func(s store.ProjectStage) string { return s.ID }, nil),
	}
}

// SetProjects installs the deletion guard. Projects and Stages reference
// each other, so the guard is wired after both exist.
func (r *Stages) SetProjects(projects ProjectReferences) {
	r.projects = projects
}

var defaultStageNames = []string{
	"Согласование и старт проекта",
	"КП\\договор\\аванс",
	"Подготовка к стройке",
	"Земляные работы",
	"Монтажные работы",
	"ПНР",
	"Подготовка ИД",
	"Защита и подписание ИД",
	"РК и Устранение замечаний",
	"Передача объекта и бюджет",
	"Проект завершен",
}

// DefaultStages is the seed written when no stages are stored.
func DefaultStages() []store.ProjectStage {
	stages := make([]store.ProjectStage, len(defaultStageNames))
	for i, name := range defaultStageNames {
		stages[i] = store.ProjectStage{ID: strconv.Itoa(i + 1), Name: name}
	}
	return stages
}

func (r *Stages) Init(ctx context.Context) error {
	return r.col.load(ctx, DefaultStages())
}

func (r *Stages) All() []store.ProjectStage {
	return r.col.all()
}

// Order is the stage sequence, first to last.
func (r *Stages) Order() []store.ProjectStage {
	return r.col.all()
}

func (r *Stages) ByID(id string) (store.ProjectStage, bool) {
	return r.col.byID(id)
}

func (r *Stages) Add(ctx context.Context, name string) (store.ProjectStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.ProjectStage{}, apperr.Validation("NAME_REQUIRED", "stage name is required")
	}
	stage := store.ProjectStage{ID: r.env.NewID(), Name: name}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if err := r.col.appendLocked(ctx, stage); err != nil {
		return store.ProjectStage{}, err
	}
	return stage, nil
}

func (r *Stages) Rename(ctx context.Context, id, name string) (store.ProjectStage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.ProjectStage{}, apperr.Validation("NAME_REQUIRED", "stage name is required")
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	i := r.col.indexLocked(id)
	if i < 0 {
		return store.ProjectStage{}, apperr.NotFound("STAGE_NOT_FOUND", "stage "+id+" not found")
	}
	stage := r.col.items[i]
	stage.Name = name
	if err := r.col.replaceLocked(ctx, i, stage); err != nil {
		return store.ProjectStage{}, err
	}
	return stage, nil
}

// Remove deletes a stage unless a project still sits in it.
func (r *Stages) Remove(ctx context.Context, id string) (bool, error) {
	if r.projects != nil && r.projects.ReferencesStage(id) {
		return false, apperr.Conflict("STAGE_REFERENCED", "stage "+id+" is used by projects", map[string]string{"stageId": id})
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	removed, err := r.col.filterLocked(ctx, func(s store.ProjectStage) bool { return s.ID != id })
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func stageIndex(order []store.ProjectStage, id string) int {
	for i, s := range order {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func isLastStage(order []store.ProjectStage, id string) bool {
	return len(order) > 0 && order[len(order)-1].ID == id
}

func cloneProject(p store.Project) store.Project {
	p.Fields = nonNilFields(p.Fields)
	return p
}

func nonNilFields(fields []store.ProjectField) []store.ProjectField {
	out := make([]store.ProjectField, len(fields))
	copy(out, fields)
	return out
}
