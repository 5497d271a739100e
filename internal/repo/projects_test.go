package repo

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

func newProjectsAndStages(t *testing.T) (*Projects, *Stages) {
	t.Helper()
	env, _, _ := newTestEnv(t)
	ctx := context.Background()
	stages := NewStages(env)
	projects := NewProjects(env, stages)
	stages.SetProjects(projects)
	if err := stages.Init(ctx); err != nil {
		t.Fatalf("stages Init() error = %v", err)
	}
	if err := projects.Init(ctx); err != nil {
		t.Fatalf("projects Init() error = %v", err)
	}
	return projects, stages
}

func TestStagesSeed(t *testing.T) {
	_, stages := newProjectsAndStages(t)
	want := []string{
		"Согласование и старт проекта",
		`КП\договор\аванс`,
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
	order := stages.Order()
	if len(order) != len(want) {
		t.Fatalf("len(Order()) = %d, want %d", len(order), len(want))
	}
	for i, name := range want {
		if id := strconv.Itoa(i + 1); order[i].ID != id || order[i].Name != name {
			t.Fatalf("stage %d = %+v, want {%s %s}", i, order[i], id, name)
		}
	}
}

func TestProjectsAddDefaultsToFirstStage(t *testing.T) {
	projects, _ := newProjectsAndStages(t)
	p, err := projects.Add(context.Background(), ProjectInput{Name: "Acme"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if p.StageID != "1" || p.IsCompleted {
		t.Fatalf("Add() = %+v, want stage 1 not completed", p)
	}
	if p.Fields == nil {
		t.Fatal("Fields is nil, want empty")
	}
}

func TestProjectsAddValidation(t *testing.T) {
	projects, _ := newProjectsAndStages(t)
	ctx := context.Background()
	if _, err := projects.Add(ctx, ProjectInput{Name: " "}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Add(empty name) error = %v", err)
	}
	if _, err := projects.Add(ctx, ProjectInput{Name: "x", StageID: "99"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Add(unknown stage) error = %v", err)
	}
}

func TestProjectsMoveStage(t *testing.T) {
	tests := []struct {
		name      string
		stageID   string
		completed bool
		wantErr   bool
	}{
		{name: "middle", stageID: "5", completed: false},
		{name: "last completes", stageID: "11", completed: true},
		{name: "unknown", stageID: "nope", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			projects, _ := newProjectsAndStages(t)
			ctx := context.Background()
			p, _ := projects.Add(ctx, ProjectInput{Name: "Acme"})

			moved, err := projects.MoveStage(ctx, p.ID, tc.stageID)
			if tc.wantErr {
				if !errors.Is(err, apperr.ErrValidation) {
					t.Fatalf("MoveStage() error = %v, want validation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("MoveStage() error = %v", err)
			}
			if moved.StageID != tc.stageID || moved.IsCompleted != tc.completed {
				t.Fatalf("MoveStage() = %+v", moved)
			}
		})
	}
}

func TestProjectsMoveBackReopens(t *testing.T) {
	projects, _ := newProjectsAndStages(t)
	ctx := context.Background()
	p, _ := projects.Add(ctx, ProjectInput{Name: "Acme", StageID: "11"})
	if !p.IsCompleted {
		t.Fatal("project in last stage not completed")
	}
	moved, err := projects.MoveStage(ctx, p.ID, "10")
	if err != nil {
		t.Fatalf("MoveStage() error = %v", err)
	}
	if moved.IsCompleted {
		t.Fatal("project moved out of last stage still completed")
	}
}

func TestStagesRemoveGuard(t *testing.T) {
	projects, stages := newProjectsAndStages(t)
	ctx := context.Background()
	_, _ = projects.Add(ctx, ProjectInput{Name: "Acme", StageID: "3"})

	removed, err := stages.Remove(ctx, "3")
	if removed || !errors.Is(err, apperr.ErrReferentialConflict) {
		t.Fatalf("Remove(used) = %v, %v; want false, conflict", removed, err)
	}
	removed, err = stages.Remove(ctx, "4")
	if !removed || err != nil {
		t.Fatalf("Remove(unused) = %v, %v", removed, err)
	}
	if len(stages.Order()) != 10 {
		t.Fatalf("len(Order()) = %d, want 10", len(stages.Order()))
	}
}

func TestStagesAddAndRename(t *testing.T) {
	_, stages := newProjectsAndStages(t)
	ctx := context.Background()

	added, err := stages.Add(ctx, "Архив")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	order := stages.Order()
	if order[len(order)-1].ID != added.ID {
		t.Fatalf("new stage not last: %+v", order)
	}

	renamed, err := stages.Rename(ctx, "1", "Встреча")
	if err != nil || renamed.Name != "Встреча" {
		t.Fatalf("Rename() = %+v, %v", renamed, err)
	}
	if _, err := stages.Rename(ctx, "missing", "x"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Rename(missing) error = %v", err)
	}
	if _, err := stages.Add(ctx, ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Add(empty) error = %v", err)
	}
}

func TestProjectsUpdateFields(t *testing.T) {
	projects, _ := newProjectsAndStages(t)
	ctx := context.Background()
	p, _ := projects.Add(ctx, ProjectInput{Name: "Acme"})

	fields := []store.ProjectField{{Name: "ИНН", Value: "7701"}}
	updated, err := projects.Update(ctx, p.ID, ProjectPatch{Fields: &fields})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	fields[0].Value = "changed"
	if updated.Fields[0].Value != "7701" {
		t.Fatal("Update() kept a reference to the caller's slice")
	}
}
