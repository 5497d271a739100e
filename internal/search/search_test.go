package search

import (
	"errors"
	"sync"
	"testing"

	"skcrm/core/internal/logging"
	"skcrm/core/internal/store"
)

type fakeEngine struct {
	healthy   bool
	searchFn  func(Query) ([]Result, int, error)
	mu        sync.Mutex
	tasks     []TaskRecord
	projects  []ProjectRecord
	users     []UserRecord
	deletions []string
}

func (f *fakeEngine) Healthy() bool { return f.healthy }

func (f *fakeEngine) Search(q Query) ([]Result, int, error) {
	if f.searchFn == nil {
		return nil, 0, nil
	}
	return f.searchFn(q)
}

func (f *fakeEngine) IndexTasks(tasks []TaskRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, tasks...)
	return nil
}

func (f *fakeEngine) IndexProjects(projects []ProjectRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, projects...)
	return nil
}

func (f *fakeEngine) IndexUsers(users []UserRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, users...)
	return nil
}

func (f *fakeEngine) Delete(kind ResultType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletions = append(f.deletions, string(kind)+":"+id)
	return nil
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Tasks: []store.Task{
			{ID: "t1", Title: "Acme contract", Creator: "u", Status: store.StatusNew, Priority: store.PriorityHigh},
			{ID: "t2", Title: "Other", Creator: "x", Description: "acme again"},
			{ID: "t3", Title: "Status match", Creator: "u", Status: store.StatusInProgress, Priority: store.PriorityLow},
		},
		Projects: []store.Project{
			{ID: "p1", Name: "Acme rollout"},
			{ID: "p2", Name: "Internal", Fields: []store.ProjectField{{Name: "Client", Value: "ACME Ltd"}}},
			{ID: "p3", Name: "Nothing"},
		},
		Users: []store.User{
			{ID: "a", Username: "acme_corp"},
			{ID: "b", Username: "bob", Department: "Sales"},
		},
	}
}

func TestGlobalUsersOnlyForAdmins(t *testing.T) {
	snap := sampleSnapshot()

	asUser := Global(snap, "acme", Viewer{UserID: "u"})
	if len(asUser.Users) != 0 {
		t.Fatalf("non-admin got users %+v", asUser.Users)
	}
	asAdmin := Global(snap, "acme", Viewer{UserID: "u", IsAdmin: true})
	if len(asAdmin.Users) != 1 || asAdmin.Users[0].ID != "a" {
		t.Fatalf("admin users = %+v", asAdmin.Users)
	}

	if len(asUser.Tasks) != len(asAdmin.Tasks) || len(asUser.Projects) != len(asAdmin.Projects) {
		t.Fatal("task or project results depend on admin role")
	}
}

func TestGlobalMatching(t *testing.T) {
	snap := sampleSnapshot()
	tests := []struct {
		query        string
		wantTasks    []string
		wantProjects []string
	}{
		{"ACME", []string{"t1"}, []string{"p1", "p2"}},
		{"в работе", []string{"t3"}, nil},
		{"низкий", []string{"t3"}, nil},
		{"client", nil, []string{"p2"}},
		{"   ", nil, nil},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			res := Global(snap, tc.query, Viewer{UserID: "u"})
			if got := taskIDs(res.Tasks); !sameIDs(got, tc.wantTasks) {
				t.Fatalf("tasks = %v, want %v", got, tc.wantTasks)
			}
			if got := projectIDs(res.Projects); !sameIDs(got, tc.wantProjects) {
				t.Fatalf("projects = %v, want %v", got, tc.wantProjects)
			}
			if res.Tasks == nil || res.Projects == nil || res.Users == nil {
				t.Fatal("result lists must not be nil")
			}
		})
	}
}

func TestQuickFindFallsBackWithoutEngine(t *testing.T) {
	svc := NewService(nil, logging.Discard())
	got := svc.QuickFind(sampleSnapshot(), "acme", Viewer{UserID: "u", IsAdmin: true}, 10)

	want := []string{"task:t1", "project:p1", "project:p2", "user:a"}
	if len(got) != len(want) {
		t.Fatalf("QuickFind() = %+v", got)
	}
	for i, r := range got {
		if string(r.Type)+":"+r.ID != want[i] {
			t.Fatalf("QuickFind()[%d] = %+v, want %s", i, r, want[i])
		}
	}
}

func TestQuickFindFallsBackOnEngineError(t *testing.T) {
	engine := &fakeEngine{healthy: true, searchFn: func(Query) ([]Result, int, error) {
		return nil, 0, errors.New("boom")
	}}
	svc := NewService(engine, logging.Discard())
	got := svc.QuickFind(sampleSnapshot(), "acme", Viewer{UserID: "u"}, 2)
	if len(got) != 2 || got[0].ID != "t1" {
		t.Fatalf("QuickFind() = %+v", got)
	}
}

func TestQuickFindPostFiltersEngineHits(t *testing.T) {
	var seen Query
	engine := &fakeEngine{healthy: true, searchFn: func(q Query) ([]Result, int, error) {
		seen = q
		return []Result{
			{Type: ResultTask, ID: "t2"},
			{Type: ResultProject, ID: "p3"},
			{Type: ResultTask, ID: "t1"},
			{Type: ResultUser, ID: "a"},
			{Type: ResultProject, ID: "deleted"},
		}, 5, nil
	}}
	svc := NewService(engine, logging.Discard())

	got := svc.QuickFind(sampleSnapshot(), "acm", Viewer{UserID: "u"}, 10)
	if seen.IncludeUsers {
		t.Fatal("non-admin query asked the engine for users")
	}
	if len(got) != 2 || got[0].ID != "p3" || got[1].ID != "t1" {
		t.Fatalf("QuickFind() = %+v", got)
	}
}

func TestIndexingIsSkippedWhenUnhealthy(t *testing.T) {
	engine := &fakeEngine{healthy: false}
	svc := NewService(engine, logging.Discard())
	svc.IndexTask(store.Task{ID: "t1"})
	svc.Remove(ResultTask, "t1")
	svc.Wait()
	if len(engine.tasks) != 0 || len(engine.deletions) != 0 {
		t.Fatal("unhealthy engine received writes")
	}
}

func TestIndexingAndReindex(t *testing.T) {
	engine := &fakeEngine{healthy: true}
	svc := NewService(engine, logging.Discard())

	svc.IndexTask(store.Task{ID: "t1", Title: "x"})
	svc.IndexProject(store.Project{ID: "p1", Fields: []store.ProjectField{{Name: "k", Value: "v"}}})
	svc.IndexUser(store.User{ID: "u1", FirstName: "Ivan", LastName: "Petrov"})
	svc.Remove(ResultProject, "p1")
	svc.Wait()

	if len(engine.tasks) != 1 || len(engine.projects) != 1 || len(engine.users) != 1 {
		t.Fatalf("indexed = %d tasks, %d projects, %d users", len(engine.tasks), len(engine.projects), len(engine.users))
	}
	if got := engine.projects[0].Fields; len(got) != 2 || got[0] != "k" || got[1] != "v" {
		t.Fatalf("project fields = %v", got)
	}
	if engine.users[0].FullName != "Ivan Petrov" {
		t.Fatalf("user full name = %q", engine.users[0].FullName)
	}
	if len(engine.deletions) != 1 || engine.deletions[0] != "project:p1" {
		t.Fatalf("deletions = %v", engine.deletions)
	}

	svc.ReindexAll(sampleSnapshot())
	if len(engine.tasks) != 4 || len(engine.projects) != 4 || len(engine.users) != 3 {
		t.Fatalf("after reindex = %d tasks, %d projects, %d users", len(engine.tasks), len(engine.projects), len(engine.users))
	}
}

func taskIDs(tasks []store.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func projectIDs(projects []store.Project) []string {
	out := make([]string, len(projects))
	for i, p := range projects {
		out[i] = p.ID
	}
	return out
}

func sameIDs(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
