package repo

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"skcrm/core/internal/logging"
	"skcrm/core/internal/store"
)

// flakyBackend wraps a memory backend and fails writes while failWrites is set.
type flakyBackend struct {
	*store.MemoryBackend
	mu         sync.Mutex
	failWrites bool
	writes     int
}

func (b *flakyBackend) Write(ctx context.Context, key string, value []byte) error {
	b.mu.Lock()
	b.writes++
	fail := b.failWrites
	b.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return b.MemoryBackend.Write(ctx, key, value)
}

func (b *flakyBackend) setFail(fail bool) {
	b.mu.Lock()
	b.failWrites = fail
	b.mu.Unlock()
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestEnv(t *testing.T) (Env, *flakyBackend, *testClock) {
	t.Helper()
	backend := &flakyBackend{MemoryBackend: store.NewMemoryBackend()}
	clock := &testClock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	var seq int
	var seqMu sync.Mutex
	env := Env{
		Store: store.New(backend, logging.Discard()),
		Now:   clock.Now,
		NewID: func() string {
			seqMu.Lock()
			defer seqMu.Unlock()
			seq++
			return "id-" + strconv.Itoa(seq)
		},
		Log: logging.Discard(),
	}
	return env, backend, clock
}

func TestCollectionRollsBackOnFailedWrite(t *testing.T) {
	env, backend, _ := newTestEnv(t)
	ctx := context.Background()
	tasks := NewTasks(env)
	if err := tasks.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := tasks.Add(ctx, "u1", TaskInput{Title: "first"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	backend.setFail(true)
	if _, err := tasks.Add(ctx, "u1", TaskInput{Title: "second"}); err == nil {
		t.Fatal("Add() error = nil, want write failure")
	}
	if got := len(tasks.All()); got != 1 {
		t.Fatalf("len(All()) = %d after failed write, want 1", got)
	}

	backend.setFail(false)
	reloaded := NewTasks(env)
	if err := reloaded.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if got := len(reloaded.All()); got != 1 {
		t.Fatalf("persisted tasks = %d, want 1", got)
	}
}

func TestCollectionAllReturnsCopies(t *testing.T) {
	env, _, _ := newTestEnv(t)
	ctx := context.Background()
	tasks := NewTasks(env)
	_ = tasks.Init(ctx)
	task, err := tasks.Add(ctx, "u1", TaskInput{Title: "t", Tags: []string{"a"}})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	all := tasks.All()
	all[0].Title = "changed"
	all[0].Tags[0] = "changed"

	got, _ := tasks.ByID(task.ID)
	if got.Title != "t" || got.Tags[0] != "a" {
		t.Fatalf("ByID() = %+v, snapshot mutation leaked", got)
	}
}

func TestRemoveMissingIDReportsFalse(t *testing.T) {
	env, backend, _ := newTestEnv(t)
	ctx := context.Background()
	comments := NewComments(env)
	_ = comments.Init(ctx)
	before := backend.writes

	removed, err := comments.Remove(ctx, "nope")
	if err != nil || removed {
		t.Fatalf("Remove() = %v, %v; want false, nil", removed, err)
	}
	if backend.writes != before {
		t.Fatalf("Remove() of missing id wrote to the store")
	}
}
