package store

import (
	"context"
	"errors"
	"testing"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/logging"
)

func newMemoryStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return New(backend, logging.Discard()), backend
}

func TestLoadReturnsDefaultWhenMissing(t *testing.T) {
	s, _ := newMemoryStore(t)
	got := Load(context.Background(), s, KeyTasks, []Task{{ID: "default"}})
	if len(got) != 1 || got[0].ID != "default" {
		t.Fatalf("Load() = %+v, want default", got)
	}
}

func TestLoadReturnsDefaultOnCorruptJSON(t *testing.T) {
	s, backend := newMemoryStore(t)
	ctx := context.Background()
	if err := backend.Write(ctx, KeyUsers, []byte(`[{"id":"1",`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got := Load(ctx, s, KeyUsers, []User{})
	if got == nil || len(got) != 0 {
		t.Fatalf("Load() = %+v, want empty default", got)
	}
}

func TestLoadTreatsNullAsMissing(t *testing.T) {
	s, backend := newMemoryStore(t)
	ctx := context.Background()
	_ = backend.Write(ctx, KeySettings, []byte("null"))

	got := Load(ctx, s, KeySettings, DefaultSettings())
	if got != DefaultSettings() {
		t.Fatalf("Load() = %+v, want defaults", got)
	}
}

func TestSetReplacesWholeValue(t *testing.T) {
	s, _ := newMemoryStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, KeyProjectStages, []ProjectStage{{ID: "1", Name: "a"}, {ID: "2", Name: "b"}}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, KeyProjectStages, []ProjectStage{{ID: "3", Name: "c"}}); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := Load(ctx, s, KeyProjectStages, []ProjectStage(nil))
	if len(got) != 1 || got[0].ID != "3" {
		t.Fatalf("Load() = %+v, want single replaced stage", got)
	}
}

func TestSetRawRejectsInvalidJSON(t *testing.T) {
	s, _ := newMemoryStore(t)
	err := s.SetRaw(context.Background(), KeyTasks, []byte("{nope"))
	if !errors.Is(err, apperr.ErrStorageCorrupt) {
		t.Fatalf("SetRaw() error = %v, want StorageCorrupt", err)
	}
}

type failingBackend struct {
	*MemoryBackend
}

func (failingBackend) Read(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk gone")
}

func TestGetSwallowsBackendErrors(t *testing.T) {
	s := New(failingBackend{NewMemoryBackend()}, logging.Discard())
	var settings Settings
	if s.Get(context.Background(), KeySettings, &settings) {
		t.Fatal("Get() should report absent on read error")
	}
}

func TestMemoryBackendKeysSorted(t *testing.T) {
	_, backend := newMemoryStore(t)
	ctx := context.Background()
	_ = backend.Write(ctx, "b", []byte("1"))
	_ = backend.Write(ctx, "a", []byte("2"))
	_ = backend.Delete(ctx, "missing")

	keys, err := backend.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("Keys() = %v", keys)
	}
}
