package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"skcrm/core/internal/logging"
)

func setupTestRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	backend, err := NewRedisBackend(context.Background(), "redis://"+s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend, s
}

func TestNewRedisBackend(t *testing.T) {
	backend, _ := setupTestRedis(t)
	if err := backend.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisBackendRoundTrip(t *testing.T) {
	backend, s := setupTestRedis(t)
	ctx := context.Background()

	if err := backend.Write(ctx, KeyTasks, []byte(`[{"id":"t1"}]`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	raw, err := s.Get("crm:" + KeyTasks)
	if err != nil {
		t.Fatalf("expected prefixed key in redis: %v", err)
	}
	if raw != `[{"id":"t1"}]` {
		t.Fatalf("stored value = %q", raw)
	}

	value, ok, err := backend.Read(ctx, KeyTasks)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if string(value) != `[{"id":"t1"}]` {
		t.Fatalf("Read() value = %q", value)
	}
}

func TestRedisBackendMissingKey(t *testing.T) {
	backend, _ := setupTestRedis(t)
	_, ok, err := backend.Read(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if ok {
		t.Fatal("expected missing key")
	}
}

func TestRedisBackendDeleteAndKeys(t *testing.T) {
	backend, s := setupTestRedis(t)
	ctx := context.Background()
	_ = backend.Write(ctx, KeyUsers, []byte("[]"))
	_ = backend.Write(ctx, KeyCurrentSession, []byte("{}"))
	_ = s.Set("other:key", "ignored")

	keys, err := backend.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("Keys() = %v, want 2 crm keys", keys)
	}

	if err := backend.Delete(ctx, KeyCurrentSession); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s.Exists("crm:" + KeyCurrentSession) {
		t.Fatal("session key should be gone")
	}
}

func TestStoreOverRedis(t *testing.T) {
	backend, _ := setupTestRedis(t)
	s := New(backend, logging.Discard())
	ctx := context.Background()

	in := []ProjectStage{{ID: "1", Name: "Согласование и старт проекта"}}
	if err := s.Set(ctx, KeyProjectStages, in); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	out := Load(ctx, s, KeyProjectStages, []ProjectStage(nil))
	if len(out) != 1 || out[0].Name != in[0].Name {
		t.Fatalf("Load() = %+v", out)
	}
}
