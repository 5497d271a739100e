package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"skcrm/core/internal/logging"
)

func newSQLiteBackend(t *testing.T) (*SQLBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "crm.db")
	backend, err := NewSQLBackend(context.Background(), "sqlite", path)
	if err != nil {
		t.Fatalf("NewSQLBackend() error = %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend, path
}

func TestSQLiteBackendRoundTrip(t *testing.T) {
	backend, _ := newSQLiteBackend(t)
	ctx := context.Background()

	if _, ok, err := backend.Read(ctx, KeyTasks); err != nil || ok {
		t.Fatalf("Read(missing) = %v, %v", ok, err)
	}

	if err := backend.Write(ctx, KeyTasks, []byte(`[]`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := backend.Write(ctx, KeyTasks, []byte(`[{"id":"t1"}]`)); err != nil {
		t.Fatalf("Write(upsert) error = %v", err)
	}

	value, ok, err := backend.Read(ctx, KeyTasks)
	if err != nil || !ok {
		t.Fatalf("Read() = %v, %v", ok, err)
	}
	if string(value) != `[{"id":"t1"}]` {
		t.Fatalf("Read() = %q", value)
	}

	keys, err := backend.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != KeyTasks {
		t.Fatalf("Keys() = %v", keys)
	}

	if err := backend.Delete(ctx, KeyTasks); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok, _ := backend.Read(ctx, KeyTasks); ok {
		t.Fatal("expected key deleted")
	}
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	backend, path := newSQLiteBackend(t)
	ctx := context.Background()
	if err := backend.Write(ctx, KeySettings, []byte(`{"theme":"dark"}`)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	_ = backend.Close()

	reopened, err := NewSQLBackend(ctx, "sqlite", path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	s := New(reopened, logging.Discard())
	got := Load(ctx, s, KeySettings, DefaultSettings())
	if got.Theme != "dark" {
		t.Fatalf("Theme = %q, want dark", got.Theme)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	backend, _ := newSQLiteBackend(t)
	ctx := context.Background()
	if err := ApplyMigrations(ctx, backend.db, "sqlite"); err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}

	files, err := migrationFiles()
	if err != nil {
		t.Fatalf("migrationFiles() error = %v", err)
	}
	var count int
	if err := backend.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(files) {
		t.Fatalf("recorded %d migrations, want %d", count, len(files))
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT value FROM kv WHERE key = ? AND value <> ?`
	if got := rebind("sqlite", q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	if got := rebind("pgx", q); got != `SELECT value FROM kv WHERE key = $1 AND value <> $2` {
		t.Fatalf("pgx rebind = %s", got)
	}
}

func TestDetect(t *testing.T) {
	ctx := context.Background()
	log := logging.Discard()

	t.Run("explicit memory", func(t *testing.T) {
		backend, name, err := Detect(ctx, Options{Backend: BackendMemory}, log)
		if err != nil || name != BackendMemory {
			t.Fatalf("Detect() = %s, %v", name, err)
		}
		_ = backend.Close()
	})

	t.Run("redis bridge when reachable", func(t *testing.T) {
		s := miniredis.RunT(t)
		backend, name, err := Detect(ctx, Options{
			RedisURL: "redis://" + s.Addr(),
			DataPath: filepath.Join(t.TempDir(), "crm.db"),
		}, log)
		if err != nil || name != BackendRedis {
			t.Fatalf("Detect() = %s, %v", name, err)
		}
		_ = backend.Close()
	})

	t.Run("sqlite fallback when redis down", func(t *testing.T) {
		s := miniredis.RunT(t)
		addr := s.Addr()
		s.Close()
		backend, name, err := Detect(ctx, Options{
			RedisURL: "redis://" + addr,
			DataPath: filepath.Join(t.TempDir(), "crm.db"),
		}, log)
		if err != nil || name != BackendSQLite {
			t.Fatalf("Detect() = %s, %v", name, err)
		}
		_ = backend.Close()
	})

	t.Run("fallback without a logger", func(t *testing.T) {
		s := miniredis.RunT(t)
		addr := s.Addr()
		s.Close()
		backend, name, err := Detect(ctx, Options{
			RedisURL: "redis://" + addr,
			DataPath: filepath.Join(t.TempDir(), "crm.db"),
		}, nil)
		if err != nil || name != BackendSQLite {
			t.Fatalf("Detect() = %s, %v", name, err)
		}
		_ = backend.Close()
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, _, err := Detect(ctx, Options{Backend: "floppy"}, log); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("postgres without url", func(t *testing.T) {
		if _, _, err := Detect(ctx, Options{Backend: BackendPostgres}, log); err == nil {
			t.Fatal("expected error")
		}
	})
}
