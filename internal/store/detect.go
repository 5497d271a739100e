package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Options struct {
	// Backend forces a backend; empty means detect.
	Backend     string
	DataPath    string
	DatabaseURL string
	RedisURL    string
}

// Detect picks a backend the way the desktop host does: the bridge (redis)
// when one is configured and answering, otherwise the local sqlite file.
// It returns the backend and the name of the one chosen.
func Detect(ctx context.Context, opts Options, log logrus.FieldLogger) (Backend, string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	switch opts.Backend {
	case BackendRedis:
		backend, err := NewRedisBackend(ctx, opts.RedisURL)
		if err != nil {
			return nil, "", err
		}
		return backend, BackendRedis, nil
	case BackendSQLite:
		return openSQLite(ctx, opts.DataPath)
	case BackendPostgres:
		if opts.DatabaseURL == "" {
			return nil, "", fmt.Errorf("postgres backend requires a database url")
		}
		backend, err := NewSQLBackend(ctx, "pgx", opts.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return backend, BackendPostgres, nil
	case BackendMemory:
		return NewMemoryBackend(), BackendMemory, nil
	case "":
	default:
		return nil, "", fmt.Errorf("unknown store backend %q", opts.Backend)
	}

	if opts.RedisURL != "" {
		backend, err := NewRedisBackend(ctx, opts.RedisURL)
		if err == nil {
			return backend, BackendRedis, nil
		}
		log.WithError(err).Warn("store: redis bridge unavailable, falling back to sqlite")
	}
	return openSQLite(ctx, opts.DataPath)
}

func openSQLite(ctx context.Context, path string) (Backend, string, error) {
	backend, err := NewSQLBackend(ctx, "sqlite", path)
	if err != nil {
		return nil, "", err
	}
	return backend, BackendSQLite, nil
}
