// Package store is the persistent key/value adapter every repository writes through.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/apperr"
)

// Store encodes values as JSON over a Backend. Reads never fail: missing,
// unreadable or corrupt data is reported as absent and logged.
type Store struct {
	backend Backend
	log     logrus.FieldLogger
}

func New(backend Backend, log logrus.FieldLogger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{
		backend: backend,
		log:     log.WithField("component", "store"),
	}
}

// Get decodes key into dst and reports whether a usable value was found.
// dst must not be relied on when Get returns false.
func (s *Store) Get(ctx context.Context, key string, dst any) bool {
	data, ok, err := s.backend.Read(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("read failed, using default")
		return false
	}
	if !ok || isNull(data) {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("corrupt value, using default")
		return false
	}
	return true
}

// Set replaces the whole value stored under key.
func (s *Store) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Raw returns the stored bytes for key without decoding.
func (s *Store) Raw(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.backend.Read(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return data, ok, nil
}

// SetRaw writes pre-encoded JSON. Invalid JSON is rejected as StorageCorrupt.
func (s *Store) SetRaw(ctx context.Context, key string, data []byte) error {
	if !json.Valid(data) {
		return apperr.Corrupt("INVALID_JSON", fmt.Sprintf("value for %s is not valid JSON", key))
	}
	if err := s.backend.Write(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Keys(ctx context.Context) ([]string, error) {
	return s.backend.Keys(ctx)
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// Load is get-or-default.
func Load[T any](ctx context.Context, s *Store, key string, def T) T {
	var value T
	if !s.Get(ctx, key, &value) {
		return def
	}
	return value
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
