package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SQLBackend stores keys in the kv table of a sqlite or postgres database.
type SQLBackend struct {
	db     *sql.DB
	driver string
}

// NewSQLBackend opens the database and applies migrations.
func NewSQLBackend(ctx context.Context, driver, dsn string) (*SQLBackend, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, db, driver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLBackend{db: db, driver: driver}, nil
}

func (b *SQLBackend) Read(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, rebind(b.driver, `SELECT value FROM kv WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("select kv: %w", err)
	}
	return []byte(value), true, nil
}

func (b *SQLBackend) Write(ctx context.Context, key string, value []byte) error {
	_, err := b.db.ExecContext(ctx, rebind(b.driver, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`), key, string(value))
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, rebind(b.driver, `DELETE FROM kv WHERE key = ?`), key); err != nil {
		return fmt.Errorf("delete kv: %w", err)
	}
	return nil
}

func (b *SQLBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list kv: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan kv key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (b *SQLBackend) Close() error {
	return b.db.Close()
}
