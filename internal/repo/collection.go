// Package repo holds the entity repositories. Each owns one collection,
// guards it with a mutex and rewrites the whole collection on every mutation.
package repo

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/store"
	"skcrm/core/internal/util"
)

// Env carries what every repository needs besides its collaborators.
type Env struct {
	Store *store.Store
	Now   func() time.Time
	NewID func() string
	Log   logrus.FieldLogger
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.NewID == nil {
		e.NewID = func() string { return util.NewID("") }
	}
	if e.Log == nil {
		e.Log = logrus.StandardLogger()
	}
	return e
}

// collection is the shared core of every repository. Mutations build the
// next slice, persist it, and only then swap it in, so a failed write
// leaves memory untouched.
type collection[T any] struct {
	mu    sync.Mutex
	items []T
	key   string
	store *store.Store
	idOf  func(T) string
	clone func(T) T
}

func newCollection[T any](s *store.Store, key string, idOf func(T) string, clone func(T) T) *collection[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &collection[T]{store: s, key: key, idOf: idOf, clone: clone}
}

// load replaces the in-memory collection from the store. seed is used, and
// persisted, when nothing usable is stored or the stored collection is empty.
func (c *collection[T]) load(ctx context.Context, seed []T) error {
	items := store.Load(ctx, c.store, c.key, []T(nil))
	if len(items) == 0 && len(seed) > 0 {
		if err := c.store.Set(ctx, c.key, seed); err != nil {
			return err
		}
		items = append([]T(nil), seed...)
	}
	c.mu.Lock()
	c.items = items
	c.mu.Unlock()
	return nil
}

func (c *collection[T]) all() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

func (c *collection[T]) copyLocked() []T {
	out := make([]T, len(c.items))
	for i, item := range c.items {
		out[i] = c.clone(item)
	}
	return out
}

func (c *collection[T]) byID(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.clone(c.items[i]), true
	}
	var zero T
	return zero, false
}

func (c *collection[T]) indexLocked(id string) int {
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}

// commitLocked persists next and swaps it in. Caller holds c.mu.
func (c *collection[T]) commitLocked(ctx context.Context, next []T) error {
	if err := c.store.Set(ctx, c.key, next); err != nil {
		return err
	}
	c.items = next
	return nil
}

func (c *collection[T]) appendLocked(ctx context.Context, item T) error {
	next := make([]T, 0, len(c.items)+1)
	next = append(next, c.items...)
	next = append(next, item)
	return c.commitLocked(ctx, next)
}

func (c *collection[T]) replaceLocked(ctx context.Context, i int, item T) error {
	next := append([]T(nil), c.items...)
	next[i] = item
	return c.commitLocked(ctx, next)
}

// filterLocked keeps the items accepted by keep and reports how many were dropped.
func (c *collection[T]) filterLocked(ctx context.Context, keep func(T) bool) (int, error) {
	next := make([]T, 0, len(c.items))
	for _, item := range c.items {
		if keep(item) {
			next = append(next, item)
		}
	}
	removed := len(c.items) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := c.commitLocked(ctx, next); err != nil {
		return 0, err
	}
	return removed, nil
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
