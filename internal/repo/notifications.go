package repo

import (
	"context"
	"sort"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

type Notifications struct {
	env Env
	col *collection[store.Notification]
}

func NewNotifications(env Env) *Notifications {
	env = env.withDefaults()
	return &Notifications{
		env: env,
		col: newCollection(env.Store, store.KeyNotifications, func(n store.Notification) string { return n.ID }, nil),
	}
}

func (r *Notifications) Init(ctx context.Context) error {
	return r.col.load(ctx, nil)
}

func (r *Notifications) All() []store.Notification {
	return r.col.all()
}

func (r *Notifications) ByID(id string) (store.Notification, bool) {
	return r.col.byID(id)
}

// Add stores n as a new unread notification. ID and Timestamp are stamped
// when empty.
func (r *Notifications) Add(ctx context.Context, n store.Notification) (store.Notification, error) {
	if err := validateNotification(n); err != nil {
		return store.Notification{}, err
	}
	n = r.stamp(n)

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if err := r.col.appendLocked(ctx, n); err != nil {
		return store.Notification{}, err
	}
	return n, nil
}

// AddUnique stores n unless a notification with the same dedup key exists.
// The check and the insert happen under one lock.
func (r *Notifications) AddUnique(ctx context.Context, n store.Notification) (store.Notification, bool, error) {
	if err := validateNotification(n); err != nil {
		return store.Notification{}, false, err
	}
	key := n.DedupKey()

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if key.ItemID != "" || key.Kind != "" {
		for _, existing := range r.col.items {
			if existing.DedupKey() == key || sameLegacyNotice(existing, n) {
				return existing, false, nil
			}
		}
	}
	n = r.stamp(n)
	if err := r.col.appendLocked(ctx, n); err != nil {
		return store.Notification{}, false, err
	}
	return n, true, nil
}

// ForUser returns userID's notifications, newest first.
func (r *Notifications) ForUser(userID string) []store.Notification {
	var out []store.Notification
	for _, n := range r.col.all() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

func (r *Notifications) Unread(userID string) int {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	n := 0
	for _, item := range r.col.items {
		if item.UserID == userID && !item.IsRead {
			n++
		}
	}
	return n
}

func (r *Notifications) MarkRead(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	i := r.col.indexLocked(id)
	if i < 0 {
		return false, nil
	}
	if r.col.items[i].IsRead {
		return true, nil
	}
	n := r.col.items[i]
	n.IsRead = true
	if err := r.col.replaceLocked(ctx, i, n); err != nil {
		return false, err
	}
	return true, nil
}

// MarkAllRead marks every notification of userID read and returns the count.
func (r *Notifications) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	next := make([]store.Notification, len(r.col.items))
	changed := 0
	for i, n := range r.col.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			changed++
		}
		next[i] = n
	}
	if changed == 0 {
		return 0, nil
	}
	if err := r.col.commitLocked(ctx, next); err != nil {
		return 0, err
	}
	return changed, nil
}

func (r *Notifications) Remove(ctx context.Context, id string) (bool, error) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	removed, err := r.col.filterLocked(ctx, func(n store.Notification) bool { return n.ID != id })
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

func (r *Notifications) stamp(n store.Notification) store.Notification {
	if n.ID == "" {
		n.ID = r.env.NewID()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = r.env.Now()
	}
	n.IsRead = false
	return n
}

// sameLegacyNotice matches task notices stored without a notificationType,
// which were deduplicated by type and task id alone.
func sameLegacyNotice(existing, n store.Notification) bool {
	return existing.NotificationType == "" && n.TaskID != "" &&
		existing.UserID == n.UserID && existing.TaskID == n.TaskID && existing.Type == n.Type
}

func validateNotification(n store.Notification) error {
	if n.UserID == "" {
		return apperr.Validation("NOTIFICATION_TARGET_REQUIRED", "notification user is required")
	}
	if n.Type == "" {
		return apperr.Validation("NOTIFICATION_TYPE_REQUIRED", "notification type is required")
	}
	return nil
}
