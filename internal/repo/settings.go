package repo

import (
	"context"
	"sync"

	"skcrm/core/internal/store"
)

type SettingsPatch struct {
	Theme                *string
	Language             *string
	NotificationsEnabled *bool
	EmailNotifications   *bool
	TaskView             *string
	ProjectView          *string
	AutoSave             *bool
}

// ViewPrefs are the task list preferences remembered between sessions.
type ViewPrefs struct {
	ViewMode string
	Filter   string
	Sort     string
}

func DefaultViewPrefs() ViewPrefs {
	return ViewPrefs{ViewMode: "kanban", Filter: "all", Sort: "newest"}
}

// Settings holds the application settings record and the small
// preference values stored beside it.
type Settings struct {
	env   Env
	mu    sync.Mutex
	value store.Settings
}

func NewSettings(env Env) *Settings {
	env = env.withDefaults()
	return &Settings{env: env, value: store.DefaultSettings()}
}

func (r *Settings) Init(ctx context.Context) error {
	value := store.DefaultSettings()
	// Decode over the defaults so fields missing from older records keep them.
	if !r.env.Store.Get(ctx, store.KeySettings, &value) {
		value = store.DefaultSettings()
	}
	r.mu.Lock()
	r.value = value
	r.mu.Unlock()
	return nil
}

func (r *Settings) Get() store.Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value
}

// Save merges patch over the current settings and persists the result.
func (r *Settings) Save(ctx context.Context, patch SettingsPatch) (store.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.value
	if patch.Theme != nil {
		next.Theme = *patch.Theme
	}
	if patch.Language != nil {
		next.Language = *patch.Language
	}
	if patch.NotificationsEnabled != nil {
		next.NotificationsEnabled = *patch.NotificationsEnabled
	}
	if patch.EmailNotifications != nil {
		next.EmailNotifications = *patch.EmailNotifications
	}
	if patch.TaskView != nil {
		next.TaskView = *patch.TaskView
	}
	if patch.ProjectView != nil {
		next.ProjectView = *patch.ProjectView
	}
	if patch.AutoSave != nil {
		next.AutoSave = *patch.AutoSave
	}
	if err := r.env.Store.Set(ctx, store.KeySettings, next); err != nil {
		return r.value, err
	}
	r.value = next
	return next, nil
}

// Theme is the header theme toggle, light unless set.
func (r *Settings) Theme(ctx context.Context) string {
	return store.Load(ctx, r.env.Store, store.KeyThemeMode, "light")
}

func (r *Settings) SetTheme(ctx context.Context, mode string) error {
	return r.env.Store.Set(ctx, store.KeyThemeMode, mode)
}

func (r *Settings) ViewPrefs(ctx context.Context) ViewPrefs {
	def := DefaultViewPrefs()
	return ViewPrefs{
		ViewMode: store.Load(ctx, r.env.Store, store.KeyTasksViewMode, def.ViewMode),
		Filter:   store.Load(ctx, r.env.Store, store.KeyTasksFilter, def.Filter),
		Sort:     store.Load(ctx, r.env.Store, store.KeyTasksSort, def.Sort),
	}
}

// SaveViewPrefs writes the non-empty fields of prefs.
func (r *Settings) SaveViewPrefs(ctx context.Context, prefs ViewPrefs) error {
	for key, value := range map[string]string{
		store.KeyTasksViewMode: prefs.ViewMode,
		store.KeyTasksFilter:   prefs.Filter,
		store.KeyTasksSort:     prefs.Sort,
	} {
		if value == "" {
			continue
		}
		if err := r.env.Store.Set(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
