package repo

import (
	"context"
	"strings"
	"time"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/store"
)

// TaskReferences guards user removal against tasks that still name the user.
// UnlessReferenced runs remove only when no task names userID, and keeps
// tasks from changing until remove returns.
type TaskReferences interface {
	UnlessReferenced(userID string, remove func() error) (referenced bool, err error)
}

type UserInput struct {
	Username   string
	Password   string
	Email      string
	Position   string
	Department string
	Role       string
	IsAdmin    bool
	IsActive   bool
	FirstName  string
	LastName   string
	Phone      string
	Avatar     string
}

type UserPatch struct {
	Username   *string
	Password   *string
	Email      *string
	Position   *string
	Department *string
	Role       *string
	IsAdmin    *bool
	IsActive   *bool
	FirstName  *string
	LastName   *string
	Phone      *string
	Avatar     *string
}

type Users struct {
	env   Env
	col   *collection[store.User]
	tasks TaskReferences
}

func NewUsers(env Env, tasks TaskReferences) *Users {
	env = env.withDefaults()
	return &Users{
		env:   env,
		col:   newCollection(env.Store, store.KeyUsers, func(u store.User) string { return u.ID }, nil),
		tasks: tasks,
	}
}

// DefaultUsers is the seed written when no users are stored.
func DefaultUsers(now time.Time) []store.User {
	return []store.User{{
		ID:         "1",
		Username:   "admin",
		Password:   "admin123",
		Email:      "admin@example.com",
		Position:   "Администратор",
		Department: "IT",
		Role:       store.RoleAdmin,
		IsAdmin:    true,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}}
}

func (r *Users) Init(ctx context.Context) error {
	return r.col.load(ctx, DefaultUsers(r.env.Now()))
}

func (r *Users) All() []store.User {
	return r.col.all()
}

func (r *Users) ByID(id string) (store.User, bool) {
	return r.col.byID(id)
}

// FindByUsername matches case-insensitively.
func (r *Users) FindByUsername(username string) (store.User, bool) {
	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if i := r.usernameIndexLocked(username, ""); i >= 0 {
		return r.col.items[i], true
	}
	return store.User{}, false
}

// Add stores a new user. Password is stored as given; callers hash it.
func (r *Users) Add(ctx context.Context, in UserInput) (store.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Password == "" || in.Email == "" {
		return store.User{}, apperr.Validation("USER_FIELDS_REQUIRED", "username, password and email are required")
	}
	role := in.Role
	if role == "" {
		role = store.RoleUser
	}

	now := r.env.Now()
	user := store.User{
		ID:         r.env.NewID(),
		Username:   in.Username,
		Password:   in.Password,
		Email:      in.Email,
		Position:   in.Position,
		Department: in.Department,
		Role:       role,
		IsAdmin:    in.IsAdmin || role == store.RoleAdmin,
		IsActive:   in.IsActive,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Phone:      in.Phone,
		Avatar:     in.Avatar,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	if r.usernameIndexLocked(user.Username, "") >= 0 {
		return store.User{}, apperr.Validation("USERNAME_TAKEN", "username "+user.Username+" already exists")
	}
	if err := r.col.appendLocked(ctx, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (r *Users) Update(ctx context.Context, id string, patch UserPatch) (store.User, error) {
	if patch.Username != nil && strings.TrimSpace(*patch.Username) == "" {
		return store.User{}, apperr.Validation("USER_FIELDS_REQUIRED", "username is required")
	}
	if patch.Password != nil && *patch.Password == "" {
		return store.User{}, apperr.Validation("USER_FIELDS_REQUIRED", "password is required")
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return store.User{}, apperr.Validation("USER_FIELDS_REQUIRED", "email is required")
	}

	r.col.mu.Lock()
	defer r.col.mu.Unlock()
	i := r.col.indexLocked(id)
	if i < 0 {
		return store.User{}, apperr.NotFound("USER_NOT_FOUND", "user "+id+" not found")
	}
	if patch.Username != nil && r.usernameIndexLocked(*patch.Username, id) >= 0 {
		return store.User{}, apperr.Validation("USERNAME_TAKEN", "username "+*patch.Username+" already exists")
	}

	user := applyUserPatch(r.col.items[i], patch)
	user.UpdatedAt = r.env.Now()
	if err := r.col.replaceLocked(ctx, i, user); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// Remove deletes a user unless a task still references them, in which case
// it returns false with a ReferentialConflict error.
func (r *Users) Remove(ctx context.Context, id string) (bool, error) {
	var removed int
	remove := func() error {
		r.col.mu.Lock()
		defer r.col.mu.Unlock()
		n, err := r.col.filterLocked(ctx, func(u store.User) bool { return u.ID != id })
		removed = n
		return err
	}
	if r.tasks == nil {
		if err := remove(); err != nil {
			return false, err
		}
		return removed > 0, nil
	}

	referenced, err := r.tasks.UnlessReferenced(id, remove)
	if referenced {
		return false, apperr.Conflict("USER_REFERENCED", "user "+id+" is referenced by tasks", map[string]string{"userId": id})
	}
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// usernameIndexLocked finds username case-insensitively, skipping exceptID.
func (r *Users) usernameIndexLocked(username, exceptID string) int {
	needle := strings.ToLower(strings.TrimSpace(username))
	for i, u := range r.col.items {
		if u.ID != exceptID && strings.ToLower(u.Username) == needle {
			return i
		}
	}
	return -1
}

func applyUserPatch(u store.User, patch UserPatch) store.User {
	if patch.Username != nil {
		u.Username = strings.TrimSpace(*patch.Username)
	}
	if patch.Password != nil {
		u.Password = *patch.Password
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.Position != nil {
		u.Position = *patch.Position
	}
	if patch.Department != nil {
		u.Department = *patch.Department
	}
	if patch.Role != nil {
		u.Role = *patch.Role
		u.IsAdmin = *patch.Role == store.RoleAdmin
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
		if u.IsAdmin {
			u.Role = store.RoleAdmin
		} else if u.Role == store.RoleAdmin {
			u.Role = store.RoleUser
		}
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if patch.FirstName != nil {
		u.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		u.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	return u
}
