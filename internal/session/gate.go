// Package session tracks who is logged in and persists the session record.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/authpw"
	"skcrm/core/internal/repo"
	"skcrm/core/internal/store"
)

type State int

const (
	LoggedOut State = iota
	LoggedIn
)

func (s State) String() string {
	if s == LoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// Users is the part of the user repository the gate needs.
type Users interface {
	ByID(id string) (store.User, bool)
	FindByUsername(username string) (store.User, bool)
	Add(ctx context.Context, in repo.UserInput) (store.User, error)
	Update(ctx context.Context, id string, patch repo.UserPatch) (store.User, error)
}

// RegisterInput holds the self-registration form.
type RegisterInput struct {
	Username   string
	Password   string
	Email      string
	Position   string
	Department string
	FirstName  string
	LastName   string
}

type Options struct {
	Store  *store.Store
	Users  Users
	Hasher *authpw.Hasher
	Now    func() time.Time
	Log    logrus.FieldLogger
}

// Gate holds the single current session.
type Gate struct {
	store  *store.Store
	users  Users
	hasher *authpw.Hasher
	now    func() time.Time
	log    logrus.FieldLogger

	mu     sync.Mutex
	userID string
}

func NewGate(opts Options) *Gate {
	if opts.Hasher == nil {
		opts.Hasher = authpw.NewHasher(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Gate{
		store:  opts.Store,
		users:  opts.Users,
		hasher: opts.Hasher,
		now:    opts.Now,
		log:    opts.Log.WithField("component", "session"),
	}
}

// Restore loads the stored session, migrating the legacy bare user id when
// no session record exists. A session naming a missing or inactive user is
// cleared.
func (g *Gate) Restore(ctx context.Context) (store.User, bool, error) {
	var sess store.Session
	found := g.store.Get(ctx, store.KeyCurrentSession, &sess) && sess.UserID != ""

	if !found {
		var legacyID string
		if g.store.Get(ctx, store.KeyCurrentUser, &legacyID) && legacyID != "" {
			sess = store.Session{UserID: legacyID, LoginTime: g.now()}
			found = true
			if err := g.store.Set(ctx, store.KeyCurrentSession, sess); err != nil {
				return store.User{}, false, err
			}
			g.log.WithField("user", legacyID).Info("migrated legacy current user")
		}
		if err := g.store.Delete(ctx, store.KeyCurrentUser); err != nil {
			g.log.WithError(err).Warn("clear legacy current user")
		}
	}
	if !found {
		g.setCurrent("")
		return store.User{}, false, nil
	}

	user, ok := g.users.ByID(sess.UserID)
	if !ok || !user.IsActive {
		g.log.WithField("user", sess.UserID).Info("stale session cleared")
		g.setCurrent("")
		if err := g.store.Delete(ctx, store.KeyCurrentSession); err != nil {
			return store.User{}, false, err
		}
		return store.User{}, false, nil
	}
	g.setCurrent(user.ID)
	return user, true, nil
}

// Login matches username case-insensitively. A failed attempt writes
// nothing. A legacy plaintext password is rehashed on success.
func (g *Gate) Login(ctx context.Context, username, password string) (store.User, error) {
	user, ok := g.users.FindByUsername(username)
	if !ok || !g.hasher.Verify(user.Password, password) {
		return store.User{}, apperr.Validation("INVALID_CREDENTIALS", "Неверный логин или пароль")
	}

	if g.hasher.NeedsUpgrade(user.Password) {
		if upgraded, err := g.upgrade(ctx, user.ID, password); err != nil {
			g.log.WithError(err).WithField("user", user.ID).Warn("password upgrade failed")
		} else {
			user = upgraded
		}
	}

	if err := g.start(ctx, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

func (g *Gate) Logout(ctx context.Context) error {
	g.setCurrent("")
	return g.store.Delete(ctx, store.KeyCurrentSession)
}

// Current resolves the logged-in user. A session whose user has since been
// deleted reads as logged out.
func (g *Gate) Current() (store.User, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.userID == "" {
		return store.User{}, false
	}
	user, ok := g.users.ByID(g.userID)
	if !ok {
		g.userID = ""
		return store.User{}, false
	}
	return user, true
}

func (g *Gate) State() State {
	if _, ok := g.Current(); ok {
		return LoggedIn
	}
	return LoggedOut
}

// Register creates an active non-admin user and logs them in.
func (g *Gate) Register(ctx context.Context, in RegisterInput) (store.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" || strings.TrimSpace(in.Email) == "" {
		return store.User{}, apperr.Validation("USER_FIELDS_REQUIRED", "username, password and email are required")
	}
	if _, taken := g.users.FindByUsername(in.Username); taken {
		return store.User{}, apperr.Validation("USERNAME_TAKEN", "Пользователь с таким логином уже существует")
	}
	hash, err := g.hasher.Hash(in.Password)
	if err != nil {
		return store.User{}, err
	}

	user, err := g.users.Add(ctx, repo.UserInput{
		Username:   in.Username,
		Password:   hash,
		Email:      in.Email,
		Position:   in.Position,
		Department: in.Department,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		Role:       store.RoleUser,
		IsActive:   true,
	})
	if err != nil {
		return store.User{}, err
	}
	if err := g.start(ctx, user.ID); err != nil {
		return store.User{}, err
	}
	return user, nil
}

// ChangePassword replaces the current user's password.
func (g *Gate) ChangePassword(ctx context.Context, current, next, confirm string) error {
	user, ok := g.Current()
	if !ok {
		return apperr.Validation("NOT_LOGGED_IN", "no user is logged in")
	}
	if !g.hasher.Verify(user.Password, current) {
		return apperr.Validation("WRONG_PASSWORD", "current password is incorrect")
	}
	if next == "" {
		return apperr.Validation("PASSWORD_REQUIRED", "new password is required")
	}
	if next != confirm {
		return apperr.Validation("PASSWORD_MISMATCH", "passwords do not match")
	}
	_, err := g.upgrade(ctx, user.ID, next)
	return err
}

func (g *Gate) upgrade(ctx context.Context, userID, password string) (store.User, error) {
	hash, err := g.hasher.Hash(password)
	if err != nil {
		return store.User{}, err
	}
	return g.users.Update(ctx, userID, repo.UserPatch{Password: &hash})
}

func (g *Gate) start(ctx context.Context, userID string) error {
	sess := store.Session{UserID: userID, LoginTime: g.now()}
	if err := g.store.Set(ctx, store.KeyCurrentSession, sess); err != nil {
		return err
	}
	g.setCurrent(userID)
	return nil
}

func (g *Gate) setCurrent(userID string) {
	g.mu.Lock()
	g.userID = userID
	g.mu.Unlock()
}
