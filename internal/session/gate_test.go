package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"skcrm/core/internal/apperr"
	"skcrm/core/internal/authpw"
	"skcrm/core/internal/logging"
	"skcrm/core/internal/repo"
	"skcrm/core/internal/store"
)

var loginTime = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store *store.Store
	users *repo.Users
	gate  *Gate
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := store.New(store.NewMemoryBackend(), logging.Discard())
	users := repo.NewUsers(repo.Env{Store: s, Now: func() time.Time { return loginTime }, Log: logging.Discard()}, nil)
	if err := users.Init(context.Background()); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	gate := NewGate(Options{
		Store:  s,
		Users:  users,
		Hasher: authpw.NewHasher(bcrypt.MinCost),
		Now:    func() time.Time { return loginTime },
		Log:    logging.Discard(),
	})
	return fixture{store: s, users: users, gate: gate}
}

func storedSession(t *testing.T, s *store.Store) (store.Session, bool) {
	t.Helper()
	var sess store.Session
	ok := s.Get(context.Background(), store.KeyCurrentSession, &sess)
	return sess, ok
}

func TestLoginUpgradesLegacyPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.gate.Login(ctx, "ADMIN", "admin123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.ID != "1" || f.gate.State() != LoggedIn {
		t.Fatalf("Login() = %+v, state %v", user, f.gate.State())
	}
	sess, ok := storedSession(t, f.store)
	if !ok || sess.UserID != "1" || !sess.LoginTime.Equal(loginTime) {
		t.Fatalf("stored session = %+v, %v", sess, ok)
	}

	stored, _ := f.users.ByID("1")
	if !authpw.IsHashed(stored.Password) {
		t.Fatalf("password not upgraded: %q", stored.Password)
	}

	if err := f.gate.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := f.gate.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatalf("Login() after upgrade error = %v", err)
	}
}

func TestLoginFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct{ username, password string }{
		{"admin", "wrong"},
		{"nobody", "admin123"},
		{"admin", ""},
	} {
		_, err := f.gate.Login(ctx, tc.username, tc.password)
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("Login(%q, %q) error = %v, want validation", tc.username, tc.password, err)
		}
	}
	if _, ok := storedSession(t, f.store); ok {
		t.Fatal("failed login stored a session")
	}
	stored, _ := f.users.ByID("1")
	if stored.Password != "admin123" {
		t.Fatal("failed login touched the stored password")
	}
	if f.gate.State() != LoggedOut {
		t.Fatal("failed login changed the state")
	}
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid session", func(t *testing.T) {
		f := newFixture(t)
		_ = f.store.Set(ctx, store.KeyCurrentSession, store.Session{UserID: "1", LoginTime: loginTime})
		user, ok, err := f.gate.Restore(ctx)
		if err != nil || !ok || user.ID != "1" {
			t.Fatalf("Restore() = %+v, %v, %v", user, ok, err)
		}
	})

	t.Run("deleted user", func(t *testing.T) {
		f := newFixture(t)
		_ = f.store.Set(ctx, store.KeyCurrentSession, store.Session{UserID: "gone"})
		_, ok, err := f.gate.Restore(ctx)
		if err != nil || ok {
			t.Fatalf("Restore() = %v, %v; want logged out", ok, err)
		}
		if _, stored := storedSession(t, f.store); stored {
			t.Fatal("stale session not cleared")
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		f := newFixture(t)
		inactive := false
		if _, err := f.users.Update(ctx, "1", repo.UserPatch{IsActive: &inactive}); err != nil {
			t.Fatal(err)
		}
		_ = f.store.Set(ctx, store.KeyCurrentSession, store.Session{UserID: "1"})
		if _, ok, _ := f.gate.Restore(ctx); ok {
			t.Fatal("inactive user restored")
		}
	})

	t.Run("legacy current user", func(t *testing.T) {
		f := newFixture(t)
		_ = f.store.Set(ctx, store.KeyCurrentUser, "1")
		user, ok, err := f.gate.Restore(ctx)
		if err != nil || !ok || user.ID != "1" {
			t.Fatalf("Restore() = %+v, %v, %v", user, ok, err)
		}
		sess, stored := storedSession(t, f.store)
		if !stored || sess.UserID != "1" {
			t.Fatalf("legacy id not migrated: %+v", sess)
		}
		if _, ok, _ := f.store.Raw(ctx, store.KeyCurrentUser); ok {
			t.Fatal("legacy key not cleared")
		}
	})

	t.Run("nothing stored", func(t *testing.T) {
		f := newFixture(t)
		if _, ok, err := f.gate.Restore(ctx); ok || err != nil {
			t.Fatalf("Restore() = %v, %v", ok, err)
		}
	})
}

func TestCurrentAfterUserDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.gate.Register(ctx, RegisterInput{Username: "ivan", Password: "pw", Email: "ivan@example.com"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := f.users.Remove(ctx, user.ID); err != nil {
		t.Fatal(err)
	}
	if _, ok := f.gate.Current(); ok {
		t.Fatal("deleted user is still current")
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.gate.Register(ctx, RegisterInput{Username: "Admin", Password: "x", Email: "a@b.c"}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Register() duplicate error = %v, want validation", err)
	}
	if len(f.users.All()) != 1 {
		t.Fatal("rejected registration created a user")
	}

	user, err := f.gate.Register(ctx, RegisterInput{Username: "maria", Password: "pw", Email: "m@example.com", Department: "Sales"})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.IsAdmin || user.Role != store.RoleUser || !user.IsActive {
		t.Fatalf("registered user = %+v", user)
	}
	if user.Password == "pw" || !authpw.IsHashed(user.Password) {
		t.Fatal("registered password stored in plain text")
	}
	current, ok := f.gate.Current()
	if !ok || current.ID != user.ID {
		t.Fatal("registration did not log in")
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.gate.ChangePassword(ctx, "admin123", "n", "n"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("ChangePassword() logged out error = %v", err)
	}
	if _, err := f.gate.Login(ctx, "admin", "admin123"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name                   string
		current, next, confirm string
		code                   string
	}{
		{"wrong current", "nope", "n", "n", "WRONG_PASSWORD"},
		{"empty next", "admin123", "", "", "PASSWORD_REQUIRED"},
		{"mismatch", "admin123", "n1", "n2", "PASSWORD_MISMATCH"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.gate.ChangePassword(ctx, tc.current, tc.next, tc.confirm)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Code != tc.code {
				t.Fatalf("ChangePassword() error = %v, want %s", err, tc.code)
			}
		})
	}

	if err := f.gate.ChangePassword(ctx, "admin123", "fresh", "fresh"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	_ = f.gate.Logout(ctx)
	if _, err := f.gate.Login(ctx, "admin", "admin123"); err == nil {
		t.Fatal("old password still works")
	}
	if _, err := f.gate.Login(ctx, "admin", "fresh"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}
