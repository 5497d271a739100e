// Package app wires the repositories, the reminder scheduler, the session
// gate and the exporters into one application context.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/authpw"
	"skcrm/core/internal/backup"
	"skcrm/core/internal/config"
	"skcrm/core/internal/export"
	"skcrm/core/internal/rbac"
	"skcrm/core/internal/reminder"
	"skcrm/core/internal/repo"
	"skcrm/core/internal/search"
	"skcrm/core/internal/session"
	"skcrm/core/internal/store"
)

// Mailer relays notifications by email.
type Mailer interface {
	IsConfigured() bool
	SendNotification(to, userName string, n store.Notification) error
}

type Deps struct {
	Config config.Config
	Store  *store.Store
	Log    logrus.FieldLogger
	Clock  reminder.Clock
	NewID  func() string
	Hasher *authpw.Hasher

	// Optional collaborators.
	Engine search.Engine
	Mailer Mailer
	Backup *backup.Service
}

type Service struct {
	cfg   config.Config
	store *store.Store
	loc   *time.Location
	clock reminder.Clock
	log   logrus.FieldLogger

	users         *repo.Users
	tasks         *repo.Tasks
	projects      *repo.Projects
	stages        *repo.Stages
	calendar      *repo.CalendarEvents
	comments      *repo.Comments
	messages      *repo.Messages
	notifications *repo.Notifications
	templates     *repo.Templates
	settings      *repo.Settings

	search    *search.Service
	scheduler *reminder.Scheduler
	sweeper   *reminder.Sweeper
	gate      *session.Gate
	exporter  *export.Service
	backup    *backup.Service
	mailer    Mailer
	hasher    *authpw.Hasher

	relays sync.WaitGroup
}

func New(deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	if deps.Clock == nil {
		deps.Clock = reminder.SystemClock()
	}
	if deps.Hasher == nil {
		deps.Hasher = authpw.NewHasher(0)
	}
	loc := deps.Config.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Service{
		cfg:    deps.Config,
		store:  deps.Store,
		loc:    loc,
		clock:  deps.Clock,
		log:    deps.Log.WithField("component", "app"),
		backup: deps.Backup,
		mailer: deps.Mailer,
		hasher: deps.Hasher,
	}

	env := repo.Env{Store: deps.Store, Now: deps.Clock.Now, NewID: deps.NewID, Log: deps.Log}
	s.tasks = repo.NewTasks(env)
	s.users = repo.NewUsers(env, s.tasks)
	s.stages = repo.NewStages(env)
	s.projects = repo.NewProjects(env, s.stages)
	s.stages.SetProjects(s.projects)
	s.calendar = repo.NewCalendarEvents(env)
	s.comments = repo.NewComments(env)
	s.messages = repo.NewMessages(env)
	s.notifications = repo.NewNotifications(env)
	s.templates = repo.NewTemplates(env)
	s.settings = repo.NewSettings(env)

	s.tasks.SetEvents(s)
	s.calendar.SetEvents(s)

	notifier := relayNotifier{s}
	s.search = search.NewService(deps.Engine, deps.Log)
	s.scheduler = reminder.New(reminder.Options{
		Clock:        deps.Clock,
		Location:     loc,
		ReminderHour: deps.Config.ReminderHour,
		Notifier:     notifier,
		Log:          deps.Log,
	})
	s.sweeper = reminder.NewSweeper(reminder.SweeperOptions{
		Source:   reminder.SourceFuncs{TasksFn: s.tasks.All, EventsFn: s.calendar.All},
		Notifier: notifier,
		Clock:    deps.Clock,
		Location: loc,
		Interval: deps.Config.SweepInterval,
		Log:      deps.Log,
	})
	s.gate = session.NewGate(session.Options{
		Store:  deps.Store,
		Users:  s.users,
		Hasher: deps.Hasher,
		Now:    deps.Clock.Now,
		Log:    deps.Log,
	})
	s.exporter = export.NewService(loc, deps.Clock.Now, deps.Log)
	return s
}

// Bootstrap loads every collection, restores the session, arms reminders
// and pushes everything to the search index.
func (s *Service) Bootstrap(ctx context.Context) error {
	if err := s.initRepos(ctx); err != nil {
		return err
	}
	user, ok, err := s.gate.Restore(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if ok {
		s.log.WithField("user", user.Username).Info("session restored")
	}
	s.scheduler.Rebuild(s.calendar.All(), s.tasks.All())
	s.search.ReindexAll(s.snapshot())

	if path := s.cfg.ExportICSPath; path != "" {
		if err := s.writeCalendarFile(path); err != nil {
			s.log.WithError(err).WithField("path", path).Warn("calendar export failed")
		}
	}
	s.log.WithFields(logrus.Fields{
		"tasks":     len(s.tasks.All()),
		"events":    len(s.calendar.All()),
		"reminders": s.scheduler.Armed(),
	}).Info("bootstrap complete")
	return nil
}

func (s *Service) initRepos(ctx context.Context) error {
	inits := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"users", s.users.Init},
		{"tasks", s.tasks.Init},
		{"stages", s.stages.Init},
		{"projects", s.projects.Init},
		{"calendar", s.calendar.Init},
		{"comments", s.comments.Init},
		{"messages", s.messages.Init},
		{"notifications", s.notifications.Init},
		{"templates", s.templates.Init},
		{"settings", s.settings.Init},
	}
	for _, in := range inits {
		if err := in.fn(ctx); err != nil {
			return fmt.Errorf("init %s: %w", in.name, err)
		}
	}
	return nil
}

// Run sweeps for due items until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.sweeper.Run(ctx)
}

// Close stops the reminder timers and waits for pending email relays.
func (s *Service) Close() {
	s.scheduler.Close()
	s.search.Wait()
	s.relays.Wait()
}

// Wait blocks until background index updates and email relays finish.
func (s *Service) Wait() {
	s.search.Wait()
	s.relays.Wait()
}

func (s *Service) currentUser() (store.User, error) {
	user, ok := s.gate.Current()
	if !ok {
		return store.User{}, errNotLoggedIn()
	}
	return user, nil
}

func (s *Service) require(action rbac.Action) (store.User, error) {
	user, err := s.currentUser()
	if err != nil {
		return store.User{}, err
	}
	if !rbac.Allowed(user, action) {
		return store.User{}, errForbidden(action)
	}
	return user, nil
}

func (s *Service) snapshot() search.Snapshot {
	return search.Snapshot{
		Tasks:    s.tasks.All(),
		Projects: s.projects.All(),
		Users:    s.users.All(),
	}
}

func (s *Service) writeCalendarFile(path string) error {
	res := s.exporter.Calendar(s.calendar.All(), s.tasks.All())
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return err
	}
	s.log.WithField("path", path).Info("calendar written")
	return nil
}

// Login, Logout and Register delegate to the session gate.

func (s *Service) Login(ctx context.Context, username, password string) (store.User, error) {
	return s.gate.Login(ctx, username, password)
}

func (s *Service) Logout(ctx context.Context) error {
	return s.gate.Logout(ctx)
}

func (s *Service) Register(ctx context.Context, in session.RegisterInput) (store.User, error) {
	user, err := s.gate.Register(ctx, in)
	if err != nil {
		return store.User{}, err
	}
	s.search.IndexUser(user)
	return user, nil
}

func (s *Service) ChangePassword(ctx context.Context, current, next, confirm string) error {
	return s.gate.ChangePassword(ctx, current, next, confirm)
}

// CurrentUser reports who is logged in.
func (s *Service) CurrentUser() (store.User, bool) {
	return s.gate.Current()
}

func (s *Service) Settings() store.Settings {
	return s.settings.Get()
}

func (s *Service) SaveSettings(ctx context.Context, patch repo.SettingsPatch) (store.Settings, error) {
	if _, err := s.require(rbac.ActionSettingsAdmin); err != nil {
		return store.Settings{}, err
	}
	return s.settings.Save(ctx, patch)
}
