package search

import (
	"sync"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/store"
	"skcrm/core/internal/views"
)

// Service is the facade that answers quick-find from the engine when it is
// healthy and from the local scan otherwise. Global search is always local.
type Service struct {
	engine Engine
	log    logrus.FieldLogger
	wg     sync.WaitGroup
}

// NewService creates a search service. engine may be nil if no index is configured.
func NewService(engine Engine, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{engine: engine, log: log.WithField("component", "search")}
}

func (s *Service) Global(snap Snapshot, query string, viewer Viewer) Results {
	return Global(snap, query, viewer)
}

// QuickFind returns ranked hits for query. Engine hits are checked against
// snap so a hit the viewer may not see, or one that no longer exists, is
// dropped.
func (s *Service) QuickFind(snap Snapshot, query string, viewer Viewer, limit int) []Result {
	if limit <= 0 {
		limit = 20
	}
	if s.available() {
		hits, _, err := s.engine.Search(Query{Text: query, Limit: limit, IncludeUsers: viewer.IsAdmin})
		if err == nil {
			return truncate(postFilter(hits, snap, viewer), limit)
		}
		s.log.WithError(err).Warn("engine search failed, falling back to local scan")
	}
	return truncate(Global(snap, query, viewer).Flatten(), limit)
}

func postFilter(hits []Result, snap Snapshot, viewer Viewer) []Result {
	visible := make(map[string]bool)
	for _, t := range views.VisibleTasks(snap.Tasks, viewer.UserID) {
		visible[t.ID] = true
	}
	projects := make(map[string]bool, len(snap.Projects))
	for _, p := range snap.Projects {
		projects[p.ID] = true
	}
	users := make(map[string]bool, len(snap.Users))
	for _, u := range snap.Users {
		users[u.ID] = true
	}

	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		switch hit.Type {
		case ResultTask:
			if !visible[hit.ID] {
				continue
			}
		case ResultProject:
			if !projects[hit.ID] {
				continue
			}
		case ResultUser:
			if !viewer.IsAdmin || !users[hit.ID] {
				continue
			}
		default:
			continue
		}
		out = append(out, hit)
	}
	return out
}

func truncate(results []Result, limit int) []Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}

func (s *Service) available() bool {
	return s.engine != nil && s.engine.Healthy()
}

// IndexTask pushes a task to the engine (fire-and-forget).
func (s *Service) IndexTask(t store.Task) {
	s.async("index task "+t.ID, func() error { return s.engine.IndexTasks([]TaskRecord{taskRecord(t)}) })
}

func (s *Service) IndexProject(p store.Project) {
	s.async("index project "+p.ID, func() error { return s.engine.IndexProjects([]ProjectRecord{projectRecord(p)}) })
}

func (s *Service) IndexUser(u store.User) {
	s.async("index user "+u.ID, func() error { return s.engine.IndexUsers([]UserRecord{userRecord(u)}) })
}

// Remove drops an entity from the engine (fire-and-forget).
func (s *Service) Remove(kind ResultType, id string) {
	s.async("delete "+string(kind)+" "+id, func() error { return s.engine.Delete(kind, id) })
}

// ReindexAll pushes the whole snapshot to the engine. Called during Bootstrap.
func (s *Service) ReindexAll(snap Snapshot) {
	if !s.available() {
		return
	}
	tasks := make([]TaskRecord, len(snap.Tasks))
	for i, t := range snap.Tasks {
		tasks[i] = taskRecord(t)
	}
	projects := make([]ProjectRecord, len(snap.Projects))
	for i, p := range snap.Projects {
		projects[i] = projectRecord(p)
	}
	users := make([]UserRecord, len(snap.Users))
	for i, u := range snap.Users {
		users[i] = userRecord(u)
	}

	if err := s.engine.IndexTasks(tasks); err != nil {
		s.log.WithError(err).Warn("reindex tasks")
	}
	if err := s.engine.IndexProjects(projects); err != nil {
		s.log.WithError(err).Warn("reindex projects")
	}
	if err := s.engine.IndexUsers(users); err != nil {
		s.log.WithError(err).Warn("reindex users")
	}
}

// Wait blocks until in-flight index updates finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) async(what string, fn func() error) {
	if !s.available() {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.log.WithError(err).Warn(what)
		}
	}()
}
