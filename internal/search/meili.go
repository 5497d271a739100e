package search

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/sirupsen/logrus"
)

const (
	idxTasks    = "crm_tasks"
	idxProjects = "crm_projects"
	idxUsers    = "crm_users"
)

// Meili implements Engine via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
	log     logrus.FieldLogger
}

// NewMeili creates a Meilisearch client and configures indexes. An
// unreachable server is not an error: the client starts unhealthy and the
// health loop picks it up once it answers.
func NewMeili(url, apiKey string, log logrus.FieldLogger) *Meili {
	if log == nil {
		log = logrus.StandardLogger()
	}
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
		log:    log.WithField("component", "meilisearch"),
	}

	if _, err := client.Health(); err != nil {
		m.log.WithError(err).WithField("url", url).Warn("meilisearch unavailable")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndexes()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndexes() {
	indexes := []struct {
		uid        string
		searchable []string
	}{
		{uid: idxTasks, searchable: []string{"title", "description", "tags", "status", "priority"}},
		{uid: idxProjects, searchable: []string{"name", "description", "fields"}},
		{uid: idxUsers, searchable: []string{"username", "fullName", "email", "position", "department"}},
	}

	for _, idx := range indexes {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{
			Uid:        idx.uid,
			PrimaryKey: "id",
		}); err != nil {
			m.log.WithError(err).WithField("index", idx.uid).Debug("create index (may already exist)")
		}

		searchable := idx.searchable
		if _, err := m.client.Index(idx.uid).UpdateSearchableAttributes(&searchable); err != nil {
			m.log.WithError(err).WithField("index", idx.uid).Warn("update searchable attributes")
		}
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				m.log.Info("meilisearch recovered, reconfiguring indexes")
				m.configureIndexes()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search queries the task and project indexes, and the user index when
// q.IncludeUsers is set, and concatenates the ranked hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}

	uids := []string{idxTasks, idxProjects}
	if q.IncludeUsers {
		uids = append(uids, idxUsers)
	}
	queries := make([]*meili.SearchRequest, 0, len(uids))
	for _, uid := range uids {
		queries = append(queries, &meili.SearchRequest{
			IndexUID: uid,
			Query:    q.Text,
			Limit:    limit,
		})
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{
		Queries: queries,
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		rtyp := indexToResultType(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, hitToResult(hit, rtyp))
		}
	}
	return results, total, nil
}

func indexToResultType(uid string) ResultType {
	switch uid {
	case idxTasks:
		return ResultTask
	case idxProjects:
		return ResultProject
	case idxUsers:
		return ResultUser
	default:
		return ""
	}
}

func resultTypeToIndex(kind ResultType) string {
	switch kind {
	case ResultTask:
		return idxTasks
	case ResultProject:
		return idxProjects
	case ResultUser:
		return idxUsers
	default:
		return ""
	}
}

func hitToResult(hit meili.Hit, rtyp ResultType) Result {
	r := Result{Type: rtyp, ID: decodeString(hit, "id")}
	switch rtyp {
	case ResultTask:
		r.Title = decodeString(hit, "title")
		r.Snippet = decodeString(hit, "description")
	case ResultProject:
		r.Title = decodeString(hit, "name")
		r.Snippet = decodeString(hit, "description")
	case ResultUser:
		r.Title = firstNonBlank(decodeString(hit, "fullName"), decodeString(hit, "username"))
		r.Snippet = decodeString(hit, "email")
	}
	return r
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}

func (m *Meili) IndexTasks(tasks []TaskRecord) error {
	if len(tasks) == 0 {
		return nil
	}
	_, err := m.client.Index(idxTasks).AddDocuments(tasks, nil)
	return err
}

func (m *Meili) IndexProjects(projects []ProjectRecord) error {
	if len(projects) == 0 {
		return nil
	}
	_, err := m.client.Index(idxProjects).AddDocuments(projects, nil)
	return err
}

func (m *Meili) IndexUsers(users []UserRecord) error {
	if len(users) == 0 {
		return nil
	}
	_, err := m.client.Index(idxUsers).AddDocuments(users, nil)
	return err
}

// Delete removes one entity from its index.
func (m *Meili) Delete(kind ResultType, id string) error {
	uid := resultTypeToIndex(kind)
	if uid == "" {
		return fmt.Errorf("no index for %q", kind)
	}
	_, err := m.client.Index(uid).DeleteDocument(id, nil)
	return err
}
