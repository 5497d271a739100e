package export

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"skcrm/core/internal/store"
	"skcrm/core/internal/views"
)

// DefaultAgendaDays is the agenda span when a request leaves Days unset.
const DefaultAgendaDays = 7

var weekdays = [...]string{"Воскресенье", "Понедельник", "Вторник", "Среда", "Четверг", "Пятница", "Суббота"}

// AgendaRequest selects what goes into the PDF agenda.
type AgendaRequest struct {
	Owner  string
	From   time.Time
	Days   int
	Events []store.CalendarEvent
	Tasks  []store.Task
}

// Service provides calendar export functionality
type Service struct {
	loc *time.Location
	now func() time.Time
	log logrus.FieldLogger
}

// NewService creates a new export service
func NewService(loc *time.Location, now func() time.Time, log logrus.FieldLogger) *Service {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{loc: loc, now: now, log: log.WithField("component", "export")}
}

// Calendar exports every event and every task with a deadline.
func (s *Service) Calendar(events []store.CalendarEvent, tasks []store.Task) Result {
	res := CalendarICS(events, tasks, s.now(), s.loc)
	s.log.WithFields(logrus.Fields{"events": len(events), "bytes": len(res.Data)}).Debug("calendar exported")
	return res
}

// AgendaData groups the events and deadlines of the requested days.
func (s *Service) AgendaData(req AgendaRequest) AgendaData {
	from := req.From
	if from.IsZero() {
		from = s.now()
	}
	from = store.StartOfDay(from.In(s.loc))
	days := req.Days
	if days <= 0 {
		days = DefaultAgendaDays
	}
	to := from.AddDate(0, 0, days)

	tasks := make(map[string]store.Task, len(req.Tasks))
	for _, t := range req.Tasks {
		tasks[t.ID] = t
	}

	data := AgendaData{
		Title:       fmt.Sprintf("Повестка %s - %s", from.Format("02.01.2006"), to.AddDate(0, 0, -1).Format("02.01.2006")),
		Owner:       req.Owner,
		GeneratedAt: s.now().In(s.loc),
	}
	var current *AgendaDay
	var currentDay time.Time
	for _, entry := range views.CalendarEntries(req.Events, req.Tasks, from, to) {
		day := store.StartOfDay(entry.Start)
		if current == nil || !day.Equal(currentDay) {
			data.Days = append(data.Days, AgendaDay{Label: dayLabel(day)})
			current = &data.Days[len(data.Days)-1]
			currentDay = day
		}
		current.Items = append(current.Items, agendaItem(entry, tasks))
	}
	return data
}

// Agenda renders the agenda and prints it to PDF.
func (s *Service) Agenda(ctx context.Context, req AgendaRequest) (*Result, error) {
	data := s.AgendaData(req)
	html, err := RenderAgendaHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	from := req.From
	if from.IsZero() {
		from = s.now()
	}
	return exportPDF(ctx, html, "sk-crm-agenda-"+from.In(s.loc).Format("2006-01-02"))
}

func agendaItem(entry views.Entry, tasks map[string]store.Task) AgendaItem {
	item := AgendaItem{
		Kind:   "event",
		Title:  entry.Title,
		Start:  entry.Start,
		AllDay: entry.AllDay,
	}
	if entry.Event != nil {
		item.Detail = entry.Event.Description
	}
	if entry.TaskID != "" {
		item.Kind = "deadline"
		if t, ok := tasks[entry.TaskID]; ok {
			item.Detail = t.Status + ", " + t.Priority
		}
	}
	return item
}

func dayLabel(day time.Time) string {
	return weekdays[day.Weekday()] + ", " + day.Format("02.01.2006")
}
