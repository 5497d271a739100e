package export

import (
	"strings"
	"time"

	"skcrm/core/internal/store"
)

const (
	icsDate     = "20060102"
	icsDateTime = "20060102T150405"
)

var icsEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	"\n", `\n`,
)

// CalendarICS serialises events, then tasks with a deadline, as one
// VCALENDAR. Lines end in CRLF except the last. Times are written in loc
// without a zone suffix. Entries whose date cannot be parsed are skipped.
func CalendarICS(events []store.CalendarEvent, tasks []store.Task, now time.Time, loc *time.Location) Result {
	if loc == nil {
		loc = time.Local
	}
	stamp := now.In(loc).Format(icsDateTime)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//SK CRM//Calendar Module//RU",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}

	for _, e := range events {
		start, ok := store.EventStart(e, loc, 0)
		if !ok {
			continue
		}
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+e.ID+"@sk-crm",
			"DTSTAMP:"+stamp,
		)
		if e.Time != "" {
			lines = append(lines,
				"DTSTART:"+start.Format(icsDateTime),
				"DTEND:"+start.Add(time.Hour).Format(icsDateTime),
			)
		} else {
			lines = append(lines,
				"DTSTART;VALUE=DATE:"+start.Format(icsDate),
				"DTEND;VALUE=DATE:"+start.AddDate(0, 0, 1).Format(icsDate),
			)
		}
		lines = append(lines,
			"SUMMARY:"+escapeText(e.Title),
			"DESCRIPTION:"+escapeText(e.Description),
			"END:VEVENT",
		)
	}

	for _, t := range tasks {
		if t.Deadline == "" {
			continue
		}
		deadline, ok := store.ParseDeadline(t.Deadline, loc)
		if !ok {
			continue
		}
		description := "Статус: " + t.Status + "\nПриоритет: " + t.Priority + "\n" + t.Description
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:task_"+t.ID+"@sk-crm",
			"DTSTAMP:"+stamp,
			"DTSTART:"+deadline.Format(icsDateTime),
			"DTEND:"+deadline.Add(time.Hour).Format(icsDateTime),
			"SUMMARY:"+escapeText("Дедлайн: "+t.Title),
			"DESCRIPTION:"+escapeText(description),
			"END:VEVENT",
		)
	}

	lines = append(lines, "END:VCALENDAR")
	return Result{
		Data:     []byte(strings.Join(lines, "\r\n")),
		Filename: CalendarFilename,
		MimeType: CalendarMimeType,
	}
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	return icsEscaper.Replace(s)
}
