// Package export renders the calendar as an iCalendar file and the agenda
// as a PDF.
package export

import "errors"

// Format represents the export output format
type Format string

const (
	FormatICS Format = "ics"
	FormatPDF Format = "pdf"
)

const (
	CalendarFilename = "sk-crm-calendar.ics"
	CalendarMimeType = "text/calendar;charset=utf-8"
	PDFMimeType      = "application/pdf"
)

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
