package export

import (
	"bytes"
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var agendaTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/agenda.html")
	if err != nil {
		agendaTemplate = template.Must(template.New("agenda").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	agendaTemplate = template.Must(template.New("agenda").Funcs(funcMap).Parse(string(templateContent)))
}

// AgendaData holds data for agenda template rendering
type AgendaData struct {
	Title       string
	Owner       string
	GeneratedAt time.Time
	Days        []AgendaDay
}

type AgendaDay struct {
	Label string
	Items []AgendaItem
}

// AgendaItem is one row. Kind is "event" or "deadline" and doubles as the
// row's CSS class.
type AgendaItem struct {
	Kind   string
	Title  string
	Detail string
	Start  time.Time
	AllDay bool
}

// RenderAgendaHTML renders the agenda template with provided data
func RenderAgendaHTML(data AgendaData) (string, error) {
	var buf bytes.Buffer
	if err := agendaTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Days}}
  <h2>{{.Label}}</h2>
  <ul>{{range .Items}}<li>{{.Title}}</li>{{end}}</ul>
  {{end}}
</body>
</html>`
