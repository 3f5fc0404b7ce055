package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var (
	meetingTemplate *template.Template
	textTemplate    *texttemplate.Template
)

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	htmlContent, err := templateFS.ReadFile("templates/meeting.html")
	if err != nil {
		// Fallback to built-in template if file not found
		meetingTemplate = template.Must(template.New("meeting").Funcs(funcMap).Parse(fallbackHTMLTemplate))
	} else {
		meetingTemplate = template.Must(template.New("meeting").Funcs(funcMap).Parse(string(htmlContent)))
	}

	textContent, err := templateFS.ReadFile("templates/meeting.txt")
	if err != nil {
		textTemplate = texttemplate.Must(texttemplate.New("meeting").Parse(fallbackTextTemplate))
	} else {
		textTemplate = texttemplate.Must(texttemplate.New("meeting").Parse(string(textContent)))
	}
}

// TemplateData holds data for meeting template rendering
type TemplateData struct {
	Name              string
	MeetingID         string
	ExportedAt        time.Time
	Status            string
	Sections          []TemplateSection
	UnstructuredNotes string
	FreeFormInsights  string
	MeetingSummary    string
	OverallAssessment string
}

// TemplateSection holds one agenda section with its captured notes
type TemplateSection struct {
	Name      string
	Questions []TemplateQuestion
	Points    []TemplatePoint
	Notes     []string
}

// TemplateQuestion pairs a planned question with the response taken live
type TemplateQuestion struct {
	Question string
	Response string
}

// TemplatePoint pairs a talking point with its running notes
type TemplatePoint struct {
	Point string
	Notes string
}

// RenderMeetingHTML renders the HTML export template with provided data
func RenderMeetingHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := meetingTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderMeetingText renders the plain-text export template
func RenderMeetingText(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const fallbackHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Name}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .section { margin: 1.5rem 0; }
    .response { background: #f5f5f5; padding: 0.5rem 1rem; margin: 0.5rem 0; border-left: 3px solid #333; }
  </style>
</head>
<body>
  <h1>{{.Name}}</h1>
  <div class="meta">{{.MeetingID}} | {{.Status}} | exported {{formatDate .ExportedAt "Jan 2, 2006 15:04"}}</div>
  {{range .Sections}}
  <div class="section">
    <h2>{{.Name}}</h2>
    {{range .Questions}}<div class="response"><strong>{{.Question}}</strong><br>{{.Response}}</div>{{end}}
    {{range .Points}}<div class="response"><strong>{{.Point}}</strong><br>{{.Notes}}</div>{{end}}
    {{range .Notes}}<div class="response">{{.}}</div>{{end}}
  </div>
  {{end}}
  {{if .UnstructuredNotes}}<h2>Notes</h2><p>{{.UnstructuredNotes}}</p>{{end}}
  {{if .FreeFormInsights}}<h2>Insights</h2><p>{{.FreeFormInsights}}</p>{{end}}
  {{if .MeetingSummary}}<h2>Summary</h2><p>{{.MeetingSummary}}</p>{{end}}
  {{if .OverallAssessment}}<h2>Assessment</h2><p>{{.OverallAssessment}}</p>{{end}}
</body>
</html>`

const fallbackTextTemplate = `{{.Name}}
{{.MeetingID}} | {{.Status}}
{{range .Sections}}
## {{.Name}}
{{range .Questions}}Q: {{.Question}}
A: {{.Response}}
{{end}}{{range .Points}}- {{.Point}}: {{.Notes}}
{{end}}{{range .Notes}}* {{.}}
{{end}}{{end}}{{if .UnstructuredNotes}}
Notes: {{.UnstructuredNotes}}
{{end}}{{if .MeetingSummary}}Summary: {{.MeetingSummary}}
{{end}}`
