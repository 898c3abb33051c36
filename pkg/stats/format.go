package stats

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/dkalashnik/telegram-session-log/pkg/config"
	"github.com/dkalashnik/telegram-session-log/pkg/record"
)

const notApplicable = "n/a"

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"avg":   func(v float64) string { return fmt.Sprintf("%.1f", v) },
}

var summaryTpl = template.Must(template.New("summary").Funcs(funcs).Parse(`Player: {{.UserName}}
- Sessions: {{.Sessions}}
- Total result: {{money .Total}} {{.Unit}}
- Average result: {{money .AverageResult}} {{.Unit}} / session
- Average big mistakes: {{avg .AverageErrors}} (n={{.ErrorSamples}})
- Average call mucks: {{avg .AverageCallMucks}} (n={{.CallMuckSamples}})
`))

type recordLine struct {
	Label string
	Value string
}

type recordPayload struct {
	CreatedAt string
	Lines     []recordLine
}

var recordTpl = template.Must(template.New("record").Parse(`Session recorded {{.CreatedAt}}
{{range .Lines}}{{.Label}}: {{.Value}}
{{end}}`))

// Summarize renders a report as chat text.
func Summarize(r Report) (string, error) {
	if r.Empty() {
		return fmt.Sprintf("No valid data for %s.", r.UserName), nil
	}
	var buf bytes.Buffer
	if err := summaryTpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("stats: render summary: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// FormatRecord renders one labelled line per question, in questionnaire order.
func FormatRecord(rec record.InterviewRecord, q *config.Questionnaire) (string, error) {
	payload := recordPayload{CreatedAt: notApplicable}
	if !rec.CreatedAt.IsZero() {
		payload.CreatedAt = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, question := range q.Questions {
		value := notApplicable
		if answer, ok := rec.Get(question.Key); ok {
			value = answer.Text
			if answer.HasAttachment() {
				value = strings.TrimSpace(value + " [attachment]")
			}
			if value == "" {
				value = notApplicable
			}
		}
		payload.Lines = append(payload.Lines, recordLine{Label: question.DisplayLabel(), Value: value})
	}

	var buf bytes.Buffer
	if err := recordTpl.Execute(&buf, payload); err != nil {
		return "", fmt.Errorf("stats: render record: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Attachments lists the attachment paths referenced by rec, in questionnaire order.
func Attachments(rec record.InterviewRecord, q *config.Questionnaire) []string {
	var paths []string
	for _, question := range q.Questions {
		if answer, ok := rec.Get(question.Key); ok && answer.HasAttachment() {
			paths = append(paths, answer.AttachmentPath)
		}
	}
	return paths
}
