// Package render produces the HTML views served to browsers.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/Togather-Foundation/webhook-receiver/internal/domain/webhooks"
	"github.com/Togather-Foundation/webhook-receiver/internal/sanitize"
)

const maxMessageRunes = 72

// EventRow is one line of the listing, already reduced to display text.
type EventRow struct {
	ID         string
	Type       string
	Repository string
	Author     string
	Summary    string
	Detail     string
	ReceivedAt string
}

type listPage struct {
	Title       string
	Rows        []EventRow
	Shown       int
	TotalEvents int64
}

var listTemplate = template.Must(template.New("events").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; max-width: 960px; margin: 2rem auto; padding: 0 1rem; line-height: 1.5; }
    h1 { color: #333; margin-bottom: 0.25rem; }
    .meta { color: #666; font-size: 0.9rem; }
    table { width: 100%; border-collapse: collapse; margin-top: 1.5rem; }
    th, td { text-align: left; padding: 0.4rem 0.6rem; border-bottom: 1px solid #eee; vertical-align: top; }
    th { color: #555; font-weight: 600; }
    .type { font-size: 0.8rem; text-transform: uppercase; letter-spacing: 0.05em; color: #666; }
    .detail { color: #666; font-size: 0.9rem; }
    .empty { margin-top: 2rem; color: #666; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  <div class="meta">Showing {{.Shown}} of {{.TotalEvents}} events, newest first.</div>
{{- if .Rows}}
  <table>
    <thead>
      <tr><th>Received</th><th>Type</th><th>Repository</th><th>Author</th><th>Event</th></tr>
    </thead>
    <tbody>
{{- range .Rows}}
      <tr id="event-{{.ID}}">
        <td>{{.ReceivedAt}}</td>
        <td class="type">{{.Type}}</td>
        <td>{{.Repository}}</td>
        <td>{{.Author}}</td>
        <td>{{.Summary}}{{if .Detail}}<div class="detail">{{.Detail}}</div>{{end}}</td>
      </tr>
{{- end}}
    </tbody>
  </table>
{{- else}}
  <p class="empty">No events received yet.</p>
{{- end}}
</body>
</html>
`))

// RenderEventList renders the listing page for records, newest first.
func RenderEventList(title string, records []webhooks.EventRecord, totalEvents int64) (string, error) {
	page := listPage{
		Title:       title,
		Rows:        make([]EventRow, 0, len(records)),
		Shown:       len(records),
		TotalEvents: totalEvents,
	}
	for _, record := range records {
		page.Rows = append(page.Rows, NewEventRow(record))
	}

	var buf bytes.Buffer
	if err := listTemplate.Execute(&buf, page); err != nil {
		return "", fmt.Errorf("render event list: %w", err)
	}
	return buf.String(), nil
}

// NewEventRow reduces a record to sanitized display strings.
func NewEventRow(record webhooks.EventRecord) EventRow {
	row := EventRow{
		ID:         record.ID,
		Type:       string(record.Type),
		Repository: sanitize.Line(record.Repository, 0),
		Author:     sanitize.Line(record.Author(), 0),
		ReceivedAt: formatDateTime(record.ReceivedAt),
	}
	switch {
	case record.Push != nil:
		row.Summary = fmt.Sprintf("pushed %s to %s",
			shortCommit(sanitize.Line(record.Push.CommitID, 0)),
			sanitize.Line(record.Push.Branch, 0))
		row.Detail = sanitize.Line(record.Push.CommitMessage, maxMessageRunes)
	case record.PullRequest != nil:
		pr := record.PullRequest
		action := sanitize.Line(pr.Action, 0)
		if action == "" {
			action = "updated"
		}
		row.Summary = fmt.Sprintf("%s pull request #%d", action, pr.Number)
		row.Detail = fmt.Sprintf("%s → %s", sanitize.Line(pr.FromBranch, 0), sanitize.Line(pr.ToBranch, 0))
		if state := sanitize.Line(pr.State, 0); state != "" {
			row.Detail += " (" + state + ")"
		}
	}
	return row
}

func shortCommit(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}
