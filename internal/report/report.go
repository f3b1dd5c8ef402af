// Package report renders a session's captured network/console records into
// a composite artifact (JSON or HTML), written through the Performance
// Manager's temporary-file lifecycle so cleanup follows the same
// age-based eviction as trace output.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"browsernerd-mcp-server/internal/capture"
)

// TemplateName enumerates the static report layouts this renderer ships.
type TemplateName string

const (
	// TemplateSummary is a compact JSON digest: counts, error highlights.
	TemplateSummary TemplateName = "summary"
	// TemplateNetworkWaterfall is an HTML table of captured requests.
	TemplateNetworkWaterfall TemplateName = "network-waterfall"
	// TemplateConsoleLog is an HTML listing of captured console records.
	TemplateConsoleLog TemplateName = "console-log"
)

// Templates lists every TemplateName this renderer accepts, in a stable
// order, for the browser.report.templates tool.
var Templates = []TemplateName{TemplateSummary, TemplateNetworkWaterfall, TemplateConsoleLog}

func validTemplate(name TemplateName) bool {
	for _, t := range Templates {
		if t == name {
			return true
		}
	}
	return false
}

// tempWriter is the narrow capability the renderer needs from the
// Performance Manager: write a named blob, track it for later cleanup.
type tempWriter interface {
	StoreTemporary(name string, data []byte) (string, error)
}

// Renderer builds report artifacts from a session's capture pipeline.
type Renderer struct {
	temp tempWriter
}

func NewRenderer(temp tempWriter) *Renderer {
	return &Renderer{temp: temp}
}

// summaryDoc is the shape written for TemplateSummary.
type summaryDoc struct {
	SessionID      string    `json:"session_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	NetworkCount   int       `json:"network_count"`
	ConsoleCount   int       `json:"console_count"`
	ErrorCount     int       `json:"error_count"`
	FailedRequests int       `json:"failed_requests"`
}

// Generate renders template against sessionID's captured pipeline records
// and persists it via the Performance Manager's temp-file store, returning
// the path the artifact was written to.
func (r *Renderer) Generate(sessionID string, tmpl TemplateName, pipeline *capture.Pipeline) (string, error) {
	if !validTemplate(tmpl) {
		return "", fmt.Errorf("unknown report template %q", tmpl)
	}

	var (
		data []byte
		ext  string
		err  error
	)

	switch tmpl {
	case TemplateSummary:
		data, err = renderSummary(sessionID, pipeline)
		ext = "json"
	case TemplateNetworkWaterfall:
		data, err = renderNetworkWaterfall(pipeline)
		ext = "html"
	case TemplateConsoleLog:
		data, err = renderConsoleLog(pipeline)
		ext = "html"
	}
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("report-%s-%s-%d.%s", sessionID, tmpl, time.Now().UnixNano(), ext)
	return r.temp.StoreTemporary(name, data)
}

func renderSummary(sessionID string, pipeline *capture.Pipeline) ([]byte, error) {
	network := pipeline.AllNetwork()
	console := pipeline.AllConsole()

	doc := summaryDoc{
		SessionID:    sessionID,
		GeneratedAt:  time.Now(),
		NetworkCount: len(network),
		ConsoleCount: len(console),
	}
	for _, rec := range network {
		if rec.Status >= 400 {
			doc.FailedRequests++
		}
	}
	for _, rec := range console {
		if rec.Level == capture.ConsoleError {
			doc.ErrorCount++
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

var networkWaterfallTmpl = template.Must(template.New("network-waterfall").Parse(`<!DOCTYPE html>
<html><head><title>Network waterfall</title></head><body>
<table border="1">
<tr><th>Time</th><th>Method</th><th>URL</th><th>Status</th><th>Duration (ms)</th></tr>
{{range .}}<tr><td>{{.Timestamp.Format "15:04:05.000"}}</td><td>{{.Method}}</td><td>{{.URL}}</td><td>{{.Status}}</td><td>{{.DurationMs}}</td></tr>
{{end}}
</table></body></html>
`))

func renderNetworkWaterfall(pipeline *capture.Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	if err := networkWaterfallTmpl.Execute(&buf, pipeline.AllNetwork()); err != nil {
		return nil, fmt.Errorf("render network waterfall: %w", err)
	}
	return buf.Bytes(), nil
}

var consoleLogTmpl = template.Must(template.New("console-log").Parse(`<!DOCTYPE html>
<html><head><title>Console log</title></head><body>
<ul>
{{range .}}<li><strong>{{.Level}}</strong> [{{.Timestamp.Format "15:04:05.000"}}] {{.Message}}</li>
{{end}}
</ul></body></html>
`))

func renderConsoleLog(pipeline *capture.Pipeline) ([]byte, error) {
	var buf bytes.Buffer
	if err := consoleLogTmpl.Execute(&buf, pipeline.AllConsole()); err != nil {
		return nil, fmt.Errorf("render console log: %w", err)
	}
	return buf.Bytes(), nil
}
