package tools

import (
	"context"
	"time"

	"browsernerd-mcp-server/internal/registry"
	"browsernerd-mcp-server/internal/report"
)

// defaultReportMaxAge bounds how old a temp report/trace file can get
// before browser.report.cleanup (run with no args) reaps it.
const defaultReportMaxAge = 24 * time.Hour

// ReportGenerateTool renders a session's captured pipeline into one of the
// static report templates and persists it through the Performance Manager.
type ReportGenerateTool struct{ deps *Deps }

func (t *ReportGenerateTool) Name() string { return "browser.report.generate" }
func (t *ReportGenerateTool) Description() string {
	return "Generate a report artifact (JSON summary or HTML listing) from a session's captured data."
}
func (t *ReportGenerateTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"template":  map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "template"},
	}
}

func (t *ReportGenerateTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	tmplName := getStringArg(args, "template")
	if sessionID == "" || tmplName == "" {
		return registry.FailureSystem("sessionId and template are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	path, err := t.deps.Reports.Generate(sessionID, report.TemplateName(tmplName), s.Capture)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	return registry.Success(map[string]interface{}{"path": path}), nil
}

// ReportTemplatesTool lists the static report templates this renderer
// supports.
type ReportTemplatesTool struct{ deps *Deps }

func (t *ReportTemplatesTool) Name() string        { return "browser.report.templates" }
func (t *ReportTemplatesTool) Description() string { return "List the available report templates." }
func (t *ReportTemplatesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *ReportTemplatesTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	names := make([]string, 0, len(report.Templates))
	for _, tmpl := range report.Templates {
		names = append(names, string(tmpl))
	}
	return registry.Success(map[string]interface{}{"templates": names}), nil
}

// ReportCleanupTool reaps report/trace temp files older than maxAgeMs (or
// the default max age, if omitted).
type ReportCleanupTool struct{ deps *Deps }

func (t *ReportCleanupTool) Name() string { return "browser.report.cleanup" }
func (t *ReportCleanupTool) Description() string {
	return "Remove report and trace temp files older than the given age."
}
func (t *ReportCleanupTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"maxAgeMs": map[string]interface{}{"type": "integer"},
		},
	}
}

func (t *ReportCleanupTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	maxAge := defaultReportMaxAge
	if ms := getIntArg(args, "maxAgeMs", 0); ms > 0 {
		maxAge = time.Duration(ms) * time.Millisecond
	}
	removed := t.deps.Perf.ForceCleanup(maxAge)
	return registry.Success(map[string]interface{}{"removed": removed}), nil
}
