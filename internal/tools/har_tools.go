package tools

import (
	"context"

	"browsernerd-mcp-server/internal/har"
	"browsernerd-mcp-server/internal/registry"
)

const harCreatorVersion = "0.1.0"

// HarExportTool assembles a HAR 1.2 archive from a session's captured
// network records.
type HarExportTool struct{ deps *Deps }

func (t *HarExportTool) Name() string        { return "browser.harExport" }
func (t *HarExportTool) Description() string { return "Export a session's captured network traffic as a HAR 1.2 archive." }
func (t *HarExportTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *HarExportTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	pageURL := t.deps.Driver.CurrentURL(s.Page)
	records := s.Capture.AllNetwork()
	archive := har.Assemble(sessionID, pageURL, harCreatorVersion, records)

	return registry.Success(map[string]interface{}{"har": archive}), nil
}
