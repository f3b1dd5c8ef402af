package tools

import (
	"context"
	"fmt"

	"browsernerd-mcp-server/internal/capture"
	"browsernerd-mcp-server/internal/registry"
)

// GotoTool navigates a session's page, enforcing rate limits and the
// session's domain allow-list (via the permission broker) beforehand.
type GotoTool struct{ deps *Deps }

func (t *GotoTool) Name() string        { return "browser.goto" }
func (t *GotoTool) Description() string { return "Navigate a session's page to a URL." }
func (t *GotoTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"url":       map[string]interface{}{"type": "string"},
			"waitUntil": map[string]interface{}{
				"type": "string",
				"enum": []string{"load", "domcontentloaded", "networkidle", "commit"},
			},
		},
		"required": []string{"sessionId", "url"},
	}
}

func (t *GotoTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	rawURL := getStringArg(args, "url")
	if sessionID == "" || rawURL == "" {
		return registry.FailureSystem("sessionId and url are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	if err := t.deps.Security.CheckRateLimit(s.ClientID, "goto"); err != nil {
		return registry.FailureSecurity(err.Error()), nil
	}

	host := hostOf(rawURL)
	if host == "" {
		return registry.FailureSystem(fmt.Sprintf("invalid url: %q", rawURL)), nil
	}
	if err := t.deps.Security.CheckDomainAccess(ctx, s.AllowList, host, sessionID); err != nil {
		return registry.FailureSecurity(err.Error()), nil
	}

	err = t.deps.Perf.Breakers().Guard("navigation", func() error {
		return t.deps.Driver.Goto(s.Page, rawURL)
	})
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	if t.deps.Recorder.IsRecording(sessionID) {
		t.deps.Recorder.RecordNavigation(sessionID, rawURL)
	}

	finalURL := t.deps.Driver.CurrentURL(s.Page)
	return registry.Success(map[string]interface{}{
		"finalUrl": finalURL,
		"status":   navigationStatus(s.Capture.RecentNetwork(50), finalURL),
	}), nil
}

// navigationStatus looks back through recently captured network records for
// the main-document response matching finalURL, defaulting to 200 when the
// event-capture goroutine hasn't appended it yet (it runs concurrently with
// the navigation this status describes).
func navigationStatus(records []capture.NetworkRecord, finalURL string) int {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].URL == finalURL && records[i].Status != 0 {
			return records[i].Status
		}
	}
	return 200
}
