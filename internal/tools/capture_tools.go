package tools

import (
	"context"

	"browsernerd-mcp-server/internal/registry"
)

// NetworkRecentTool returns a session's most recent captured network
// records, redacted of sensitive headers/body fields.
type NetworkRecentTool struct{ deps *Deps }

func (t *NetworkRecentTool) Name() string        { return "browser.network.getRecent" }
func (t *NetworkRecentTool) Description() string { return "Return a session's recent captured network records." }
func (t *NetworkRecentTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"limit":     map[string]interface{}{"type": "integer"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *NetworkRecentTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}
	limit := getIntArg(args, "limit", 100)

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	records := s.Capture.RecentNetwork(limit)
	redacted := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		redacted = append(redacted, map[string]interface{}{
			"timestamp":       r.Timestamp,
			"method":          r.Method,
			"url":             r.URL,
			"status":          r.Status,
			"requestHeaders":  t.deps.Security.Redactor.RedactHeaders(r.RequestHeaders),
			"responseHeaders": t.deps.Security.Redactor.RedactHeaders(r.ResponseHeaders),
			"requestBody":     t.deps.Security.Redactor.RedactBody(r.RequestBody),
			"responseBody":    t.deps.Security.Redactor.RedactBody(r.ResponseBody),
			"durationMs":      r.DurationMs,
		})
	}
	return registry.Success(map[string]interface{}{"records": redacted}), nil
}

// ConsoleRecentTool returns a session's most recent captured console records.
type ConsoleRecentTool struct{ deps *Deps }

func (t *ConsoleRecentTool) Name() string        { return "browser.console.getRecent" }
func (t *ConsoleRecentTool) Description() string { return "Return a session's recent captured console records." }
func (t *ConsoleRecentTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"limit":     map[string]interface{}{"type": "integer"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *ConsoleRecentTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}
	limit := getIntArg(args, "limit", 100)

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	return registry.Success(map[string]interface{}{"records": s.Capture.RecentConsole(limit)}), nil
}
