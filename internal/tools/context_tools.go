package tools

import (
	"context"
	"time"

	"browsernerd-mcp-server/internal/registry"
	"browsernerd-mcp-server/internal/session"
)

// NewContextTool creates a fresh, isolated session (browser context + page).
type NewContextTool struct{ deps *Deps }

func (t *NewContextTool) Name() string { return "browser.newContext" }
func (t *NewContextTool) Description() string {
	return "Create a new isolated browser context and return its session id."
}
func (t *NewContextTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"viewport": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"width":  map[string]interface{}{"type": "integer"},
					"height": map[string]interface{}{"type": "integer"},
				},
			},
			"userAgent":         map[string]interface{}{"type": "string"},
			"clientId":          map[string]interface{}{"type": "string"},
			"allowedDomains":    map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"defaultTimeoutMs":  map[string]interface{}{"type": "integer"},
			"startUrl":          map[string]interface{}{"type": "string"},
		},
	}
}

func (t *NewContextTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	opts := session.Options{
		ClientID:       getStringArg(args, "clientId"),
		UserAgent:      getStringArg(args, "userAgent"),
		AllowedDomains: getStringSliceArg(args, "allowedDomains"),
	}
	if vp, ok := args["viewport"].(map[string]interface{}); ok {
		opts.ViewportWidth = getIntArg(vp, "width", 0)
		opts.ViewportHeight = getIntArg(vp, "height", 0)
	}
	if ms := getIntArg(args, "defaultTimeoutMs", 0); ms > 0 {
		opts.DefaultTimeout = time.Duration(ms) * time.Millisecond
	}

	startURL := getStringArg(args, "startUrl")

	var s *session.Session
	err := t.deps.Perf.Breakers().Guard("session_creation", func() error {
		created, createErr := t.deps.Pool.CreateSession(ctx, opts, startURL)
		if createErr != nil {
			return createErr
		}
		s = created
		return nil
	})
	if err != nil {
		return registry.Failure(err), nil
	}

	return registry.Success(map[string]interface{}{
		"sessionId": s.ID,
		"viewport":  map[string]int{"width": s.Options.ViewportWidth, "height": s.Options.ViewportHeight},
		"createdAt": s.CreatedAt,
	}), nil
}
