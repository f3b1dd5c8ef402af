package tools

import (
	"context"

	"browsernerd-mcp-server/internal/registry"
)

// ClickTool clicks the first element matching a CSS selector.
type ClickTool struct{ deps *Deps }

func (t *ClickTool) Name() string        { return "browser.click" }
func (t *ClickTool) Description() string { return "Click the first element matching a CSS selector." }
func (t *ClickTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"selector":  map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "selector"},
	}
}

func (t *ClickTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	selector := getStringArg(args, "selector")
	if sessionID == "" || selector == "" {
		return registry.FailureSystem("sessionId and selector are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	err = t.deps.Perf.Breakers().Guard("interaction", func() error {
		return t.deps.Driver.Click(s.Page, selector, t.deps.timeout())
	})
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	if t.deps.Recorder.IsRecording(sessionID) {
		t.deps.Recorder.RecordClick(sessionID, selector, nil)
	}
	return registry.Success(nil), nil
}

// TypeTool clears and types text into the first matching element.
type TypeTool struct{ deps *Deps }

func (t *TypeTool) Name() string        { return "browser.type" }
func (t *TypeTool) Description() string { return "Clear and type text into the first element matching a CSS selector." }
func (t *TypeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"selector":  map[string]interface{}{"type": "string"},
			"text":      map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "selector", "text"},
	}
}

func (t *TypeTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	selector := getStringArg(args, "selector")
	text := getStringArg(args, "text")
	if sessionID == "" || selector == "" {
		return registry.FailureSystem("sessionId and selector are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	err = t.deps.Perf.Breakers().Guard("interaction", func() error {
		return t.deps.Driver.Type(s.Page, selector, text, t.deps.timeout())
	})
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	if t.deps.Recorder.IsRecording(sessionID) {
		t.deps.Recorder.RecordType(sessionID, selector, text)
	}
	return registry.Success(nil), nil
}

// SelectTool sets a <select> element's value.
type SelectTool struct{ deps *Deps }

func (t *SelectTool) Name() string        { return "browser.select" }
func (t *SelectTool) Description() string { return "Set a <select> element's value." }
func (t *SelectTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"selector":  map[string]interface{}{"type": "string"},
			"value":     map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "selector", "value"},
	}
}

func (t *SelectTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	selector := getStringArg(args, "selector")
	value := getStringArg(args, "value")
	if sessionID == "" || selector == "" {
		return registry.FailureSystem("sessionId and selector are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	err = t.deps.Perf.Breakers().Guard("interaction", func() error {
		return t.deps.Driver.Select(s.Page, selector, value, t.deps.timeout())
	})
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	if t.deps.Recorder.IsRecording(sessionID) {
		t.deps.Recorder.RecordSelect(sessionID, selector, value)
	}
	return registry.Success(nil), nil
}
