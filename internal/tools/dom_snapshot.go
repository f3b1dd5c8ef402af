package tools

import (
	"context"

	"browsernerd-mcp-server/internal/registry"
)

// DOMSnapshotTool serialises the page's DOM tree, stopping the walk the
// instant a shared node counter reaches maxNodes (depth-first, deterministic
// truncation point — see the design notes on DOM snapshot truncation).
type DOMSnapshotTool struct{ deps *Deps }

func (t *DOMSnapshotTool) Name() string { return "browser.domSnapshot" }
func (t *DOMSnapshotTool) Description() string {
	return "Serialise a session's DOM tree, truncated at maxNodes (default 5000, cap 50000)."
}
func (t *DOMSnapshotTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"maxNodes":  map[string]interface{}{"type": "integer"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *DOMSnapshotTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}

	maxNodes := getIntArg(args, "maxNodes", defaultMaxDOMNodes)
	if maxNodes <= 0 {
		maxNodes = defaultMaxDOMNodes
	}
	if maxNodes > hardMaxDOMNodes {
		maxNodes = hardMaxDOMNodes
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	var snapshot map[string]interface{}
	err = t.deps.Perf.Breakers().Guard("evaluation", func() error {
		snap, snapErr := t.deps.Driver.DOMSnapshot(s.Page, maxNodes, t.deps.timeout())
		snapshot = snap
		return snapErr
	})
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	return registry.Success(snapshot), nil
}
