package tools

import (
	"context"

	"browsernerd-mcp-server/internal/registry"
)

// EvalTool runs JavaScript in a session's page context, first checking the
// textual policy filter (defence-in-depth, not a security boundary).
type EvalTool struct{ deps *Deps }

func (t *EvalTool) Name() string        { return "browser.eval" }
func (t *EvalTool) Description() string { return "Evaluate JavaScript in a session's page context." }
func (t *EvalTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
			"code":      map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "code"},
	}
}

func (t *EvalTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	code := getStringArg(args, "code")
	if sessionID == "" || code == "" {
		return registry.FailureSystem("sessionId and code are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	if violation := t.deps.Security.EvalPolicy.Check(code); violation != "" {
		return registry.FailureSecurity(violation), nil
	}

	release := t.deps.Perf.Admit()
	defer release()

	var result interface{}
	err = t.deps.Perf.Breakers().Guard("evaluation", func() error {
		r, evalErr := t.deps.Driver.Eval(s.Page, code, t.deps.timeout())
		result = r
		return evalErr
	})
	if err != nil {
		t.deps.logger().Debug("eval failed", "session_id", sessionID, "kind", classifyJSError(err))
		return registry.FailureJS(err), nil
	}
	s.Touch()

	if t.deps.Recorder.IsRecording(sessionID) {
		t.deps.Recorder.RecordEval(sessionID, code)
	}
	return registry.Success(map[string]interface{}{"result": result}), nil
}
