package tools

import (
	"context"
	"fmt"
	"time"

	"browsernerd-mcp-server/internal/macro"
	"browsernerd-mcp-server/internal/registry"

	"github.com/go-rod/rod"
)

// MacroStartRecordingTool begins a new macro recording bound to a session.
type MacroStartRecordingTool struct{ deps *Deps }

func (t *MacroStartRecordingTool) Name() string { return "browser.macro.startRecording" }
func (t *MacroStartRecordingTool) Description() string {
	return "Start recording a macro (navigation/click/type/select/eval) bound to a session."
}
func (t *MacroStartRecordingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId":   map[string]interface{}{"type": "string"},
			"name":        map[string]interface{}{"type": "string"},
			"description": map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId", "name"},
	}
}

func (t *MacroStartRecordingTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	name := getStringArg(args, "name")
	if sessionID == "" || name == "" {
		return registry.FailureSystem("sessionId and name are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	meta := macro.Metadata{
		StartURL:  t.deps.Driver.CurrentURL(s.Page),
		UserAgent: s.Options.UserAgent,
	}
	meta.Viewport.Width = s.Options.ViewportWidth
	meta.Viewport.Height = s.Options.ViewportHeight

	macroID, err := t.deps.Recorder.StartRecording(sessionID, name, getStringArg(args, "description"), meta)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	return registry.Success(map[string]interface{}{"macroId": macroID}), nil
}

// MacroStopRecordingTool finalises and persists the active recording.
type MacroStopRecordingTool struct{ deps *Deps }

func (t *MacroStopRecordingTool) Name() string { return "browser.macro.stopRecording" }
func (t *MacroStopRecordingTool) Description() string {
	return "Stop and persist the active macro recording on a session."
}
func (t *MacroStopRecordingTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *MacroStopRecordingTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}

	rec, err := t.deps.Recorder.StopRecording(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	return registry.Success(map[string]interface{}{"recording": rec}), nil
}

// MacroListTool lists all persisted macro recordings.
type MacroListTool struct{ deps *Deps }

func (t *MacroListTool) Name() string        { return "browser.macro.list" }
func (t *MacroListTool) Description() string { return "List all persisted macro recordings." }
func (t *MacroListTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *MacroListTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	recordings, err := t.deps.Storage.List()
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}
	return registry.Success(map[string]interface{}{"macros": recordings}), nil
}

// MacroDeleteTool deletes a persisted macro recording by id.
type MacroDeleteTool struct{ deps *Deps }

func (t *MacroDeleteTool) Name() string        { return "browser.macro.delete" }
func (t *MacroDeleteTool) Description() string { return "Delete a persisted macro recording by id." }
func (t *MacroDeleteTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"macroId": map[string]interface{}{"type": "string"},
		},
		"required": []string{"macroId"},
	}
}

func (t *MacroDeleteTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	macroID := getStringArg(args, "macroId")
	if macroID == "" {
		return registry.FailureSystem("macroId is required"), nil
	}
	deleted, err := t.deps.Storage.Delete(macroID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}
	return registry.Success(map[string]interface{}{"deleted": deleted}), nil
}

// MacroPlayTool replays a persisted macro against a (typically different)
// session.
type MacroPlayTool struct{ deps *Deps }

func (t *MacroPlayTool) Name() string        { return "browser.macro.play" }
func (t *MacroPlayTool) Description() string { return "Replay a persisted macro against a session." }
func (t *MacroPlayTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId":           map[string]interface{}{"type": "string"},
			"macroId":             map[string]interface{}{"type": "string"},
			"startFromStep":       map[string]interface{}{"type": "integer"},
			"endAtStep":           map[string]interface{}{"type": "integer"},
			"delayBetweenActions": map[string]interface{}{"type": "integer"},
			"stepByStep":          map[string]interface{}{"type": "boolean"},
			"continueOnError":     map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"sessionId", "macroId"},
	}
}

func (t *MacroPlayTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	macroID := getStringArg(args, "macroId")
	if sessionID == "" || macroID == "" {
		return registry.FailureSystem("sessionId and macroId are required"), nil
	}

	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	rec, found, err := t.deps.Storage.Get(macroID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}
	if !found {
		return registry.FailureSystem("macro not found: " + macroID), nil
	}

	exec := &sessionExecutor{deps: t.deps, page: s.Page}
	player := macro.NewPlayer(macroID, sessionID)

	if !t.deps.beginPlayback(sessionID, player) {
		return registry.FailureSystem("a macro playback is already active on this session"), nil
	}
	defer t.deps.endPlayback(sessionID)

	opts := macro.PlaybackOptions{
		StartFromStep:       getIntArg(args, "startFromStep", 0),
		EndAtStep:           getIntArg(args, "endAtStep", 0),
		DelayBetweenActions: time.Duration(getIntArg(args, "delayBetweenActions", 0)) * time.Millisecond,
		StepByStep:          getBoolArg(args, "stepByStep", false),
		ContinueOnError:     getBoolArg(args, "continueOnError", false),
	}

	result, err := player.Play(ctx, exec, *rec, opts)
	if err != nil {
		return registry.Failure(err), nil
	}
	s.Touch()

	return registry.Success(map[string]interface{}{
		"executedActions": result.ExecutedActions,
		"totalActions":    result.TotalActions,
		"errors":          result.Errors,
		"complete":        result.Complete,
	}), nil
}

// sessionExecutor binds a macro.Executor to a single session's page, used
// only by MacroPlayTool. Each method runs through the same breaker classes
// the live tool handlers use, so a flapping adapter trips the same circuit
// whether the call came from a tool or a macro replay.
type sessionExecutor struct {
	deps *Deps
	page *rod.Page
}

func (e *sessionExecutor) Goto(ctx context.Context, url string) error {
	return e.deps.Perf.Breakers().Guard("navigation", func() error {
		return e.deps.Driver.Goto(e.page, url)
	})
}

func (e *sessionExecutor) Click(ctx context.Context, selector string) error {
	return e.deps.Perf.Breakers().Guard("interaction", func() error {
		return e.deps.Driver.Click(e.page, selector, e.deps.timeout())
	})
}

func (e *sessionExecutor) Type(ctx context.Context, selector, text string) error {
	return e.deps.Perf.Breakers().Guard("interaction", func() error {
		return e.deps.Driver.Type(e.page, selector, text, e.deps.timeout())
	})
}

func (e *sessionExecutor) Select(ctx context.Context, selector, value string) error {
	return e.deps.Perf.Breakers().Guard("interaction", func() error {
		return e.deps.Driver.Select(e.page, selector, value, e.deps.timeout())
	})
}

func (e *sessionExecutor) Eval(ctx context.Context, code string) (interface{}, error) {
	if violation := e.deps.Security.EvalPolicy.Check(code); violation != "" {
		return nil, fmt.Errorf("eval rejected by policy: %s", violation)
	}
	var result interface{}
	err := e.deps.Perf.Breakers().Guard("evaluation", func() error {
		r, evalErr := e.deps.Driver.Eval(e.page, code, e.deps.timeout())
		result = r
		return evalErr
	})
	return result, err
}
