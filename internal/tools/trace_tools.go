package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"browsernerd-mcp-server/internal/registry"
	"browsernerd-mcp-server/internal/session"
)

// TraceStartTool begins the session's single optional trace.
type TraceStartTool struct{ deps *Deps }

func (t *TraceStartTool) Name() string        { return "browser.trace.start" }
func (t *TraceStartTool) Description() string { return "Start performance tracing on a session." }
func (t *TraceStartTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId":   map[string]interface{}{"type": "string"},
			"screenshots": map[string]interface{}{"type": "boolean"},
			"snapshots":   map[string]interface{}{"type": "boolean"},
			"sources":     map[string]interface{}{"type": "boolean"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *TraceStartTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}
	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	opts := session.TraceOptions{
		Screenshots: getBoolArg(args, "screenshots", false),
		Snapshots:   getBoolArg(args, "snapshots", false),
		Sources:     getBoolArg(args, "sources", false),
	}

	outputPath, storeErr := t.deps.Perf.StoreTemporary(fmt.Sprintf("trace-%s-%d.json", sessionID, time.Now().UnixNano()), []byte("[]"))
	if storeErr != nil {
		return registry.FailureSystem(storeErr.Error()), nil
	}

	if !s.StartTrace(opts, outputPath) {
		return registry.FailureSystem("a trace is already active on this session"), nil
	}

	if err := t.deps.Driver.TraceStart(s.Page, opts.Screenshots); err != nil {
		s.StopTrace()
		return registry.Failure(err), nil
	}

	return registry.Success(map[string]interface{}{"outputPath": filepath.Base(outputPath)}), nil
}

// TraceStopTool ends the active trace, if any.
type TraceStopTool struct{ deps *Deps }

func (t *TraceStopTool) Name() string        { return "browser.trace.stop" }
func (t *TraceStopTool) Description() string { return "Stop the active trace on a session." }
func (t *TraceStopTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"sessionId": map[string]interface{}{"type": "string"},
		},
		"required": []string{"sessionId"},
	}
}

func (t *TraceStopTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	sessionID := getStringArg(args, "sessionId")
	if sessionID == "" {
		return registry.FailureSystem("sessionId is required"), nil
	}
	s, err := t.deps.Pool.GetSession(sessionID)
	if err != nil {
		return registry.FailureSystem(err.Error()), nil
	}

	record := s.StopTrace()
	if record == nil {
		return registry.FailureSystem("no active trace on this session"), nil
	}

	if err := t.deps.Driver.TraceStop(s.Page, record.OutputPath); err != nil {
		return registry.Failure(err), nil
	}

	return registry.Success(map[string]interface{}{
		"outputPath": record.OutputPath,
		"startTime":  record.StartTime,
		"endTime":    record.EndTime,
	}), nil
}
