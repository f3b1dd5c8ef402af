package tools

import (
	"log/slog"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/driverx"
	"browsernerd-mcp-server/internal/macro"
	"browsernerd-mcp-server/internal/perf"
	"browsernerd-mcp-server/internal/registry"
	"browsernerd-mcp-server/internal/report"
	"browsernerd-mcp-server/internal/security"
	"browsernerd-mcp-server/internal/session"
)

// defaultMaxDOMNodes and hardMaxDOMNodes implement the DOM snapshot
// truncation defaults/cap from the design notes.
const (
	defaultMaxDOMNodes = 5000
	hardMaxDOMNodes    = 50000
	defaultStepTimeout = 30 * time.Second
)

// Deps bundles every component a tool handler may call into, constructed
// once by the Orchestrator and shared by every handler instance.
type Deps struct {
	Pool     *session.Pool
	Driver   *driverx.Driver
	Security *security.Manager
	Perf     *perf.Manager
	Recorder *macro.Recorder
	Storage  macro.Storage
	Reports  *report.Renderer
	Log      *slog.Logger

	DefaultTimeout time.Duration

	playbacksMu sync.Mutex
	playbacks   map[string]*macro.Player // sessionID -> active playback
}

// beginPlayback registers p as the active playback for sessionID, failing
// if one is already running there (spec §4.H: one playback per session).
func (d *Deps) beginPlayback(sessionID string, p *macro.Player) bool {
	d.playbacksMu.Lock()
	defer d.playbacksMu.Unlock()
	if d.playbacks == nil {
		d.playbacks = make(map[string]*macro.Player)
	}
	if _, active := d.playbacks[sessionID]; active {
		return false
	}
	d.playbacks[sessionID] = p
	return true
}

func (d *Deps) endPlayback(sessionID string) {
	d.playbacksMu.Lock()
	defer d.playbacksMu.Unlock()
	delete(d.playbacks, sessionID)
}

func (d *Deps) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

func (d *Deps) timeout() time.Duration {
	if d.DefaultTimeout > 0 {
		return d.DefaultTimeout
	}
	return defaultStepTimeout
}

// RegisterAll registers the full canonical tool set (§6's stable tool
// names) against reg, bound to deps.
func RegisterAll(reg *registry.Registry, deps *Deps) error {
	toolset := []registry.Tool{
		&NewContextTool{deps: deps},
		&GotoTool{deps: deps},
		&ClickTool{deps: deps},
		&TypeTool{deps: deps},
		&SelectTool{deps: deps},
		&EvalTool{deps: deps},
		&ScreenshotTool{deps: deps},
		&DOMSnapshotTool{deps: deps},
		&NetworkRecentTool{deps: deps},
		&ConsoleRecentTool{deps: deps},
		&TraceStartTool{deps: deps},
		&TraceStopTool{deps: deps},
		&HarExportTool{deps: deps},
		&MacroStartRecordingTool{deps: deps},
		&MacroStopRecordingTool{deps: deps},
		&MacroListTool{deps: deps},
		&MacroPlayTool{deps: deps},
		&MacroDeleteTool{deps: deps},
		&ReportGenerateTool{deps: deps},
		&ReportTemplatesTool{deps: deps},
		&ReportCleanupTool{deps: deps},
	}
	for _, t := range toolset {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}
