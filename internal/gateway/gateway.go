// Package gateway wires every component (driver adapter, session pool,
// security manager, performance manager, macro engine, report renderer,
// tool registry, and both transports) into one running server, the way
// cmd/server/main.go's top-level wiring block used to before this package
// existed to hold it.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"browsernerd-mcp-server/internal/capture"
	"browsernerd-mcp-server/internal/config"
	"browsernerd-mcp-server/internal/driverx"
	"browsernerd-mcp-server/internal/macro"
	"browsernerd-mcp-server/internal/perf"
	"browsernerd-mcp-server/internal/registry"
	"browsernerd-mcp-server/internal/report"
	"browsernerd-mcp-server/internal/security"
	"browsernerd-mcp-server/internal/session"
	"browsernerd-mcp-server/internal/tools"
	"browsernerd-mcp-server/internal/transport"
)

// shutdownGrace bounds how long Shutdown waits for the socket transport's
// HTTP server to drain in-flight requests before it force-closes.
const shutdownGrace = 5 * time.Second

// Orchestrator owns the full dependency graph and the two transports built
// on top of it. Construct with New, start with Run.
type Orchestrator struct {
	cfg config.Config
	log *slog.Logger

	Driver   *driverx.Driver
	Security *security.Manager
	Perf     *perf.Manager
	Pool     *session.Pool
	Recorder *macro.Recorder
	Storage  macro.Storage
	Reports  *report.Renderer
	Registry *registry.Registry

	dispatcher *registry.Dispatcher
	stdio      *transport.StdioServer
	socket     *transport.SocketServer
	httpServer *http.Server
}

// New builds every component in dependency order (driver adapter first,
// everything else on top of it) and registers the full tool set, but does
// not start the browser or either transport — call Run for that.
func New(cfg config.Config, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	driver := driverx.New(cfg.Browser, logger)
	secMgr := security.NewManager(cfg.Security)
	perfMgr := perf.NewManager(cfg.Perf)
	pool := session.NewPool(cfg.Pool, driver, secMgr, perfMgr, logger)

	storageDir := cfg.Macro.StorageDir
	if storageDir == "" {
		storageDir = "macros"
	}
	macroStorage, err := macro.NewFileStorage(storageDir)
	if err != nil {
		return nil, fmt.Errorf("init macro storage: %w", err)
	}
	recorder := macro.NewRecorder(macroStorage)
	pool.SetRecorder(recorder)
	reports := report.NewRenderer(perfMgr)

	reg := registry.NewRegistry()
	deps := &tools.Deps{
		Pool:           pool,
		Driver:         driver,
		Security:       secMgr,
		Perf:           perfMgr,
		Recorder:       recorder,
		Storage:        macroStorage,
		Reports:        reports,
		Log:            logger,
		DefaultTimeout: cfg.Browser.NavigationTimeout(),
	}
	if err := tools.RegisterAll(reg, deps); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	dispatcher := registry.NewDispatcher(reg, registry.ServerInfo{Name: cfg.Server.Name, Version: cfg.Server.Version})

	o := &Orchestrator{
		cfg:        cfg,
		log:        logger.With("component", "gateway.orchestrator"),
		Driver:     driver,
		Security:   secMgr,
		Perf:       perfMgr,
		Pool:       pool,
		Recorder:   recorder,
		Storage:    macroStorage,
		Reports:    reports,
		Registry:   reg,
		dispatcher: dispatcher,
		stdio:      transport.NewStdioServer(dispatcher, logger),
		socket:     transport.NewSocketServer(dispatcher, logger),
	}

	o.wireNotifications()
	return o, nil
}

// wireNotifications bridges the registry's tool.registered/unregistered
// events and each new session's console capture stream onto the socket
// transport's broadcast, so connected clients see both without polling.
func (o *Orchestrator) wireNotifications() {
	o.Registry.OnNotify(func(event, toolName string) {
		o.socket.BroadcastNotification(event, map[string]string{"tool": toolName})
	})

	o.Pool.OnSessionCreated(func(s *session.Session) {
		s.Capture.Subscribe(consoleBroadcaster(o.socket, s.ID))
	})
}

// consoleBroadcaster returns a capture.Pipeline subscriber that forwards
// each console record as a console.log notification tagged with its
// session id.
func consoleBroadcaster(socket *transport.SocketServer, sessionID string) func(rec capture.ConsoleRecord) {
	return func(rec capture.ConsoleRecord) {
		socket.BroadcastNotification("console.log", map[string]interface{}{
			"sessionId": sessionID,
			"level":     rec.Level,
			"message":   rec.Message,
			"timestamp": rec.Timestamp,
		})
	}
}

// Status is a composite, JSON-friendly snapshot of the running gateway.
type Status struct {
	Sessions     session.Stats `json:"sessions"`
	Pressure     string        `json:"pressure"`
	Connections  int           `json:"socket_connections"`
	DriverUp     bool          `json:"driver_connected"`
	ToolCount    int           `json:"tool_count"`
	StdioEnabled bool          `json:"stdio_enabled"`
}

func (o *Orchestrator) Status() Status {
	return Status{
		Sessions:     o.Pool.Stats(),
		Pressure:     pressureLabel(o.Perf.Pressure()),
		Connections:  o.socket.ConnectionCount(),
		DriverUp:     o.Driver.IsConnected(),
		ToolCount:    len(o.Registry.List()),
		StdioEnabled: o.cfg.MCP.EnableStdio,
	}
}

func pressureLabel(p perf.Pressure) string {
	switch p {
	case perf.PressureCritical:
		return "critical"
	case perf.PressureWarn:
		return "warn"
	default:
		return "none"
	}
}

// Run starts the browser (if configured to auto-start), the idle reaper,
// and whichever transports cfg.MCP enables, blocking until ctx is
// cancelled or a transport exits with an unrecoverable error.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.cfg.Browser.AutoStart {
		if err := o.Driver.Start(ctx); err != nil {
			return fmt.Errorf("start driver: %w", err)
		}
	}

	o.Pool.StartReaper(ctx)
	defer o.Pool.StopReaper()

	errCh := make(chan error, 2)
	running := 0

	if o.cfg.MCP.EnableSocket && o.cfg.MCP.SocketPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/mcp", o.socket.Handler())
		o.httpServer = &http.Server{Addr: fmt.Sprintf(":%d", o.cfg.MCP.SocketPort), Handler: mux}
		running++
		go func() {
			o.log.Info("socket transport listening", "port", o.cfg.MCP.SocketPort)
			err := o.httpServer.ListenAndServe()
			if err == http.ErrServerClosed {
				err = nil
			}
			errCh <- err
		}()
	}

	if o.cfg.MCP.EnableStdio {
		running++
		go func() {
			errCh <- o.stdio.Serve(ctx, os.Stdin, os.Stdout)
		}()
	}

	if running == 0 {
		return fmt.Errorf("no transport enabled (mcp.enable_socket and mcp.enable_stdio are both false)")
	}

	select {
	case err := <-errCh:
		o.Shutdown()
		return err
	case <-ctx.Done():
		o.Shutdown()
		return ctx.Err()
	}
}

// Shutdown stops the socket transport's HTTP server, destroys every session,
// and releases the driver's browser process, bounding the HTTP drain to
// shutdownGrace. The stdio transport is not stopped here; it ends with the
// context passed to Run.
func (o *Orchestrator) Shutdown() {
	if o.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = o.httpServer.Shutdown(shutdownCtx)
	}
	o.Pool.Shutdown()
	if err := o.Driver.Shutdown(); err != nil {
		o.log.Warn("driver shutdown reported an error", "error", err)
	}
}
