package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"browsernerd-mcp-server/internal/config"
	"browsernerd-mcp-server/internal/gateway"
)

func main() {
	configPath := flag.String("config", "", "Path to the BrowserNERD MCP config file (overrides workspace config)")
	socketPort := flag.Int("socket-port", 0, "Optional socket transport port override (falls back to config)")
	noWorkspace := flag.Bool("no-workspace", false, "Disable .browsernerd/ workspace discovery")
	workspaceDir := flag.String("workspace-dir", "", "Explicit workspace root (skip walk-up discovery)")
	initWorkspace := flag.Bool("init-workspace", false, "Create .browsernerd/ template in current directory and exit")
	flag.Parse()

	// Handle --init-workspace early exit
	if *initWorkspace {
		root := "."
		if *workspaceDir != "" {
			root = *workspaceDir
		}
		if err := config.InitWorkspace(root); err != nil {
			log.Fatalf("failed to initialize workspace: %v", err)
		}
		log.Printf("created .browsernerd/ workspace in %s", root)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := config.WorkspaceOptions{
		Disable:     *noWorkspace,
		ExplicitDir: *workspaceDir,
	}

	cfg, wsDir, err := config.LoadWithWorkspace(*configPath, opts)
	if err != nil {
		// Before we can redirect logs, write to stderr as last resort
		log.Fatalf("failed to load config: %v", err)
	}
	if wsDir != "" {
		log.Printf("using workspace config from %s", wsDir)
	}

	if *socketPort != 0 {
		cfg.MCP.SocketPort = *socketPort
		cfg.MCP.EnableSocket = true
	}

	// Redirect logging to file for stdio-only mode (stderr interferes with
	// the line-framed wire protocol).
	logWriter := io.Writer(os.Stderr)
	if cfg.MCP.EnableStdio && !cfg.MCP.EnableSocket && cfg.Server.LogFile != "" {
		logFile, openErr := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr == nil {
			logWriter = logFile
			defer logFile.Close()
		} else {
			logWriter = io.Discard
		}
	}
	logger := slog.New(slog.NewJSONHandler(logWriter, nil))
	slog.SetDefault(logger)

	orch, err := gateway.New(cfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize gateway: %v", err)
	}

	logger.Info("starting browsernerd mcp gateway",
		"socket_enabled", cfg.MCP.EnableSocket, "socket_port", cfg.MCP.SocketPort,
		"stdio_enabled", cfg.MCP.EnableStdio)

	if err := orch.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited with error: %v", err)
	}
}
