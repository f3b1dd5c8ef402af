package main

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"browsernerd-mcp-server/internal/config"
	"browsernerd-mcp-server/internal/gateway"
	"browsernerd-mcp-server/internal/session"
)

// TestIntegrationGatewayLifecycle exercises the wiring main() performs
// (config -> gateway.New -> Run/Shutdown) without actually invoking main().
func TestIntegrationGatewayLifecycle(t *testing.T) {
	if os.Getenv("SKIP_LIVE_TESTS") != "" {
		t.Skip("Skipping integration tests (SKIP_LIVE_TESTS set)")
	}

	t.Run("default config loads", func(t *testing.T) {
		cfg := config.DefaultConfig()
		if cfg.Server.Name == "" {
			t.Error("expected a non-empty server name")
		}
		if !cfg.MCP.EnableSocket || !cfg.MCP.EnableStdio {
			t.Error("expected both transports enabled by default")
		}
	})

	t.Run("gateway constructs without starting the browser", func(t *testing.T) {
		tmp := t.TempDir()
		cfg := config.DefaultConfig()
		cfg.Browser.AutoStart = false
		cfg.Macro.StorageDir = tmp + "/macros"

		orch, err := gateway.New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if err != nil {
			t.Fatalf("gateway.New: %v", err)
		}
		if orch.Status().ToolCount != 21 {
			t.Errorf("expected 21 registered tools, got %d", orch.Status().ToolCount)
		}
	})

	t.Run("full lifecycle with a real browser", func(t *testing.T) {
		tmp := t.TempDir()
		cfg := config.DefaultConfig()
		cfg.MCP.EnableStdio = false
		cfg.MCP.SocketPort = 0
		cfg.MCP.EnableSocket = false
		cfg.Macro.StorageDir = tmp + "/macros"

		orch, err := gateway.New(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
		if err != nil {
			t.Fatalf("gateway.New: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := orch.Driver.Start(ctx); err != nil {
			t.Skipf("browser start failed (Chrome not available?): %v", err)
		}
		defer orch.Shutdown()

		sess, err := orch.Pool.CreateSession(ctx, session.Options{}, "about:blank")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if sess.ID == "" {
			t.Error("expected a non-empty session id")
		}

		result := orch.Registry.ExecuteTool(ctx, "browser.goto", map[string]interface{}{
			"sessionId": sess.ID,
			"url":       "about:blank",
		})
		if result.IsError {
			t.Fatalf("ExecuteTool(browser.goto) returned an error result: %+v", result)
		}
	})
}
