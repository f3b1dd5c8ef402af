package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "browsernerd-gateway" {
		t.Errorf("expected server name 'browsernerd-gateway', got %q", cfg.Server.Name)
	}
	if cfg.Server.LogFile != "browsernerd-gateway.log" {
		t.Errorf("expected log file 'browsernerd-gateway.log', got %q", cfg.Server.LogFile)
	}

	if !cfg.Browser.AutoStart {
		t.Error("expected AutoStart to be true")
	}
	if cfg.Browser.DefaultNavigationTimeout != "15s" {
		t.Errorf("expected navigation timeout '15s', got %q", cfg.Browser.DefaultNavigationTimeout)
	}
	if cfg.Browser.DefaultAttachTimeout != "10s" {
		t.Errorf("expected attach timeout '10s', got %q", cfg.Browser.DefaultAttachTimeout)
	}
	if cfg.Browser.ViewportWidth != 1280 {
		t.Errorf("expected viewport width 1280, got %d", cfg.Browser.ViewportWidth)
	}
	if cfg.Browser.ViewportHeight != 720 {
		t.Errorf("expected viewport height 720, got %d", cfg.Browser.ViewportHeight)
	}

	if cfg.Pool.MaxSessions != 10 {
		t.Errorf("expected max sessions 10, got %d", cfg.Pool.MaxSessions)
	}
	if !cfg.Pool.ContextPoolEnabled {
		t.Error("expected context pool enabled by default")
	}

	if !cfg.Security.AutoApproveLocalhost {
		t.Error("expected auto-approve localhost by default")
	}
	if cfg.Security.RequestsPerMinute != 60 {
		t.Errorf("expected 60 requests per minute, got %d", cfg.Security.RequestsPerMinute)
	}

	if cfg.Perf.CPUThrottleMax != 4 {
		t.Errorf("expected cpu throttle max 4, got %d", cfg.Perf.CPUThrottleMax)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Error("expected error for empty path")
	}
	if err.Error() != "config path is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  name: "test-server"
  version: "1.0.0"
  log_file: "test.log"

browser:
  debugger_url: "ws://localhost:9222"
  auto_start: true
  headless: true
  default_navigation_timeout: "20s"
  default_attach_timeout: "5s"
  viewport_width: 1280
  viewport_height: 720

pool:
  max_sessions: 25

security:
  allowed_domains:
    - example.com
  requests_per_minute: 120
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Name != "test-server" {
		t.Errorf("expected server name 'test-server', got %q", cfg.Server.Name)
	}
	if cfg.Browser.DebuggerURL != "ws://localhost:9222" {
		t.Errorf("expected debugger URL 'ws://localhost:9222', got %q", cfg.Browser.DebuggerURL)
	}
	if cfg.Browser.ViewportWidth != 1280 {
		t.Errorf("expected viewport width 1280, got %d", cfg.Browser.ViewportWidth)
	}
	if cfg.Pool.MaxSessions != 25 {
		t.Errorf("expected max sessions 25, got %d", cfg.Pool.MaxSessions)
	}
	if len(cfg.Security.AllowedDomains) != 1 || cfg.Security.AllowedDomains[0] != "example.com" {
		t.Errorf("expected allowed domains [example.com], got %v", cfg.Security.AllowedDomains)
	}
	if cfg.Security.RequestsPerMinute != 120 {
		t.Errorf("expected 120 requests per minute, got %d", cfg.Security.RequestsPerMinute)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: content:"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "empty server name",
			cfg:     Config{Server: ServerConfig{Name: ""}},
			wantErr: true,
			errMsg:  "server.name is required",
		},
		{
			name: "auto_start without debugger_url or launch",
			cfg: Config{
				Server:  ServerConfig{Name: "test"},
				Browser: BrowserConfig{AutoStart: true},
				Pool:    PoolConfig{MaxSessions: 1},
			},
			wantErr: true,
			errMsg:  "browser.debugger_url or browser.launch must be provided",
		},
		{
			name: "auto_start with debugger_url",
			cfg: Config{
				Server:  ServerConfig{Name: "test"},
				Browser: BrowserConfig{AutoStart: true, DebuggerURL: "ws://localhost:9222"},
				Pool:    PoolConfig{MaxSessions: 1},
			},
			wantErr: false,
		},
		{
			name: "auto_start with launch",
			cfg: Config{
				Server:  ServerConfig{Name: "test"},
				Browser: BrowserConfig{AutoStart: true, Launch: []string{"chrome"}},
				Pool:    PoolConfig{MaxSessions: 1},
			},
			wantErr: false,
		},
		{
			name: "max sessions must be positive",
			cfg: Config{
				Server: ServerConfig{Name: "test"},
				Pool:   PoolConfig{MaxSessions: 0},
			},
			wantErr: true,
			errMsg:  "pool.max_sessions must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error but got nil")
				} else if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestNavigationTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeout  string
		expected time.Duration
	}{
		{"empty string", "", 15 * time.Second},
		{"valid duration", "20s", 20 * time.Second},
		{"invalid duration", "invalid", 15 * time.Second},
		{"milliseconds", "500ms", 500 * time.Millisecond},
		{"minutes", "2m", 2 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BrowserConfig{DefaultNavigationTimeout: tt.timeout}
			result := cfg.NavigationTimeout()
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestAttachTimeout(t *testing.T) {
	tests := []struct {
		name     string
		timeout  string
		expected time.Duration
	}{
		{"empty string", "", 10 * time.Second},
		{"valid duration", "30s", 30 * time.Second},
		{"invalid duration", "not-a-duration", 10 * time.Second},
		{"milliseconds", "100ms", 100 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BrowserConfig{DefaultAttachTimeout: tt.timeout}
			result := cfg.AttachTimeout()
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsHeadless(t *testing.T) {
	t.Run("nil headless defaults to true", func(t *testing.T) {
		cfg := BrowserConfig{Headless: nil}
		if !cfg.IsHeadless() {
			t.Error("expected true when Headless is nil")
		}
	})

	t.Run("explicit true", func(t *testing.T) {
		val := true
		cfg := BrowserConfig{Headless: &val}
		if !cfg.IsHeadless() {
			t.Error("expected true when Headless is true")
		}
	})

	t.Run("explicit false", func(t *testing.T) {
		val := false
		cfg := BrowserConfig{Headless: &val}
		if cfg.IsHeadless() {
			t.Error("expected false when Headless is false")
		}
	})
}

func TestGetViewportWidth(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		expected int
	}{
		{"zero defaults to 1280", 0, 1280},
		{"negative defaults to 1280", -100, 1280},
		{"custom width", 1920, 1920},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BrowserConfig{ViewportWidth: tt.width}
			result := cfg.GetViewportWidth()
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestGetViewportHeight(t *testing.T) {
	tests := []struct {
		name     string
		height   int
		expected int
	}{
		{"zero defaults to 720", 0, 720},
		{"negative defaults to 720", -50, 720},
		{"custom height", 1080, 1080},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := BrowserConfig{ViewportHeight: tt.height}
			result := cfg.GetViewportHeight()
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSessionTimeout(t *testing.T) {
	tests := []struct {
		name     string
		ms       int64
		expected time.Duration
	}{
		{"zero defaults to 30m", 0, 30 * time.Minute},
		{"negative defaults to 30m", -1, 30 * time.Minute},
		{"custom", 60_000, time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := PoolConfig{SessionTimeoutMs: tt.ms}
			result := cfg.SessionTimeout()
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestPermissionTimeout(t *testing.T) {
	cfg := SecurityConfig{UserPermissionTimeoutMs: 0}
	if cfg.PermissionTimeout() != 30*time.Second {
		t.Errorf("expected default 30s permission timeout, got %v", cfg.PermissionTimeout())
	}

	cfg2 := SecurityConfig{UserPermissionTimeoutMs: 5000}
	if cfg2.PermissionTimeout() != 5*time.Second {
		t.Errorf("expected 5s permission timeout, got %v", cfg2.PermissionTimeout())
	}
}

func TestAutoDeny(t *testing.T) {
	cfg := SecurityConfig{AutoDenyMs: 0}
	if cfg.AutoDeny() != time.Second {
		t.Errorf("expected default 1s auto-deny, got %v", cfg.AutoDeny())
	}
}
