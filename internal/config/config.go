package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level BrowserNERD config.
	WorkspaceDirName = ".browsernerd"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the BrowserNERD MCP gateway.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Browser  BrowserConfig  `yaml:"browser"`
	MCP      MCPConfig      `yaml:"mcp"`
	Pool     PoolConfig     `yaml:"pool"`
	Security SecurityConfig `yaml:"security"`
	Macro    MacroConfig    `yaml:"macro"`
	Perf     PerfConfig     `yaml:"perf"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome in detached mode (e.g., ["chrome", "--remote-debugging-port=9222"]).
	Launch []string `yaml:"launch"`
	// AutoStart controls whether the gateway launches/attaches to Chrome at startup.
	AutoStart bool `yaml:"auto_start"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Default timeout when attaching to an existing target (e.g., "10s").
	DefaultAttachTimeout string `yaml:"default_attach_timeout"`
	// Viewport width for new sessions (default: 1280).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new sessions (default: 720).
	ViewportHeight int `yaml:"viewport_height"`
	// UserAgent overrides the default UA string for new contexts.
	UserAgent string `yaml:"user_agent"`
	// SandboxDisabled passes --no-sandbox to the launcher (container environments).
	SandboxDisabled bool `yaml:"sandbox_disabled"`
}

type MCPConfig struct {
	// SocketPort starts the socket transport at /mcp on this port (0 disables it).
	SocketPort int `yaml:"socket_port"`
	// EnableSocket toggles the socket transport independent of SocketPort being set.
	EnableSocket bool `yaml:"enable_socket"`
	// EnableStdio toggles the line-framed stdio transport.
	EnableStdio bool `yaml:"enable_stdio"`
}

// PoolConfig controls the Session Pool and the warm Context Pool beneath it.
type PoolConfig struct {
	MaxSessions       int   `yaml:"max_sessions"`
	SessionTimeoutMs  int64 `yaml:"session_timeout_ms"`
	CleanupIntervalMs int64 `yaml:"cleanup_interval_ms"`

	ContextPoolEnabled   bool  `yaml:"context_pool_enabled"`
	ContextPoolMin       int   `yaml:"context_pool_min"`
	ContextPoolMax       int   `yaml:"context_pool_max"`
	ContextPoolWarmup    bool  `yaml:"context_pool_warmup_on_start"`
	ContextPoolMaxIdleMs int64 `yaml:"context_pool_max_idle_ms"`
}

// SecurityConfig controls the allow-list, permission broker, rate limiter and redactor.
type SecurityConfig struct {
	AllowedDomains          []string `yaml:"allowed_domains"`
	AutoApproveLocalhost    bool     `yaml:"auto_approve_localhost"`
	UserPermissionTimeoutMs int64    `yaml:"user_permission_timeout_ms"`
	AutoDenyMs              int64    `yaml:"auto_deny_ms"`

	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`

	SensitiveHeaders      []string `yaml:"sensitive_headers"`
	EvalForbiddenPatterns []string `yaml:"eval_forbidden_patterns"`
}

// MacroConfig controls the recorder/player and its storage backend.
type MacroConfig struct {
	StorageDir     string `yaml:"storage_dir"`
	StepTimeoutMs  int64  `yaml:"step_timeout_ms"`
	DefaultDelayMs int64  `yaml:"default_delay_ms"`
}

// PerfConfig controls the Performance Manager's resource caps.
type PerfConfig struct {
	MaxMemoryBytes int64  `yaml:"max_memory_bytes"`
	MaxDiskBytes   int64  `yaml:"max_disk_bytes"`
	CPUThrottleMax int    `yaml:"cpu_throttle_max_concurrent"`
	TempDir        string `yaml:"temp_dir"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:    "browsernerd-gateway",
			Version: "0.1.0",
			LogFile: "browsernerd-gateway.log",
		},
		Browser: BrowserConfig{
			AutoStart:                true,
			DefaultNavigationTimeout: "15s",
			DefaultAttachTimeout:     "10s",
			ViewportWidth:            1280,
			ViewportHeight:           720,
			UserAgent:                "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) BrowserNERD/1.0 Safari/537.36",
		},
		MCP: MCPConfig{
			SocketPort:   3000,
			EnableSocket: true,
			EnableStdio:  true,
		},
		Pool: PoolConfig{
			MaxSessions:          10,
			SessionTimeoutMs:     1_800_000,
			CleanupIntervalMs:    300_000,
			ContextPoolEnabled:   true,
			ContextPoolMin:       1,
			ContextPoolMax:       5,
			ContextPoolWarmup:    false,
			ContextPoolMaxIdleMs: 600_000,
		},
		Security: SecurityConfig{
			AutoApproveLocalhost:    true,
			UserPermissionTimeoutMs: 30_000,
			AutoDenyMs:              1_000,
			RequestsPerMinute:       60,
			RequestsPerHour:         1000,
			SensitiveHeaders: []string{
				"authorization", "cookie", "set-cookie", "x-api-key",
				"x-auth-token", "bearer", "x-csrf-token", "x-session-id",
				"x-access-token",
			},
			EvalForbiddenPatterns: []string{
				`\brequire\s*\(`, `\bprocess\.`, `\bfs\.`, `__dirname`,
			},
		},
		Macro: MacroConfig{
			StorageDir:     "data/macros",
			StepTimeoutMs:  30_000,
			DefaultDelayMs: 0,
		},
		Perf: PerfConfig{
			MaxMemoryBytes: 2 << 30, // 2GiB
			MaxDiskBytes:   1 << 30, // 1GiB
			CPUThrottleMax: 4,
			TempDir:        "data/tmp",
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .browsernerd/config.yaml file.
// Returns the workspace root directory (parent of .browsernerd/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .browsernerd/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	// Layer 1: Workspace config (if not disabled)
	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			// Verify the explicit workspace dir has a config
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	// Layer 2: Explicit config file (--config flag)
	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .browsernerd/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	// Check if already exists
	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	// Create directory structure
	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "data"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	// Write template config
	templateConfig := `# BrowserNERD gateway project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# security:
#   allowed_domains:
#     - example.com
#   auto_approve_localhost: true

# browser:
#   headless: false
#   viewport_width: 1280
#   viewport_height: 720

# mcp:
#   socket_port: 3000
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	// Write .gitignore for data directory
	gitignoreContent := "# Runtime data (macros, traces, temp files) - do not version control\ndata/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Macro.StorageDir = resolve(cfg.Macro.StorageDir)
	cfg.Perf.TempDir = resolve(cfg.Perf.TempDir)
	return cfg
}

// Validate ensures required fields exist so the gateway can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Browser.AutoStart {
		if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
			return errors.New("browser.debugger_url or browser.launch must be provided")
		}
	}
	if c.Pool.MaxSessions <= 0 {
		return errors.New("pool.max_sessions must be positive")
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.DefaultNavigationTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultNavigationTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// AttachTimeout returns the parsed attach timeout with a sane default.
func (b BrowserConfig) AttachTimeout() time.Duration {
	if b.DefaultAttachTimeout == "" {
		return 10 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultAttachTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true // default to headless
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 720
	}
	return b.ViewportHeight
}

// SessionTimeout returns the idle-reap timeout as a Duration.
func (p PoolConfig) SessionTimeout() time.Duration {
	if p.SessionTimeoutMs <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(p.SessionTimeoutMs) * time.Millisecond
}

// CleanupInterval returns the idle-reap sweep period as a Duration.
func (p PoolConfig) CleanupInterval() time.Duration {
	if p.CleanupIntervalMs <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(p.CleanupIntervalMs) * time.Millisecond
}

// ContextPoolMaxIdle returns the context pool's idle TTL as a Duration.
func (p PoolConfig) ContextPoolMaxIdle() time.Duration {
	if p.ContextPoolMaxIdleMs <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(p.ContextPoolMaxIdleMs) * time.Millisecond
}

// PermissionTimeout returns the hard permission-prompt expiry as a Duration.
func (s SecurityConfig) PermissionTimeout() time.Duration {
	if s.UserPermissionTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.UserPermissionTimeoutMs) * time.Millisecond
}

// AutoDeny returns the soft conservative auto-deny as a Duration.
func (s SecurityConfig) AutoDeny() time.Duration {
	if s.AutoDenyMs <= 0 {
		return time.Second
	}
	return time.Duration(s.AutoDenyMs) * time.Millisecond
}

// StepTimeout returns the macro player's per-step selector wait as a Duration.
func (m MacroConfig) StepTimeout() time.Duration {
	if m.StepTimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(m.StepTimeoutMs) * time.Millisecond
}
