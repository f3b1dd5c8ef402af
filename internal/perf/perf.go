// Package perf implements the Performance Manager: resource caps, a
// throttled execution queue for evaluate-like operations, pressure signals,
// temp-file bookkeeping, and the circuit breaker registry guarding
// adapter-facing operations.
package perf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/config"
)

// Pressure is the signal the Session Pool consults before admitting a new session.
type Pressure int

const (
	PressureNone Pressure = iota
	PressureWarn
	PressureCritical
)

// Manager reports memory pressure against MaxMemoryBytes and runs a
// semaphore-bounded queue for CPU-heavy operations (evaluate, screenshot).
// MaxDiskBytes is not enforced: StoreTemporary writes without checking how
// much temp data is already on disk.
type Manager struct {
	cfg       config.PerfConfig
	throttle  chan struct{}
	breakers  *BreakerRegistry

	mu       sync.Mutex
	tempFiles map[string]time.Time
}

func NewManager(cfg config.PerfConfig) *Manager {
	max := cfg.CPUThrottleMax
	if max <= 0 {
		max = 4
	}
	return &Manager{
		cfg:       cfg,
		throttle:  make(chan struct{}, max),
		breakers:  NewBreakerRegistry(),
		tempFiles: make(map[string]time.Time),
	}
}

// Pressure reports none/warn/critical based on current process memory vs caps.
func (m *Manager) Pressure() Pressure {
	if m.cfg.MaxMemoryBytes <= 0 {
		return PressureNone
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	used := int64(stats.Alloc)
	ratio := float64(used) / float64(m.cfg.MaxMemoryBytes)
	switch {
	case ratio >= 0.95:
		return PressureCritical
	case ratio >= 0.75:
		return PressureWarn
	default:
		return PressureNone
	}
}

// Admit blocks until a throttle slot is free, bounding concurrent
// evaluate-like operations. Release the slot via the returned func.
func (m *Manager) Admit() func() {
	m.throttle <- struct{}{}
	return func() { <-m.throttle }
}

// Breakers exposes the circuit breaker registry for adapter-facing operations.
func (m *Manager) Breakers() *BreakerRegistry {
	return m.breakers
}

// StoreTemporary writes data under the configured temp dir and tracks it for cleanup.
func (m *Manager) StoreTemporary(name string, data []byte) (string, error) {
	if err := os.MkdirAll(m.cfg.TempDir, 0755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	path := filepath.Join(m.cfg.TempDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}
	m.mu.Lock()
	m.tempFiles[path] = time.Now()
	m.mu.Unlock()
	return path, nil
}

// GetTemporary reads back a previously stored temp file.
func (m *Manager) GetTemporary(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ForceCleanup removes tracked temp files older than olderThan.
func (m *Manager) ForceCleanup(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for path, createdAt := range m.tempFiles {
		if createdAt.Before(cutoff) {
			_ = os.Remove(path)
			delete(m.tempFiles, path)
			n++
		}
	}
	return n
}
