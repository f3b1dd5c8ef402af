package session

import (
	"fmt"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/config"
	"browsernerd-mcp-server/internal/driverx"

	"github.com/go-rod/rod"
	"github.com/google/uuid"
)

// contextPoolEntry is one warm browser context held by the Context Pool.
type contextPoolEntry struct {
	ID             string
	Context        *rod.Browser
	ViewportWidth  int
	ViewportHeight int
	Borrowed       bool
	LastUsed       time.Time
}

// ContextPool maintains a warm pool of pre-created browser contexts that
// the Session Pool borrows from and returns to, matching on viewport size
// when possible; the user agent is not part of the match. Disabling the pool (enabled=false) degrades it to a pass-through
// that always creates a fresh context.
type ContextPool struct {
	enabled bool
	driver  *driverx.Driver
	min     int
	max     int
	maxIdle time.Duration

	mu      sync.Mutex
	entries map[string]*contextPoolEntry
}

func NewContextPool(driver *driverx.Driver, cfg config.PoolConfig) *ContextPool {
	return &ContextPool{
		enabled: cfg.ContextPoolEnabled,
		driver:  driver,
		min:     cfg.ContextPoolMin,
		max:     cfg.ContextPoolMax,
		maxIdle: cfg.ContextPoolMaxIdle(),
		entries: make(map[string]*contextPoolEntry),
	}
}

// WarmUp eagerly creates up to `min` free contexts.
func (p *ContextPool) WarmUp() error {
	if !p.enabled {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.entries) < p.min {
		ctx, err := p.driver.NewContext()
		if err != nil {
			return fmt.Errorf("warm up context pool: %w", err)
		}
		id := uuid.NewString()
		p.entries[id] = &contextPoolEntry{ID: id, Context: ctx, LastUsed: time.Now()}
	}
	return nil
}

// Acquire returns a free entry matching viewport, or creates a new one if
// under the pool's max. Returns (nil, "", nil) when the pool is disabled —
// callers should create a fresh context directly in that case.
func (p *ContextPool) Acquire(viewportW, viewportH int) (*rod.Browser, string, error) {
	if !p.enabled {
		return nil, "", nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, entry := range p.entries {
		if !entry.Borrowed && entry.ViewportWidth == viewportW && entry.ViewportHeight == viewportH {
			entry.Borrowed = true
			entry.LastUsed = time.Now()
			return entry.Context, entry.ID, nil
		}
	}

	if len(p.entries) >= p.max {
		// At capacity with no free match; caller creates a fresh,
		// unpooled context instead of blocking.
		return nil, "", nil
	}

	ctx, err := p.driver.NewContext()
	if err != nil {
		return nil, "", fmt.Errorf("acquire context: %w", err)
	}
	id := uuid.NewString()
	p.entries[id] = &contextPoolEntry{
		ID: id, Context: ctx, ViewportWidth: viewportW, ViewportHeight: viewportH,
		Borrowed: true, LastUsed: time.Now(),
	}
	return ctx, id, nil
}

// Release resets and returns a borrowed context to the free set. Closing
// extra pages and clearing storage is the caller's responsibility before
// calling Release (the session has already been torn down at that point).
func (p *ContextPool) Release(id string) {
	if !p.enabled || id == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry, ok := p.entries[id]; ok {
		entry.Borrowed = false
		entry.LastUsed = time.Now()
	}
}

// ReapIdle closes contexts that have been free for longer than maxIdle.
func (p *ContextPool) ReapIdle() int {
	if !p.enabled {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	reaped := 0
	now := time.Now()
	for id, entry := range p.entries {
		if entry.Borrowed {
			continue
		}
		if now.Sub(entry.LastUsed) > p.maxIdle {
			_ = entry.Context.Close()
			delete(p.entries, id)
			reaped++
		}
	}
	return reaped
}

// Size returns the current number of tracked contexts (free + borrowed).
func (p *ContextPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
