// Package session implements the Session Pool and the warm Context Pool
// beneath it: concurrent allocation, isolation, reuse, and idle reaping of
// browser contexts, each wrapped in a Session carrying its own capture
// pipeline and allow-list.
package session

import (
	"context"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/capture"
	"browsernerd-mcp-server/internal/security"

	"github.com/go-rod/rod"
)

// Options configures a session at creation time.
type Options struct {
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	DefaultTimeout time.Duration
	ClientID       string
	AllowedDomains []string
}

// TraceOptions mirrors the adapter's tracing.start() parameters.
type TraceOptions struct {
	Screenshots bool `json:"screenshots"`
	Snapshots   bool `json:"snapshots"`
	Sources     bool `json:"sources"`
}

// TraceRecord tracks the single active trace a session may hold.
type TraceRecord struct {
	SessionID string
	StartTime time.Time
	EndTime   *time.Time
	Options   TraceOptions
	OutputPath string
	Active    bool
}

// Session is the unit of isolation: one incognito browser context plus its
// primary page and all per-session state (allow-list, capture buffers,
// optional trace).
type Session struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Options    Options   `json:"-"`

	mu         sync.RWMutex
	lastActive time.Time
	alive      bool

	BrowserContext *rod.Browser `json:"-"`
	Page           *rod.Page    `json:"-"`

	PooledContextID string `json:"pooled_context_id,omitempty"`

	AllowList *security.AllowList `json:"-"`
	Capture   *capture.Pipeline   `json:"-"`

	trace *TraceRecord

	watchCancel context.CancelFunc
}

func newSession(id string, opts Options, allowList *security.AllowList) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		ClientID:   opts.ClientID,
		CreatedAt:  now,
		Options:    opts,
		lastActive: now,
		alive:      true,
		AllowList:  allowList,
		Capture:    capture.NewPipeline(),
	}
}

// IsAlive reports whether the session accepts operations.
func (s *Session) IsAlive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alive
}

// Touch records activity, extending the idle-reap deadline.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActive = time.Now()
}

// LastActive returns the last recorded activity instant.
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) markDestroyed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = false
}

// setWatchCancel stores the cancel func for the background event-capture
// goroutine so it can be stopped when the session is destroyed.
func (s *Session) setWatchCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchCancel = cancel
}

// stopWatch cancels the background event-capture goroutine, if started.
func (s *Session) stopWatch() {
	s.mu.Lock()
	cancel := s.watchCancel
	s.watchCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// StartTrace begins the session's single optional trace; returns false if a
// trace is already active.
func (s *Session) StartTrace(opts TraceOptions, outputPath string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trace != nil && s.trace.Active {
		return false
	}
	s.trace = &TraceRecord{
		SessionID:  s.ID,
		StartTime:  time.Now(),
		Options:    opts,
		OutputPath: outputPath,
		Active:     true,
	}
	return true
}

// StopTrace ends the active trace, if any, and returns a copy of it.
func (s *Session) StopTrace() *TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trace == nil || !s.trace.Active {
		return nil
	}
	now := time.Now()
	s.trace.EndTime = &now
	s.trace.Active = false
	cp := *s.trace
	return &cp
}

// ActiveTrace returns a copy of the current trace record, or nil.
func (s *Session) ActiveTrace() *TraceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.trace == nil {
		return nil
	}
	cp := *s.trace
	return &cp
}

// Metadata is the JSON-serialisable public view of a session, returned by
// list/create/attach tool handlers.
type Metadata struct {
	ID         string    `json:"id"`
	ClientID   string    `json:"client_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

func (s *Session) Metadata(currentURL, title string) Metadata {
	return Metadata{
		ID:         s.ID,
		ClientID:   s.ClientID,
		URL:        currentURL,
		Title:      title,
		CreatedAt:  s.CreatedAt,
		LastActive: s.LastActive(),
	}
}
