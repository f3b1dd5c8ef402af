package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/config"
	"browsernerd-mcp-server/internal/driverx"
	"browsernerd-mcp-server/internal/macro"
	"browsernerd-mcp-server/internal/perf"
	"browsernerd-mcp-server/internal/security"

	"github.com/google/uuid"
)

// ErrCapacityExceeded is returned by CreateSession once the pool is at maxSessions.
var ErrCapacityExceeded = errors.New("session pool at capacity")

// ErrResourceExhausted is returned when the Performance Manager vetoes a new session.
var ErrResourceExhausted = errors.New("resource limits exceeded")

// ErrSessionNotFound is returned by operations addressing an unknown or destroyed session.
var ErrSessionNotFound = errors.New("session not found")

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	ActiveSessions int `json:"active_sessions"`
	MaxSessions    int `json:"max_sessions"`
	PooledContexts int `json:"pooled_contexts"`
}

// Pool owns all active sessions: capacity enforcement, ID allocation, the
// client index, and idle reaping. Creation is serialised by a single-writer
// lock exactly as the teacher's SessionManager does; all other operations
// hold the pool's map lock only briefly and otherwise synchronise through
// the owning session.
type Pool struct {
	cfg     config.PoolConfig
	driver  *driverx.Driver
	secMgr  *security.Manager
	perfMgr *perf.Manager
	ctxPool *ContextPool
	log     *slog.Logger

	// createMu is the single-writer lock guarding capacity checks, ID
	// allocation, and client-index insertion during CreateSession/Attach.
	createMu sync.Mutex

	mu       sync.RWMutex
	sessions map[string]*Session
	byClient map[string][]string

	stopReap chan struct{}

	createNotifyMu sync.Mutex
	createNotify   []func(*Session)

	recorder *macro.Recorder
}

// SetRecorder attaches the macro Recorder so automatic (framenavigated-driven)
// navigation capture can reach whichever session currently has a recording
// active. The recorder is constructed after the pool in the Orchestrator's
// wiring order, so this is a setter rather than a constructor argument.
func (p *Pool) SetRecorder(r *macro.Recorder) {
	p.recorder = r
}

// OnSessionCreated subscribes fn to every session the pool creates or
// attaches, used by the orchestrator to wire each session's capture
// pipeline into the socket transport's broadcast.
func (p *Pool) OnSessionCreated(fn func(*Session)) {
	p.createNotifyMu.Lock()
	defer p.createNotifyMu.Unlock()
	p.createNotify = append(p.createNotify, fn)
}

func (p *Pool) fireCreated(s *Session) {
	p.createNotifyMu.Lock()
	subs := append([]func(*Session){}, p.createNotify...)
	p.createNotifyMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func NewPool(cfg config.PoolConfig, driver *driverx.Driver, secMgr *security.Manager, perfMgr *perf.Manager, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		cfg:      cfg,
		driver:   driver,
		secMgr:   secMgr,
		perfMgr:  perfMgr,
		ctxPool:  NewContextPool(driver, cfg),
		log:      logger.With("component", "session.pool"),
		sessions: make(map[string]*Session),
		byClient: make(map[string][]string),
	}
}

// StartReaper launches the periodic idle-reap sweep; call Shutdown's context
// cancellation (or StopReaper) to end it.
func (p *Pool) StartReaper(ctx context.Context) {
	p.stopReap = make(chan struct{})
	ticker := time.NewTicker(p.cfg.CleanupInterval())
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n := p.CleanupIdle()
				if n > 0 {
					p.log.Info("reaped idle sessions", "count", n)
				}
				p.ctxPool.ReapIdle()
			case <-p.stopReap:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *Pool) StopReaper() {
	if p.stopReap != nil {
		close(p.stopReap)
		p.stopReap = nil
	}
}

// CreateSession honours the pool's capacity limit and the Performance
// Manager's veto before acquiring a context (pooled or fresh) and opening a page.
func (p *Pool) CreateSession(ctx context.Context, opts Options, url string) (*Session, error) {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	p.mu.RLock()
	count := len(p.sessions)
	p.mu.RUnlock()
	if count >= p.cfg.MaxSessions {
		return nil, ErrCapacityExceeded
	}

	if p.perfMgr != nil && p.perfMgr.Pressure() == perf.PressureCritical {
		return nil, ErrResourceExhausted
	}

	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = 1280
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = 720
	}

	browserCtx, pooledID, err := p.ctxPool.Acquire(opts.ViewportWidth, opts.ViewportHeight)
	if err != nil {
		return nil, fmt.Errorf("acquire context: %w", err)
	}
	if browserCtx == nil {
		browserCtx, err = p.driver.NewContext()
		if err != nil {
			return nil, fmt.Errorf("new context: %w", err)
		}
	}

	page, err := p.driver.NewPage(browserCtx, url)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}

	id := newSessionID()
	allowList := p.secMgr.NewSessionAllowList(opts.AllowedDomains)
	s := newSession(id, opts, allowList)
	s.BrowserContext = browserCtx
	s.Page = page
	s.PooledContextID = pooledID

	p.mu.Lock()
	p.sessions[id] = s
	if opts.ClientID != "" {
		p.byClient[opts.ClientID] = append(p.byClient[opts.ClientID], id)
	}
	p.mu.Unlock()

	p.startWatch(s)

	return s, nil
}

// startWatch launches the background goroutine feeding s.Capture from CDP
// console/network events, stopped when the session is destroyed.
func (p *Pool) startWatch(s *Session) {
	watchCtx, cancel := context.WithCancel(context.Background())
	s.setWatchCancel(cancel)
	onNavigate := func(url string) {
		if p.recorder != nil && p.recorder.IsRecording(s.ID) {
			p.recorder.RecordNavigation(s.ID, url)
		}
	}
	go p.driver.WatchPage(watchCtx, s.Page, s.Capture, onNavigate)
	p.fireCreated(s)
}

// Attach binds a session wrapper to an already-open page by CDP target ID.
func (p *Pool) Attach(ctx context.Context, targetID string, opts Options) (*Session, error) {
	p.createMu.Lock()
	defer p.createMu.Unlock()

	p.mu.RLock()
	count := len(p.sessions)
	p.mu.RUnlock()
	if count >= p.cfg.MaxSessions {
		return nil, ErrCapacityExceeded
	}

	page, err := p.driver.PageFromTarget(targetID)
	if err != nil {
		return nil, err
	}

	id := newSessionID()
	allowList := p.secMgr.NewSessionAllowList(opts.AllowedDomains)
	s := newSession(id, opts, allowList)
	s.Page = page

	p.mu.Lock()
	p.sessions[id] = s
	if opts.ClientID != "" {
		p.byClient[opts.ClientID] = append(p.byClient[opts.ClientID], id)
	}
	p.mu.Unlock()

	p.startWatch(s)

	return s, nil
}

// GetSession returns a live session, or ErrSessionNotFound.
func (p *Pool) GetSession(id string) (*Session, error) {
	p.mu.RLock()
	s, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok || !s.IsAlive() {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// DestroySession removes id from all indices, closes its page/context (or
// returns a pooled context), and marks it destroyed. Idempotent and
// best-effort: adapter errors are logged, never returned to the caller.
func (p *Pool) DestroySession(id string) bool {
	p.mu.Lock()
	s, ok := p.sessions[id]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.sessions, id)
	if s.ClientID != "" {
		p.byClient[s.ClientID] = removeString(p.byClient[s.ClientID], id)
	}
	p.mu.Unlock()

	s.markDestroyed()
	s.stopWatch()

	if record := s.StopTrace(); record != nil {
		if err := p.driver.TraceStop(s.Page, record.OutputPath); err != nil {
			p.log.Warn("error stopping active trace on destroy", "session_id", id, "error", err)
		}
	}

	s.Capture.Clear()

	if s.Page != nil {
		if err := s.Page.Close(); err != nil {
			p.log.Warn("error closing page on destroy", "session_id", id, "error", err)
		}
	}

	if s.PooledContextID != "" {
		p.ctxPool.Release(s.PooledContextID)
	} else if s.BrowserContext != nil {
		if err := s.BrowserContext.Close(); err != nil {
			p.log.Warn("error closing context on destroy", "session_id", id, "error", err)
		}
	}

	return true
}

// DestroySessionsForClient destroys every session belonging to client.
func (p *Pool) DestroySessionsForClient(client string) int {
	p.mu.RLock()
	ids := append([]string{}, p.byClient[client]...)
	p.mu.RUnlock()

	n := 0
	for _, id := range ids {
		if p.DestroySession(id) {
			n++
		}
	}
	return n
}

// GetSessionsForClient returns the live sessions owned by client.
func (p *Pool) GetSessionsForClient(client string) []*Session {
	p.mu.RLock()
	ids := append([]string{}, p.byClient[client]...)
	p.mu.RUnlock()

	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, err := p.GetSession(id); err == nil {
			out = append(out, s)
		}
	}
	return out
}

// List returns every currently tracked live session.
func (p *Pool) List() []*Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	return out
}

// CleanupIdle destroys sessions whose last activity exceeds the configured
// timeout. Errors destroying an individual session are logged and do not
// abort the sweep.
func (p *Pool) CleanupIdle() int {
	timeout := p.cfg.SessionTimeout()
	now := time.Now()

	p.mu.RLock()
	var stale []string
	for id, s := range p.sessions {
		if now.Sub(s.LastActive()) > timeout {
			stale = append(stale, id)
		}
	}
	p.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if p.DestroySession(id) {
			n++
		}
	}
	return n
}

// RecreateSession preserves id and options, tearing down and rebuilding the
// underlying context/page in place.
func (p *Pool) RecreateSession(ctx context.Context, id string) (*Session, error) {
	p.mu.RLock()
	old, ok := p.sessions[id]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	opts := old.Options
	url := ""
	if old.Page != nil {
		url = p.driver.CurrentURL(old.Page)
	}

	p.DestroySession(id)

	fresh, err := p.CreateSession(ctx, opts, url)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	delete(p.sessions, fresh.ID)
	fresh.ID = id
	p.sessions[id] = fresh
	p.mu.Unlock()

	return fresh, nil
}

// Stats reports current pool occupancy.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	active := len(p.sessions)
	p.mu.RUnlock()
	return Stats{
		ActiveSessions: active,
		MaxSessions:    p.cfg.MaxSessions,
		PooledContexts: p.ctxPool.Size(),
	}
}

// Shutdown destroys every session, stopping any active trace as a side
// effect of the close.
func (p *Pool) Shutdown() {
	p.StopReaper()
	for _, s := range p.List() {
		p.DestroySession(s.ID)
	}
}

func newSessionID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString())
}

func removeString(list []string, target string) []string {
	out := list[:0]
	for _, v := range list {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}
