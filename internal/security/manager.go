package security

import (
	"context"
	"errors"
	"fmt"

	"browsernerd-mcp-server/internal/config"
)

// ErrPermissionDenied is returned when a domain is neither allow-listed nor
// externally granted before expiry.
var ErrPermissionDenied = errors.New("permission denied")

// ErrPermissionTimeout is returned when the hard expiry elapses with no decision.
var ErrPermissionTimeout = errors.New("permission request timed out")

// ErrRateLimited is returned when a client exceeds its per-minute or per-hour budget.
var ErrRateLimited = errors.New("rate limit exceeded")

// Manager composes the allow-list, permission broker, rate limiter, and
// redactor behind the single entry point tool handlers call before and
// after an adapter operation.
type Manager struct {
	Redactor   *Redactor
	RateLimit  *RateLimiter
	EvalPolicy *EvalPolicy

	broker               *PermissionBroker
	allowedDomains       []string
	autoApproveLocalhost bool
}

func NewManager(cfg config.SecurityConfig) *Manager {
	return &Manager{
		Redactor:             NewRedactor(cfg.SensitiveHeaders),
		RateLimit:            NewRateLimiter(cfg.RequestsPerMinute, cfg.RequestsPerHour),
		EvalPolicy:           NewEvalPolicy(cfg.EvalForbiddenPatterns),
		broker:               NewPermissionBroker(cfg.AutoDeny(), cfg.PermissionTimeout()),
		allowedDomains:       cfg.AllowedDomains,
		autoApproveLocalhost: cfg.AutoApproveLocalhost,
	}
}

// NewSessionAllowList builds a per-session allow-list seeded from the
// session's configured domains plus the global defaults.
func (m *Manager) NewSessionAllowList(initial []string) *AllowList {
	seeded := append(append([]string(nil), m.allowedDomains...), initial...)
	return NewAllowList(seeded, m.autoApproveLocalhost)
}

// CheckDomainAccess resolves immediately if host is already allow-listed;
// otherwise it raises (or joins) a pending permission request and blocks
// until a decision, soft auto-deny, or hard expiry.
func (m *Manager) CheckDomainAccess(ctx context.Context, allowList *AllowList, host, sessionID string) error {
	if allowList.Contains(host) {
		return nil
	}

	key := PermissionKey{Domain: NormalizeHost(host), SessionID: sessionID}
	granted, timedOut := m.broker.Request(ctx, key)
	if granted {
		allowList.Add(host)
		return nil
	}
	if timedOut {
		return fmt.Errorf("%w: domain %q", ErrPermissionTimeout, host)
	}
	return fmt.Errorf("%w: domain %q is not in the allowed domains list", ErrPermissionDenied, host)
}

// RespondToPermissionRequest delivers an external allow/deny decision.
func (m *Manager) RespondToPermissionRequest(domain, sessionID string, granted bool) bool {
	return m.broker.Respond(PermissionKey{Domain: NormalizeHost(domain), SessionID: sessionID}, granted)
}

// CheckRateLimit enforces the dual-window limiter for (client, operation).
func (m *Manager) CheckRateLimit(client, operation string) error {
	if client == "" {
		client = "default"
	}
	if !m.RateLimit.Allow(client, operation) {
		return fmt.Errorf("%w: client %q operation %q", ErrRateLimited, client, operation)
	}
	return nil
}
