// Package security implements the domain allow-list and permission broker,
// the dual-window rate limiter, and the redaction engine described for the
// gateway's Security Manager.
package security

import (
	"net/url"
	"strings"
	"sync"
)

var loopbackHosts = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
	"0.0.0.0":   {},
}

// AllowList tracks the normalised hostnames a session may navigate to
// without a permission prompt.
type AllowList struct {
	mu                   sync.RWMutex
	hosts                map[string]struct{}
	autoApproveLocalhost bool
}

func NewAllowList(initial []string, autoApproveLocalhost bool) *AllowList {
	al := &AllowList{
		hosts:                make(map[string]struct{}, len(initial)),
		autoApproveLocalhost: autoApproveLocalhost,
	}
	for _, h := range initial {
		al.hosts[NormalizeHost(h)] = struct{}{}
	}
	return al
}

// NormalizeHost lowercases a raw domain/URL string and strips scheme, port,
// and path, leaving just the hostname.
func NormalizeHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	candidate := raw
	if !strings.Contains(candidate, "://") {
		candidate = "//" + candidate
	}
	if u, err := url.Parse(candidate); err == nil && u.Hostname() != "" {
		return strings.ToLower(u.Hostname())
	}
	// Fall back to stripping a trailing path/port manually.
	host := strings.ToLower(raw)
	if idx := strings.IndexAny(host, "/:"); idx != -1 {
		host = host[:idx]
	}
	return host
}

// Contains reports whether host is present in the allow-list, auto-approving
// loopback addresses when configured.
func (a *AllowList) Contains(host string) bool {
	host = NormalizeHost(host)
	if a.autoApproveLocalhost {
		if _, ok := loopbackHosts[host]; ok {
			return true
		}
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.hosts[host]
	return ok
}

// Add grows the allow-list, used on successful navigation under the spec's
// "per-session additions on successful navigation" rule.
func (a *AllowList) Add(host string) {
	host = NormalizeHost(host)
	if host == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hosts[host] = struct{}{}
}

// Snapshot returns a defensive copy of the allow-list contents.
func (a *AllowList) Snapshot() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, 0, len(a.hosts))
	for h := range a.hosts {
		out = append(out, h)
	}
	return out
}
