package security

import (
	"context"
	"sync"
	"time"
)

// PermissionKey identifies one pending permission request.
type PermissionKey struct {
	Domain    string
	SessionID string
}

// pendingRequest is shared by every caller coalesced onto the same key. The
// decision is stored in granted and the done channel is closed exactly once;
// every waiter's receive from a closed channel succeeds, so all of them
// observe the same outcome (a single-value buffered channel would only
// deliver to the first receiver).
type pendingRequest struct {
	done    chan struct{}
	once    sync.Once
	granted bool
}

func newPendingRequest() *pendingRequest {
	return &pendingRequest{done: make(chan struct{})}
}

func (p *pendingRequest) resolve(granted bool) {
	p.once.Do(func() {
		p.granted = granted
		close(p.done)
	})
}

// PermissionBroker coalesces concurrent permission prompts for the same
// (domain, session) key and races an external decision channel against a
// soft auto-deny and a hard expiry, per the spec's dual-timer design.
type PermissionBroker struct {
	autoDeny      time.Duration
	hardExpiry    time.Duration
	mu            sync.Mutex
	pending       map[PermissionKey]*pendingRequest
}

func NewPermissionBroker(autoDeny, hardExpiry time.Duration) *PermissionBroker {
	return &PermissionBroker{
		autoDeny:   autoDeny,
		hardExpiry: hardExpiry,
		pending:    make(map[PermissionKey]*pendingRequest),
	}
}

// Request blocks until a decision is reached: an external call to Respond,
// the soft auto-deny elapsing, or the hard expiry elapsing — whichever comes
// first. Multiple concurrent callers for the same key share one outcome.
func (b *PermissionBroker) Request(ctx context.Context, key PermissionKey) (granted bool, timedOut bool) {
	b.mu.Lock()
	req, exists := b.pending[key]
	if !exists {
		req = newPendingRequest()
		b.pending[key] = req
	}
	b.mu.Unlock()

	autoDenyTimer := time.NewTimer(b.autoDeny)
	defer autoDenyTimer.Stop()
	hardTimer := time.NewTimer(b.hardExpiry)
	defer hardTimer.Stop()

	select {
	case <-req.done:
		b.clear(key, req)
		return req.granted, false
	case <-autoDenyTimer.C:
		// Soft conservative default: deny without tearing down the pending
		// entry, so a late external decision can still resolve it for any
		// other caller still waiting on the hard expiry.
		return false, false
	case <-hardTimer.C:
		b.clear(key, req)
		return false, true
	case <-ctx.Done():
		b.clear(key, req)
		return false, true
	}
}

// Respond delivers an external decision to every caller currently waiting on key.
func (b *PermissionBroker) Respond(key PermissionKey, granted bool) bool {
	b.mu.Lock()
	req, ok := b.pending[key]
	b.mu.Unlock()
	if !ok {
		return false
	}
	req.resolve(granted)
	return true
}

func (b *PermissionBroker) clear(key PermissionKey, req *pendingRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if current, ok := b.pending[key]; ok && current == req {
		delete(b.pending, key)
	}
}
