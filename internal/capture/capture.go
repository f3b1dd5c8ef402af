// Package capture holds the bounded per-session ring buffers for network
// and console records, fed by the driver adapter's CDP event subscriptions.
package capture

import (
	"sync"
	"time"
)

// MaxRecords bounds every ring buffer (network and console, independently)
// to 1000 entries per session, per the event capture invariant.
const MaxRecords = 1000

// MaxBodyBytes is the inclusive cutoff for capturing a response body.
const MaxBodyBytes = 10_000

// NetworkRecord describes a single observed request/response pair.
type NetworkRecord struct {
	Timestamp       time.Time         `json:"timestamp"`
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Status          int               `json:"status"`
	RequestHeaders  map[string]string `json:"request_headers,omitempty"`
	ResponseHeaders map[string]string `json:"response_headers,omitempty"`
	RequestBody     string            `json:"request_body,omitempty"`
	ResponseBody    string            `json:"response_body,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
}

// ConsoleLevel mirrors the console message severities the driver reports.
type ConsoleLevel string

const (
	ConsoleLog   ConsoleLevel = "log"
	ConsoleInfo  ConsoleLevel = "info"
	ConsoleWarn  ConsoleLevel = "warn"
	ConsoleError ConsoleLevel = "error"
	ConsoleDebug ConsoleLevel = "debug"
)

// SourceLocation is the optional origin of a console message.
type SourceLocation struct {
	URL    string `json:"url,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// ConsoleRecord describes a single captured console message or page error.
type ConsoleRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     ConsoleLevel    `json:"level"`
	Message   string          `json:"message"`
	Location  *SourceLocation `json:"location,omitempty"`
}

// ringBuffer is a fixed-capacity FIFO that overwrites the oldest entry once
// full. It is generic over the record type so Network/Console buffers share
// one implementation, matching the spec's "locked deque, pop front on
// overflow" option.
type ringBuffer[T any] struct {
	mu    sync.RWMutex
	items []T
	cap   int
}

func newRingBuffer[T any](capacity int) *ringBuffer[T] {
	return &ringBuffer[T]{items: make([]T, 0, capacity), cap: capacity}
}

func (r *ringBuffer[T]) Append(item T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) >= r.cap {
		// Evict oldest. A slice shift is O(n) but n is capped at 1000 and
		// this only runs on the (rare, already-slow) overflow path.
		copy(r.items, r.items[1:])
		r.items[len(r.items)-1] = item
		return
	}
	r.items = append(r.items, item)
}

// Snapshot returns a defensive copy; external readers never see the live slice.
func (r *ringBuffer[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

func (r *ringBuffer[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *ringBuffer[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = r.items[:0]
}

// Pipeline owns one session's network and console ring buffers.
type Pipeline struct {
	network *ringBuffer[NetworkRecord]
	console *ringBuffer[ConsoleRecord]

	subMu       sync.Mutex
	consoleSubs []func(ConsoleRecord)
}

func NewPipeline() *Pipeline {
	return &Pipeline{
		network: newRingBuffer[NetworkRecord](MaxRecords),
		console: newRingBuffer[ConsoleRecord](MaxRecords),
	}
}

func (p *Pipeline) AppendNetwork(rec NetworkRecord) {
	if len(rec.ResponseBody) > MaxBodyBytes {
		rec.ResponseBody = ""
	}
	if len(rec.RequestBody) > MaxBodyBytes {
		rec.RequestBody = ""
	}
	p.network.Append(rec)
}

func (p *Pipeline) AppendConsole(rec ConsoleRecord) {
	p.console.Append(rec)
	p.subMu.Lock()
	subs := append([]func(ConsoleRecord){}, p.consoleSubs...)
	p.subMu.Unlock()
	for _, fn := range subs {
		fn(rec)
	}
}

// Subscribe registers fn to be called (synchronously, in emission order) for
// every newly appended console record — used by the socket transport to
// forward console.log notifications to subscribed clients.
func (p *Pipeline) Subscribe(fn func(ConsoleRecord)) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	p.consoleSubs = append(p.consoleSubs, fn)
}

func (p *Pipeline) RecentNetwork(limit int) []NetworkRecord {
	all := p.network.Snapshot()
	return tail(all, limit)
}

func (p *Pipeline) RecentConsole(limit int) []ConsoleRecord {
	all := p.console.Snapshot()
	return tail(all, limit)
}

func (p *Pipeline) AllNetwork() []NetworkRecord { return p.network.Snapshot() }
func (p *Pipeline) AllConsole() []ConsoleRecord { return p.console.Snapshot() }

func (p *Pipeline) NetworkLen() int { return p.network.Len() }
func (p *Pipeline) ConsoleLen() int { return p.console.Len() }

// Clear drops all captured records; called when a session is destroyed.
func (p *Pipeline) Clear() {
	p.network.Clear()
	p.console.Clear()
}

func tail[T any](items []T, limit int) []T {
	if limit <= 0 || limit >= len(items) {
		return items
	}
	return items[len(items)-limit:]
}
