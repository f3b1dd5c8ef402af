package registry

import (
	"context"
	"fmt"
	"sync"
)

// Tool is a named, schema-described operation handler exposed over JSON-RPC.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (CallToolResult, error)
}

// Descriptor is the JSON-serialisable view of a tool, returned by tools.list.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Registry holds the canonical tool set, shared by both transports.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string

	notifyMu sync.Mutex
	notify   []func(event string, toolName string)
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// OnNotify subscribes fn to tool.registered/tool.unregistered events, used by
// the socket transport to broadcast them.
func (r *Registry) OnNotify(fn func(event, toolName string)) {
	r.notifyMu.Lock()
	defer r.notifyMu.Unlock()
	r.notify = append(r.notify, fn)
}

func (r *Registry) fire(event, toolName string) {
	r.notifyMu.Lock()
	subs := append([]func(string, string){}, r.notify...)
	r.notifyMu.Unlock()
	for _, fn := range subs {
		fn(event, toolName)
	}
}

// Register adds tool to the registry, rejecting duplicate names.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	r.fire("tool.registered", name)
	return nil
}

// Unregister removes a tool and emits a tool.unregistered notification.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.fire("tool.unregistered", name)
	return true
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns descriptors for every registered tool in registration order.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, Descriptor{Name: t.Name(), Description: t.Description(), InputSchema: t.InputSchema()})
	}
	return out
}

// ExecuteTool invokes the named tool's handler, returning a uniform
// CallToolResult even when the tool itself errors — the dispatcher never
// surfaces a raw exception.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) CallToolResult {
	tool, ok := r.Get(name)
	if !ok {
		return FailureSystem(fmt.Sprintf("unknown tool %q", name))
	}
	result, err := tool.Execute(ctx, args)
	if err != nil {
		return Failure(err)
	}
	return result
}
