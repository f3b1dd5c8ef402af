package registry

import (
	"context"
	"testing"
)

type stubTool struct {
	name string
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub" }
func (s *stubTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (s *stubTool) Execute(ctx context.Context, args map[string]interface{}) (CallToolResult, error) {
	return Success(map[string]interface{}{"echoed": args}), nil
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&stubTool{name: "browser.goto"}); err != nil {
		t.Fatalf("unexpected error on first register: %v", err)
	}
	if err := r.Register(&stubTool{name: "browser.goto"}); err == nil {
		t.Fatal("expected error registering duplicate tool name")
	}
}

func TestRegistry_UnregisterFiresNotification(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "browser.click"})

	var events []string
	r.OnNotify(func(event, name string) {
		events = append(events, event+":"+name)
	})

	if !r.Unregister("browser.click") {
		t.Fatal("expected unregister to succeed")
	}
	if len(events) != 1 || events[0] != "tool.unregistered:browser.click" {
		t.Fatalf("expected tool.unregistered notification, got %v", events)
	}
}

func TestDispatcher_ToolsList(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "browser.goto"})
	d := NewDispatcher(r, ServerInfo{Name: "test", Version: "0.0.1"})

	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: "1", Method: "tools.list"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	descriptors, ok := resp.Result.([]Descriptor)
	if !ok || len(descriptors) != 1 {
		t.Fatalf("expected one descriptor, got %#v", resp.Result)
	}
}

func TestDispatcher_MethodNotFound(t *testing.T) {
	r := NewRegistry()
	d := NewDispatcher(r, ServerInfo{})

	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: "1", Method: "nonexistent"})
	if resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method-not-found error, got %#v", resp.Error)
	}
}

func TestDispatcher_DirectToolInvocation(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(&stubTool{name: "browser.goto"})
	d := NewDispatcher(r, ServerInfo{})

	resp := d.Handle(context.Background(), Request{JSONRPC: "2.0", ID: "1", Method: "browser.goto"})
	if resp.Error != nil {
		t.Fatalf("unexpected protocol error: %v", resp.Error)
	}
	result, ok := resp.Result.(CallToolResult)
	if !ok || result.IsError {
		t.Fatalf("expected successful CallToolResult, got %#v", resp.Result)
	}
}
