package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"browsernerd-mcp-server/internal/registry"
)

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "echo" }
func (echoTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}
func (echoTool) Execute(ctx context.Context, args map[string]interface{}) (registry.CallToolResult, error) {
	return registry.Success(args), nil
}

func TestStdioServer_HandlesOneRequestPerLine(t *testing.T) {
	reg := registry.NewRegistry()
	_ = reg.Register(echoTool{})
	d := registry.NewDispatcher(reg, registry.ServerInfo{Name: "test"})
	s := NewStdioServer(d, nil)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":"1","method":"tools.list"}` + "\n" +
		`{"jsonrpc":"2.0","id":"2","method":"nonexistent"}` + "\n")
	var out bytes.Buffer

	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	var responses []registry.Response
	for scanner.Scan() {
		var resp registry.Response
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		responses = append(responses, resp)
	}
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Error != nil {
		t.Fatalf("expected successful tools.list, got error %#v", responses[0].Error)
	}
	if responses[1].Error == nil {
		t.Fatal("expected method-not-found error for second request")
	}
}

func TestStdioServer_MalformedLineGetsParseError(t *testing.T) {
	reg := registry.NewRegistry()
	d := registry.NewDispatcher(reg, registry.ServerInfo{})
	s := NewStdioServer(d, nil)

	in := strings.NewReader("not json\n")
	var out bytes.Buffer
	if err := s.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var resp registry.Response
	if err := json.Unmarshal(bytes.TrimSpace(out.Bytes()), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("expected parse error, got %#v", resp.Error)
	}
}
