package transport

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"browsernerd-mcp-server/internal/registry"

	"github.com/gorilla/websocket"
)

func TestSocketServer_SendsConnectionEstablished(t *testing.T) {
	reg := registry.NewRegistry()
	d := registry.NewDispatcher(reg, registry.ServerInfo{Name: "test"})
	s := NewSocketServer(d, nil)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var n notification
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Method != "connection.established" {
		t.Fatalf("expected connection.established, got %q", n.Method)
	}
}

func TestSocketServer_DispatchesRequest(t *testing.T) {
	reg := registry.NewRegistry()
	_ = reg.Register(echoTool{})
	d := registry.NewDispatcher(reg, registry.ServerInfo{})
	s := NewSocketServer(d, nil)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read connection.established: %v", err)
	}

	req := registry.Request{JSONRPC: "2.0", ID: "1", Method: "tools.list"}
	data, _ := json.Marshal(req)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, respData, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	var resp registry.Response
	if err := json.Unmarshal(respData, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error: %#v", resp.Error)
	}
}

func TestSocketServer_BroadcastReachesConnectedClients(t *testing.T) {
	reg := registry.NewRegistry()
	d := registry.NewDispatcher(reg, registry.ServerInfo{})
	s := NewSocketServer(d, nil)

	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("read connection.established: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.ConnectionCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.BroadcastNotification("console.log", map[string]string{"message": "hello"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var n notification
	if err := json.Unmarshal(data, &n); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if n.Method != "console.log" {
		t.Fatalf("expected console.log notification, got %q", n.Method)
	}
}
