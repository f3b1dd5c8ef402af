package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"browsernerd-mcp-server/internal/registry"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	socketMaxPayloadBytes = 1 << 20
	socketWriteWait       = 10 * time.Second
	socketPongWait        = 45 * time.Second
	socketPingInterval    = 20 * time.Second
	socketSendBuffer      = 64
)

// notification is a JSON-RPC 2.0 notification (no id) used for broadcast
// events the socket transport pushes unsolicited: connection.established,
// console.log, tool.registered, tool.unregistered.
type notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// SocketServer exposes the dispatcher over a websocket at /mcp and
// broadcasts capture/registry events to every connected client.
type SocketServer struct {
	dispatcher *registry.Dispatcher
	log        *slog.Logger
	upgrader   websocket.Upgrader

	mu    sync.Mutex
	conns map[*socketConn]struct{}
}

func NewSocketServer(dispatcher *registry.Dispatcher, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		dispatcher: dispatcher,
		log:        logger.With("component", "transport.socket"),
		conns:      make(map[*socketConn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the http.Handler to mount at /mcp.
func (s *SocketServer) Handler() http.Handler {
	return http.HandlerFunc(s.serveHTTP)
}

func (s *SocketServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sc := &socketConn{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, socketSendBuffer),
		ctx:    ctx,
		cancel: cancel,
	}

	s.mu.Lock()
	s.conns[sc] = struct{}{}
	s.mu.Unlock()

	sc.enqueue(notification{JSONRPC: "2.0", Method: "connection.established", Params: map[string]string{"connection_id": sc.id}})

	go sc.writeLoop()
	s.readLoop(sc)

	s.mu.Lock()
	delete(s.conns, sc)
	s.mu.Unlock()
	sc.close()
}

// BroadcastNotification sends a JSON-RPC notification to every connected
// client, dropping it for any client whose send buffer is full rather than
// blocking the broadcaster.
func (s *SocketServer) BroadcastNotification(method string, params interface{}) {
	n := notification{JSONRPC: "2.0", Method: method, Params: params}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.enqueue(n)
	}
}

// ConnectionCount reports the number of currently connected clients.
func (s *SocketServer) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *SocketServer) readLoop(sc *socketConn) {
	sc.conn.SetReadLimit(socketMaxPayloadBytes)
	_ = sc.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	sc.conn.SetPongHandler(func(string) error {
		return sc.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		messageType, data, err := sc.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var req registry.Request
		if err := json.Unmarshal(data, &req); err != nil {
			resp := registry.ParseError()
			sc.enqueue(resp)
			continue
		}

		resp := s.dispatcher.Handle(sc.ctx, req)
		if resp == nil {
			continue
		}
		sc.enqueue(resp)
	}
}

type socketConn struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (sc *socketConn) enqueue(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case sc.send <- data:
	default:
		// send buffer full; drop rather than block the caller.
	}
}

func (sc *socketConn) writeLoop() {
	ticker := time.NewTicker(socketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sc.ctx.Done():
			return
		case msg, ok := <-sc.send:
			if !ok {
				return
			}
			_ = sc.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := sc.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sc.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := sc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (sc *socketConn) close() {
	sc.closeOnce.Do(func() {
		sc.cancel()
		close(sc.send)
		_ = sc.conn.Close()
	})
}
