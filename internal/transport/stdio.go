// Package transport implements the two wire transports: a line-framed
// JSON-RPC reader/writer over stdio, and a websocket-framed control plane
// at /mcp that additionally broadcasts capture and registry notifications.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"browsernerd-mcp-server/internal/registry"
)

// StdioServer reads one JSON-RPC request per line from r and writes one
// JSON-RPC response per line to w, serialising writes so concurrent tool
// executions don't interleave output.
type StdioServer struct {
	dispatcher *registry.Dispatcher
	log        *slog.Logger

	writeMu sync.Mutex
}

func NewStdioServer(dispatcher *registry.Dispatcher, logger *slog.Logger) *StdioServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioServer{dispatcher: dispatcher, log: logger.With("component", "transport.stdio")}
}

// Serve blocks reading requests from r until r is exhausted, an
// unrecoverable read error occurs, or ctx is cancelled.
func (s *StdioServer) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req registry.Request
		if err := json.Unmarshal(line, &req); err != nil {
			resp := registry.ParseError()
			s.write(w, &resp)
			continue
		}

		resp := s.dispatcher.Handle(ctx, req)
		if resp == nil {
			continue
		}
		s.write(w, resp)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio scan: %w", err)
	}
	return nil
}

func (s *StdioServer) write(w io.Writer, resp *registry.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("failed to marshal response", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}
