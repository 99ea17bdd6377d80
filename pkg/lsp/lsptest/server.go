// Package lsptest provides an in-process fake language server for tests. It
// speaks real JSON-RPC over a net.Pipe, so clients exercise their full
// framing and dispatch path.
package lsptest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/require"
)

// Handler answers one request sent by the client. For notifications it is
// called for its side effects and its result is dropped.
type Handler func(params json.RawMessage) (any, error)

// Call is one message received from the client
type Call struct {
	Method string
	Params json.RawMessage
	Notif  bool
}

// Decode unmarshals the call's params into v
func (c Call) Decode(v any) error {
	return json.Unmarshal(c.Params, v)
}

// Server is the server end of a pipe
type Server struct {
	conn   *jsonrpc2.Conn
	client net.Conn

	mu       sync.Mutex
	handlers map[string]Handler
	calls    []Call
}

// NewServer starts a fake server. It answers shutdown with null and every
// other unregistered request with MethodNotFound. It is closed when the test
// ends.
func NewServer(t testing.TB) *Server {
	serverSide, clientSide := net.Pipe()

	s := &Server{
		client:   clientSide,
		handlers: make(map[string]Handler),
	}
	s.Handle("shutdown", func(json.RawMessage) (any, error) { return nil, nil })

	stream := jsonrpc2.NewBufferedStream(serverSide, jsonrpc2.VSCodeObjectCodec{})
	s.conn = jsonrpc2.NewConn(context.Background(), stream, jsonrpc2.HandlerWithError(s.handle).SuppressErrClosed())

	t.Cleanup(s.Close)
	return s
}

// Conn returns the client end of the pipe
func (s *Server) Conn() net.Conn {
	return s.client
}

// ClientStream returns a framed stream over the client end of the pipe
func (s *Server) ClientStream() jsonrpc2.ObjectStream {
	return jsonrpc2.NewBufferedStream(s.client, jsonrpc2.VSCodeObjectCodec{})
}

// Handle registers h for method. It runs on the server's read loop.
func (s *Server) Handle(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = h
}

// Respond answers every request for method with result
func (s *Server) Respond(method string, result any) {
	s.Handle(method, func(json.RawMessage) (any, error) { return result, nil })
}

// Fail answers every request for method with a JSON-RPC error
func (s *Server) Fail(method string, code int64, message string) {
	s.Handle(method, func(json.RawMessage) (any, error) {
		return nil, &jsonrpc2.Error{Code: code, Message: message}
	})
}

// Capabilities answers initialize with the given capabilities object
func (s *Server) Capabilities(caps any) {
	s.Respond("initialize", map[string]any{"capabilities": caps})
}

// Calls returns every message received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the messages received for method
func (s *Server) CallsTo(method string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

// Methods returns the methods received so far, in order
func (s *Server) Methods() []string {
	calls := s.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

// Await waits until at least n messages for method have arrived
func (s *Server) Await(t testing.TB, method string, n int) []Call {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.CallsTo(method)) >= n
	}, 2*time.Second, 5*time.Millisecond, "waiting for %d %s", n, method)
	return s.CallsTo(method)
}

// Notify sends a notification to the client
func (s *Server) Notify(ctx context.Context, method string, params any) error {
	return s.conn.Notify(ctx, method, params)
}

// Call sends a request to the client and decodes the reply into result
func (s *Server) Call(ctx context.Context, method string, params, result any) error {
	return s.conn.Call(ctx, method, params, result)
}

// Close shuts down both ends of the pipe
func (s *Server) Close() {
	s.conn.Close()
	s.client.Close()
}

func (s *Server) handle(_ context.Context, _ *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var params json.RawMessage
	if req.Params != nil {
		params = append(params, *req.Params...)
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Method: req.Method, Params: params, Notif: req.Notif})
	h, ok := s.handlers[req.Method]
	s.mu.Unlock()

	if req.Notif {
		if ok {
			h(params)
		}
		return nil, nil
	}
	if !ok {
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("fake server has no handler for %s", req.Method),
		}
	}
	return h(params)
}

// Process is a fake language-server process whose stdio is the client end of
// a Server's pipe
type Process struct {
	server *Server

	mu    sync.Mutex
	kills int
}

// NewProcess wraps s as a process
func NewProcess(s *Server) *Process {
	return &Process{server: s}
}

// Stdin returns the pipe for writing. Closing it is a no-op; Stdout owns the pipe.
func (p *Process) Stdin() io.WriteCloser {
	return nopCloser{p.server.client}
}

// Stdout returns the pipe for reading
func (p *Process) Stdout() io.ReadCloser {
	return p.server.client
}

// Pid returns a fixed fake pid
func (p *Process) Pid() int {
	return 4242
}

// Kill records the kill and closes the pipe
func (p *Process) Kill() error {
	p.mu.Lock()
	p.kills++
	p.mu.Unlock()
	p.server.client.Close()
	return nil
}

// Kills returns how many times Kill was called
func (p *Process) Kills() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.kills
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
