// Package lsp is a typed Language Server Protocol client over a JSON-RPC 2.0
// stream. Every request and notification funnels through one primitive that
// owns logging, timing and error wrapping.
package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/jsonrpc2"
	"go.uber.org/zap"
)

// ErrDisposed is returned by every call made after Dispose
var ErrDisposed = errors.New("lsp: connection disposed")

// NotificationHandler handles one inbound notification. It runs on the
// connection's read loop, so it must not issue requests on the same connection.
type NotificationHandler func(ctx context.Context, params json.RawMessage)

// RequestHandler answers one inbound request
type RequestHandler func(ctx context.Context, params json.RawMessage) (any, error)

// Connection is a typed client for a single language server
type Connection struct {
	conn    *jsonrpc2.Conn
	logger  *zap.Logger
	timeout time.Duration

	mu            sync.RWMutex
	notifications map[string]NotificationHandler
	requests      map[string]RequestHandler
	disposed      bool
}

// Option configures a Connection
type Option func(*Connection)

// WithRequestTimeout bounds every request. Zero disables the timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Connection) {
		c.timeout = d
	}
}

// NewConnection starts a client on stream. Handlers registered later with the
// On* methods take effect for messages read after registration; messages
// without a handler are logged.
func NewConnection(ctx context.Context, stream jsonrpc2.ObjectStream, logger *zap.Logger, opts ...Option) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connection{
		logger:        logger,
		notifications: make(map[string]NotificationHandler),
		requests:      make(map[string]RequestHandler),
	}
	for _, opt := range opts {
		opt(c)
	}

	// jsonrpc2.NewConn starts reading immediately, so the handler tables and the
	// stream observer must exist first.
	observed := observedStream{ObjectStream: stream, logger: logger}
	c.conn = jsonrpc2.NewConn(ctx, observed, jsonrpc2.HandlerWithError(c.handle).SuppressErrClosed())

	return c
}

// DisconnectNotify is closed when the underlying stream is closed
func (c *Connection) DisconnectNotify() <-chan struct{} {
	return c.conn.DisconnectNotify()
}

// Dispose closes the transport. Later calls fail with ErrDisposed.
func (c *Connection) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	c.logger.Debug("disposing connection")
	if err := c.conn.Close(); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (c *Connection) isDisposed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disposed
}

func (c *Connection) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	var params json.RawMessage
	if req.Params != nil {
		params = *req.Params
	}

	if req.Notif {
		c.logger.Debug("received notification",
			zap.String("method", req.Method),
			zap.ByteString("params", params),
		)

		c.mu.RLock()
		h, ok := c.notifications[req.Method]
		c.mu.RUnlock()
		if !ok {
			fields := []zap.Field{zap.String("method", req.Method)}
			if len(params) > 0 {
				fields = append(fields, zap.ByteString("params", params))
			}
			c.logger.Warn("unhandled notification", fields...)
			return nil, nil
		}
		h(ctx, params)
		return nil, nil
	}

	c.mu.RLock()
	h, ok := c.requests[req.Method]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("unhandled request",
			zap.String("method", req.Method),
			zap.String("id", req.ID.String()),
		)
		return nil, &jsonrpc2.Error{
			Code:    jsonrpc2.CodeMethodNotFound,
			Message: fmt.Sprintf("method not supported: %s", req.Method),
		}
	}
	return h(ctx, params)
}

// onNotification registers fn for method, replacing any earlier handler
func (c *Connection) onNotification(method string, fn NotificationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications[method] = func(ctx context.Context, params json.RawMessage) {
		c.logger.Debug("dispatching notification",
			zap.String("method", method),
			zap.ByteString("value", params),
		)
		fn(ctx, params)
	}
}

// onRequest registers fn to answer method, replacing any earlier handler
func (c *Connection) onRequest(method string, fn RequestHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests[method] = func(ctx context.Context, params json.RawMessage) (any, error) {
		c.logger.Debug("dispatching request",
			zap.String("method", method),
			zap.ByteString("value", params),
		)
		return fn(ctx, params)
	}
}

// sendRequest performs one request and decodes its result into result. Errors
// are logged and returned wrapped with the method name.
func (c *Connection) sendRequest(ctx context.Context, method string, params, result any) error {
	if c.isDisposed() {
		return fmt.Errorf("%s: %w", method, ErrDisposed)
	}

	c.logger.Debug("sending request",
		zap.String("method", method),
		zap.Any("params", params),
	)

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.conn.Call(ctx, method, params, result)
	elapsed := time.Since(start)
	if err != nil {
		c.logger.Error("request failed",
			zap.String("method", method),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return fmt.Errorf("%s: %w", method, err)
	}

	c.logger.Debug("received response",
		zap.String("method", method),
		zap.Duration("elapsed", elapsed),
		zap.Any("result", result),
	)
	return nil
}

// sendNotification sends a notification. Only local transport failures are
// reported.
func (c *Connection) sendNotification(ctx context.Context, method string, params any) error {
	if c.isDisposed() {
		return fmt.Errorf("%s: %w", method, ErrDisposed)
	}

	c.logger.Debug("sending notification",
		zap.String("method", method),
		zap.Any("params", params),
	)
	if err := c.conn.Notify(ctx, method, params); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

func decode[T any](method string, params json.RawMessage, logger *zap.Logger) (T, error) {
	var v T
	if len(params) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(params, &v); err != nil {
		logger.Error("failed to decode params",
			zap.String("method", method),
			zap.ByteString("params", params),
			zap.Error(err),
		)
		return v, err
	}
	return v, nil
}

func invalidParams(err error) *jsonrpc2.Error {
	return &jsonrpc2.Error{Code: jsonrpc2.CodeInvalidParams, Message: err.Error()}
}
