package lsp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/russellhaering/lspbridge/pkg/lsp/lsptest"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestConnection(t *testing.T, opts ...Option) (*Connection, *lsptest.Server, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	server := lsptest.NewServer(t)
	conn := NewConnection(context.Background(), server.ClientStream(), zap.New(core), opts...)
	t.Cleanup(func() { conn.Dispose() })
	return conn, server, logs
}

func positionParams(uri string, line, char int) *protocol.TextDocumentPositionParams {
	return &protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
		Position:     protocol.Position{Line: line, Character: char},
	}
}

func TestInitialize(t *testing.T) {
	conn, server, logs := newTestConnection(t)
	server.Capabilities(map[string]any{
		"completionProvider":     map[string]any{"resolveProvider": true},
		"documentSymbolProvider": true,
		"textDocumentSync":       2,
	})

	root := "file:///src"
	result, err := conn.Initialize(context.Background(), &protocol.InitializeParams{ProcessID: 7, RootURI: &root})
	require.NoError(t, err)

	caps := result.Capabilities
	require.NotNil(t, caps.CompletionProvider)
	assert.True(t, caps.CompletionProvider.ResolveProvider)
	assert.True(t, bool(caps.DocumentSymbolProvider))
	assert.False(t, bool(caps.DocumentFormattingProvider))
	require.NotNil(t, caps.TextDocumentSync)
	assert.Equal(t, protocol.TextDocumentSyncKindIncremental, caps.TextDocumentSync.Change)

	calls := server.CallsTo("initialize")
	require.Len(t, calls, 1)
	var sent protocol.InitializeParams
	require.NoError(t, calls[0].Decode(&sent))
	assert.Equal(t, 7, sent.ProcessID)
	require.NotNil(t, sent.RootURI)
	assert.Equal(t, root, *sent.RootURI)

	assert.NotEmpty(t, logs.FilterMessage("sending request").FilterField(zap.String("method", "initialize")).All())
	assert.NotEmpty(t, logs.FilterMessage("received response").All())
}

func TestRequestErrorsPropagate(t *testing.T) {
	conn, server, logs := newTestConnection(t)
	server.Fail("textDocument/formatting", jsonrpc2.CodeInternalError, "formatter crashed")

	edits, err := conn.DocumentFormatting(context.Background(), &protocol.DocumentFormattingParams{})
	require.Error(t, err)
	assert.Nil(t, edits)
	assert.Contains(t, err.Error(), "textDocument/formatting")

	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int64(jsonrpc2.CodeInternalError), rpcErr.Code)
	assert.Equal(t, "formatter crashed", rpcErr.Message)

	failures := logs.FilterMessage("request failed").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
}

func TestRequestTimeout(t *testing.T) {
	conn, server, _ := newTestConnection(t, WithRequestTimeout(50*time.Millisecond))

	release := make(chan struct{})
	defer close(release)
	server.Handle("textDocument/hover", func(json.RawMessage) (any, error) {
		<-release
		return nil, nil
	})

	_, err := conn.Hover(context.Background(), positionParams("file:///a.go", 0, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestCompletionNormalization(t *testing.T) {
	testCases := []struct {
		name       string
		response   any
		labels     []string
		incomplete bool
	}{
		{
			name:     "bare array",
			response: []map[string]any{{"label": "Println"}, {"label": "Printf"}},
			labels:   []string{"Println", "Printf"},
		},
		{
			name: "completion list",
			response: map[string]any{
				"isIncomplete": true,
				"items":        []map[string]any{{"label": "fmt"}},
			},
			labels:     []string{"fmt"},
			incomplete: true,
		},
		{
			name:     "null",
			response: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, server, _ := newTestConnection(t)
			server.Respond("textDocument/completion", tc.response)

			list, err := conn.Completion(context.Background(), &protocol.CompletionParams{
				TextDocumentPositionParams: *positionParams("file:///a.go", 1, 2),
			})
			require.NoError(t, err)
			require.NotNil(t, list)
			assert.Equal(t, tc.incomplete, list.IsIncomplete)

			var labels []string
			for _, item := range list.Items {
				labels = append(labels, item.Label)
			}
			assert.Equal(t, tc.labels, labels)
		})
	}
}

func TestGotoDefinitionNormalization(t *testing.T) {
	loc := map[string]any{
		"uri": "file:///b.go",
		"range": map[string]any{
			"start": map[string]any{"line": 3, "character": 1},
			"end":   map[string]any{"line": 3, "character": 5},
		},
	}
	want := protocol.Location{
		URI: "file:///b.go",
		Range: protocol.Range{
			Start: protocol.Position{Line: 3, Character: 1},
			End:   protocol.Position{Line: 3, Character: 5},
		},
	}

	testCases := []struct {
		name     string
		response any
		expected []protocol.Location
	}{
		{name: "single location", response: loc, expected: []protocol.Location{want}},
		{name: "array", response: []any{loc, loc}, expected: []protocol.Location{want, want}},
		{name: "null", response: nil, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, server, _ := newTestConnection(t)
			server.Respond("textDocument/definition", tc.response)

			locations, err := conn.GotoDefinition(context.Background(), positionParams("file:///a.go", 0, 0))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, locations)
		})
	}
}

func TestNotificationsReachServer(t *testing.T) {
	conn, server, _ := newTestConnection(t)
	ctx := context.Background()

	require.NoError(t, conn.DidOpenTextDocument(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.go", LanguageID: "go", Version: 1, Text: "package a"},
	}))
	require.NoError(t, conn.DidSaveTextDocument(ctx, &protocol.DidSaveTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.go"},
	}))
	require.NoError(t, conn.DidChangeWatchedFiles(ctx, &protocol.DidChangeWatchedFilesParams{
		Changes: []protocol.FileEvent{{URI: "file:///b.go", Type: protocol.FileChangeTypeCreated}},
	}))

	server.Await(t, "workspace/didChangeWatchedFiles", 1)
	assert.Equal(t, []string{
		"textDocument/didOpen",
		"textDocument/didSave",
		"workspace/didChangeWatchedFiles",
	}, server.Methods())

	var open protocol.DidOpenTextDocumentParams
	require.NoError(t, server.CallsTo("textDocument/didOpen")[0].Decode(&open))
	assert.Equal(t, "package a", open.TextDocument.Text)
	assert.True(t, server.Calls()[0].Notif)
}

func TestInboundNotifications(t *testing.T) {
	conn, server, logs := newTestConnection(t)
	ctx := context.Background()

	diagnostics := make(chan protocol.PublishDiagnosticsParams, 1)
	conn.OnPublishDiagnostics(func(p protocol.PublishDiagnosticsParams) {
		diagnostics <- p
	})
	messages := make(chan protocol.LogMessageParams, 1)
	conn.OnLogMessage(func(p protocol.LogMessageParams) {
		messages <- p
	})
	custom := make(chan json.RawMessage, 1)
	conn.OnCustom("$/progress", func(p json.RawMessage) {
		custom <- p
	})

	require.NoError(t, server.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         "file:///a.go",
		Diagnostics: []protocol.Diagnostic{{Message: "unused variable", Severity: protocol.DiagnosticSeverityWarning}},
	}))
	require.NoError(t, server.Notify(ctx, "window/logMessage", protocol.LogMessageParams{Type: protocol.MessageTypeInfo, Message: "ready"}))
	require.NoError(t, server.Notify(ctx, "$/progress", map[string]any{"token": 1}))
	require.NoError(t, server.Notify(ctx, "custom/unknown", map[string]any{"x": 1}))

	select {
	case p := <-diagnostics:
		assert.Equal(t, "file:///a.go", p.URI)
		require.Len(t, p.Diagnostics, 1)
		assert.Equal(t, "unused variable", p.Diagnostics[0].Message)
	case <-time.After(2 * time.Second):
		t.Fatal("publishDiagnostics not delivered")
	}

	select {
	case p := <-messages:
		assert.Equal(t, "ready", p.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("logMessage not delivered")
	}

	select {
	case p := <-custom:
		assert.JSONEq(t, `{"token":1}`, string(p))
	case <-time.After(2 * time.Second):
		t.Fatal("custom notification not delivered")
	}

	require.Eventually(t, func() bool {
		return logs.FilterMessage("unhandled notification").Len() == 1
	}, 2*time.Second, 5*time.Millisecond)
	warn := logs.FilterMessage("unhandled notification").All()[0]
	assert.Equal(t, zapcore.WarnLevel, warn.Level)
	assert.Equal(t, "custom/unknown", warn.ContextMap()["method"])

	assert.NotEmpty(t, logs.FilterMessage("dispatching notification").All())
}

func TestInboundRequests(t *testing.T) {
	conn, server, logs := newTestConnection(t)
	ctx := context.Background()

	var unknown json.RawMessage
	err := server.Call(ctx, "workspace/configuration", map[string]any{}, &unknown)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int64(jsonrpc2.CodeMethodNotFound), rpcErr.Code)
	assert.Equal(t, 1, logs.FilterMessage("unhandled request").Len())

	conn.OnShowMessageRequest(func(_ context.Context, p protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error) {
		return &p.Actions[len(p.Actions)-1], nil
	})

	var chosen protocol.MessageActionItem
	require.NoError(t, server.Call(ctx, "window/showMessageRequest", protocol.ShowMessageRequestParams{
		Type:    protocol.MessageTypeWarning,
		Message: "reload?",
		Actions: []protocol.MessageActionItem{{Title: "No"}, {Title: "Yes"}},
	}, &chosen))
	assert.Equal(t, "Yes", chosen.Title)

	// A request without params decodes to the zero value
	var got protocol.ShowMessageRequestParams
	conn.OnShowMessageRequest(func(_ context.Context, p protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error) {
		got = p
		return nil, nil
	})
	var dismissed *protocol.MessageActionItem
	require.NoError(t, server.Call(ctx, "window/showMessageRequest", nil, &dismissed))
	assert.Nil(t, dismissed)
	assert.Equal(t, protocol.ShowMessageRequestParams{}, got)

	err = server.Call(ctx, "window/showMessageRequest", json.RawMessage(`"not an object"`), &dismissed)
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int64(jsonrpc2.CodeInvalidParams), rpcErr.Code)
}

func TestDispose(t *testing.T) {
	conn, _, _ := newTestConnection(t)

	require.NoError(t, conn.Dispose())
	require.NoError(t, conn.Dispose())

	_, err := conn.Hover(context.Background(), positionParams("file:///a.go", 0, 0))
	assert.True(t, errors.Is(err, ErrDisposed))
	assert.True(t, errors.Is(conn.Exit(context.Background()), ErrDisposed))

	select {
	case <-conn.DisconnectNotify():
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed")
	}
}

func TestTransportErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := observedStream{ObjectStream: failingStream{err: errors.New("broken pipe")}, logger: zap.New(core)}

	assert.Error(t, s.ReadObject(nil))
	assert.Error(t, s.WriteObject(nil))
	assert.Equal(t, 2, logs.FilterMessage("transport error").Len())

	eof := observedStream{ObjectStream: failingStream{err: io.EOF}, logger: zap.New(core)}
	assert.ErrorIs(t, eof.ReadObject(nil), io.EOF)
	assert.Equal(t, 2, logs.FilterMessage("transport error").Len())
}

type failingStream struct {
	err error
}

func (f failingStream) WriteObject(any) error { return f.err }
func (f failingStream) ReadObject(any) error  { return f.err }
func (f failingStream) Close() error          { return nil }
