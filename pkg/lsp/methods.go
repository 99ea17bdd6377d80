package lsp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// Initialize performs the initialize handshake
func (c *Connection) Initialize(ctx context.Context, params *protocol.InitializeParams) (*protocol.InitializeResult, error) {
	var result protocol.InitializeResult
	if err := c.sendRequest(ctx, protocol.MethodInitialize, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Shutdown asks the server to shut down without exiting
func (c *Connection) Shutdown(ctx context.Context) error {
	return c.sendRequest(ctx, protocol.MethodShutdown, nil, nil)
}

// Completion requests completions. A bare item array is wrapped into a
// complete CompletionList.
func (c *Connection) Completion(ctx context.Context, params *protocol.CompletionParams) (*protocol.CompletionList, error) {
	var raw json.RawMessage
	if err := c.sendRequest(ctx, protocol.MethodCompletion, params, &raw); err != nil {
		return nil, err
	}

	list := &protocol.CompletionList{}
	switch firstByte(raw) {
	case '[':
		if err := json.Unmarshal(raw, &list.Items); err != nil {
			return nil, fmt.Errorf("%s: %w", protocol.MethodCompletion, err)
		}
	case '{':
		if err := json.Unmarshal(raw, list); err != nil {
			return nil, fmt.Errorf("%s: %w", protocol.MethodCompletion, err)
		}
	}
	return list, nil
}

// CompletionItemResolve fills in the details of a completion item
func (c *Connection) CompletionItemResolve(ctx context.Context, item *protocol.CompletionItem) (*protocol.CompletionItem, error) {
	var result protocol.CompletionItem
	if err := c.sendRequest(ctx, protocol.MethodCompletionItemResolve, item, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Hover requests hover information. It returns nil when the server has none.
func (c *Connection) Hover(ctx context.Context, params *protocol.TextDocumentPositionParams) (*protocol.Hover, error) {
	var result *protocol.Hover
	if err := c.sendRequest(ctx, protocol.MethodHover, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// SignatureHelp requests signature information
func (c *Connection) SignatureHelp(ctx context.Context, params *protocol.TextDocumentPositionParams) (*protocol.SignatureHelp, error) {
	var result *protocol.SignatureHelp
	if err := c.sendRequest(ctx, protocol.MethodSignatureHelp, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// GotoDefinition requests definition locations. A single Location result is
// returned as a one-element slice and null as an empty one.
func (c *Connection) GotoDefinition(ctx context.Context, params *protocol.TextDocumentPositionParams) ([]protocol.Location, error) {
	var raw json.RawMessage
	if err := c.sendRequest(ctx, protocol.MethodDefinition, params, &raw); err != nil {
		return nil, err
	}
	locations, err := normalizeLocations(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.MethodDefinition, err)
	}
	return locations, nil
}

// FindReferences requests every reference to the symbol at a position
func (c *Connection) FindReferences(ctx context.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	var result []protocol.Location
	if err := c.sendRequest(ctx, protocol.MethodReferences, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentHighlight requests highlights for the symbol at a position
func (c *Connection) DocumentHighlight(ctx context.Context, params *protocol.TextDocumentPositionParams) ([]protocol.DocumentHighlight, error) {
	var result []protocol.DocumentHighlight
	if err := c.sendRequest(ctx, protocol.MethodDocumentHighlight, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentSymbol requests the symbols of one document
func (c *Connection) DocumentSymbol(ctx context.Context, params *protocol.DocumentSymbolParams) ([]protocol.SymbolInformation, error) {
	var result []protocol.SymbolInformation
	if err := c.sendRequest(ctx, protocol.MethodDocumentSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// WorkspaceSymbol searches symbols across the workspace
func (c *Connection) WorkspaceSymbol(ctx context.Context, params *protocol.WorkspaceSymbolParams) ([]protocol.SymbolInformation, error) {
	var result []protocol.SymbolInformation
	if err := c.sendRequest(ctx, protocol.MethodWorkspaceSymbol, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CodeAction requests the commands applicable to a range
func (c *Connection) CodeAction(ctx context.Context, params *protocol.CodeActionParams) ([]protocol.Command, error) {
	var result []protocol.Command
	if err := c.sendRequest(ctx, protocol.MethodCodeAction, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CodeLens requests the code lenses of a document
func (c *Connection) CodeLens(ctx context.Context, params *protocol.CodeLensParams) ([]protocol.CodeLens, error) {
	var result []protocol.CodeLens
	if err := c.sendRequest(ctx, protocol.MethodCodeLens, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CodeLensResolve resolves the command of a code lens
func (c *Connection) CodeLensResolve(ctx context.Context, lens *protocol.CodeLens) (*protocol.CodeLens, error) {
	var result protocol.CodeLens
	if err := c.sendRequest(ctx, protocol.MethodCodeLensResolve, lens, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DocumentLink requests the links of a document
func (c *Connection) DocumentLink(ctx context.Context, params *protocol.DocumentLinkParams) ([]protocol.DocumentLink, error) {
	var result []protocol.DocumentLink
	if err := c.sendRequest(ctx, protocol.MethodDocumentLink, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentLinkResolve resolves the target of a document link
func (c *Connection) DocumentLinkResolve(ctx context.Context, link *protocol.DocumentLink) (*protocol.DocumentLink, error) {
	var result protocol.DocumentLink
	if err := c.sendRequest(ctx, protocol.MethodDocumentLinkResolve, link, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DocumentFormatting requests edits that format a whole document
func (c *Connection) DocumentFormatting(ctx context.Context, params *protocol.DocumentFormattingParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := c.sendRequest(ctx, protocol.MethodFormatting, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentRangeFormatting requests edits that format a range
func (c *Connection) DocumentRangeFormatting(ctx context.Context, params *protocol.DocumentRangeFormattingParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := c.sendRequest(ctx, protocol.MethodRangeFormatting, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DocumentOnTypeFormatting requests edits after a character was typed
func (c *Connection) DocumentOnTypeFormatting(ctx context.Context, params *protocol.DocumentOnTypeFormattingParams) ([]protocol.TextEdit, error) {
	var result []protocol.TextEdit
	if err := c.sendRequest(ctx, protocol.MethodOnTypeFormatting, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Rename requests the workspace edit that renames a symbol
func (c *Connection) Rename(ctx context.Context, params *protocol.RenameParams) (*protocol.WorkspaceEdit, error) {
	var result *protocol.WorkspaceEdit
	if err := c.sendRequest(ctx, protocol.MethodRename, params, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Initialized tells the server the client finished processing initialize
func (c *Connection) Initialized(ctx context.Context) error {
	return c.sendNotification(ctx, protocol.MethodInitialized, protocol.InitializedParams{})
}

// Exit asks the server process to exit
func (c *Connection) Exit(ctx context.Context) error {
	return c.sendNotification(ctx, protocol.MethodExit, nil)
}

// DidChangeConfiguration sends workspace/didChangeConfiguration
func (c *Connection) DidChangeConfiguration(ctx context.Context, params *protocol.DidChangeConfigurationParams) error {
	return c.sendNotification(ctx, protocol.MethodDidChangeConfiguration, params)
}

// DidOpenTextDocument tells the server a document was opened
func (c *Connection) DidOpenTextDocument(ctx context.Context, params *protocol.DidOpenTextDocumentParams) error {
	return c.sendNotification(ctx, protocol.MethodDidOpenTextDocument, params)
}

// DidChangeTextDocument sends the changes made to an open document
func (c *Connection) DidChangeTextDocument(ctx context.Context, params *protocol.DidChangeTextDocumentParams) error {
	return c.sendNotification(ctx, protocol.MethodDidChangeTextDocument, params)
}

// DidCloseTextDocument tells the server a document was closed
func (c *Connection) DidCloseTextDocument(ctx context.Context, params *protocol.DidCloseTextDocumentParams) error {
	return c.sendNotification(ctx, protocol.MethodDidCloseTextDocument, params)
}

// DidSaveTextDocument tells the server a document was saved
func (c *Connection) DidSaveTextDocument(ctx context.Context, params *protocol.DidSaveTextDocumentParams) error {
	return c.sendNotification(ctx, protocol.MethodDidSaveTextDocument, params)
}

// DidChangeWatchedFiles reports file system changes in the workspace
func (c *Connection) DidChangeWatchedFiles(ctx context.Context, params *protocol.DidChangeWatchedFilesParams) error {
	return c.sendNotification(ctx, protocol.MethodDidChangeWatchedFiles, params)
}

// OnCustom registers a handler for an arbitrary server notification
func (c *Connection) OnCustom(method string, fn func(params json.RawMessage)) {
	c.onNotification(method, func(_ context.Context, params json.RawMessage) {
		fn(params)
	})
}

// OnExit registers a handler for the exit notification
func (c *Connection) OnExit(fn func()) {
	c.onNotification(protocol.MethodExit, func(context.Context, json.RawMessage) {
		fn()
	})
}

// OnShowMessage registers a handler for window/showMessage
func (c *Connection) OnShowMessage(fn func(protocol.ShowMessageParams)) {
	c.onNotification(protocol.MethodShowMessage, func(_ context.Context, params json.RawMessage) {
		if v, err := decode[protocol.ShowMessageParams](protocol.MethodShowMessage, params, c.logger); err == nil {
			fn(v)
		}
	})
}

// OnLogMessage registers a handler for window/logMessage
func (c *Connection) OnLogMessage(fn func(protocol.LogMessageParams)) {
	c.onNotification(protocol.MethodLogMessage, func(_ context.Context, params json.RawMessage) {
		if v, err := decode[protocol.LogMessageParams](protocol.MethodLogMessage, params, c.logger); err == nil {
			fn(v)
		}
	})
}

// OnTelemetryEvent registers a handler for telemetry/event. The payload is
// server-defined and passed through undecoded.
func (c *Connection) OnTelemetryEvent(fn func(json.RawMessage)) {
	c.onNotification(protocol.MethodTelemetryEvent, func(_ context.Context, params json.RawMessage) {
		fn(params)
	})
}

// OnPublishDiagnostics registers a handler for textDocument/publishDiagnostics
func (c *Connection) OnPublishDiagnostics(fn func(protocol.PublishDiagnosticsParams)) {
	c.onNotification(protocol.MethodPublishDiagnostics, func(_ context.Context, params json.RawMessage) {
		if v, err := decode[protocol.PublishDiagnosticsParams](protocol.MethodPublishDiagnostics, params, c.logger); err == nil {
			fn(v)
		}
	})
}

// OnShowMessageRequest registers the handler that answers
// window/showMessageRequest. A nil action means the user dismissed the message.
func (c *Connection) OnShowMessageRequest(fn func(ctx context.Context, params protocol.ShowMessageRequestParams) (*protocol.MessageActionItem, error)) {
	c.onRequest(protocol.MethodShowMessageRequest, func(ctx context.Context, params json.RawMessage) (any, error) {
		v, err := decode[protocol.ShowMessageRequestParams](protocol.MethodShowMessageRequest, params, c.logger)
		if err != nil {
			return nil, invalidParams(err)
		}
		return fn(ctx, v)
	})
}

func normalizeLocations(raw json.RawMessage) ([]protocol.Location, error) {
	switch firstByte(raw) {
	case '[':
		var locations []protocol.Location
		if err := json.Unmarshal(raw, &locations); err != nil {
			return nil, err
		}
		return locations, nil
	case '{':
		var location protocol.Location
		if err := json.Unmarshal(raw, &location); err != nil {
			return nil, err
		}
		return []protocol.Location{location}, nil
	default:
		return nil, nil
	}
}

func firstByte(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}
