package protocol

import (
	"bytes"
	"encoding/json"
)

// InitializeParams represents the parameters for the LSP initialize request
type InitializeParams struct {
	ProcessID             int                `json:"processId"`
	RootPath              *string            `json:"rootPath"`
	RootURI               *string            `json:"rootUri"`
	InitializationOptions any                `json:"initializationOptions,omitempty"`
	Capabilities          ClientCapabilities `json:"capabilities"`
	Trace                 string             `json:"trace,omitempty"`
}

// ClientCapabilities is sent empty: the client advertises only what LSP v2 assumes.
type ClientCapabilities struct{}

// InitializeResult is the response to initialize
type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
}

// InitializeError is the data attached to a failed initialize response
type InitializeError struct {
	Retry bool `json:"retry"`
}

// InitializedParams is the (empty) payload of the initialized notification
type InitializedParams struct{}

// ServerCapabilities describes what a server implements. It is received once per
// session and never changes afterwards.
type ServerCapabilities struct {
	TextDocumentSync                 *TextDocumentSyncOptions         `json:"textDocumentSync,omitempty"`
	HoverProvider                    Flag                             `json:"hoverProvider,omitempty"`
	CompletionProvider               *CompletionOptions               `json:"completionProvider,omitempty"`
	SignatureHelpProvider            *SignatureHelpOptions            `json:"signatureHelpProvider,omitempty"`
	DefinitionProvider               Flag                             `json:"definitionProvider,omitempty"`
	ReferencesProvider               Flag                             `json:"referencesProvider,omitempty"`
	DocumentHighlightProvider        Flag                             `json:"documentHighlightProvider,omitempty"`
	DocumentSymbolProvider           Flag                             `json:"documentSymbolProvider,omitempty"`
	WorkspaceSymbolProvider          Flag                             `json:"workspaceSymbolProvider,omitempty"`
	CodeActionProvider               Flag                             `json:"codeActionProvider,omitempty"`
	CodeLensProvider                 *CodeLensOptions                 `json:"codeLensProvider,omitempty"`
	DocumentFormattingProvider       Flag                             `json:"documentFormattingProvider,omitempty"`
	DocumentRangeFormattingProvider  Flag                             `json:"documentRangeFormattingProvider,omitempty"`
	DocumentOnTypeFormattingProvider *DocumentOnTypeFormattingOptions `json:"documentOnTypeFormattingProvider,omitempty"`
	RenameProvider                   Flag                             `json:"renameProvider,omitempty"`
	DocumentLinkProvider             *DocumentLinkOptions             `json:"documentLinkProvider,omitempty"`
}

// TextDocumentSyncKind defines how the host editor syncs document changes
type TextDocumentSyncKind int

const (
	TextDocumentSyncKindNone        TextDocumentSyncKind = 0
	TextDocumentSyncKindFull        TextDocumentSyncKind = 1
	TextDocumentSyncKindIncremental TextDocumentSyncKind = 2
)

// TextDocumentSyncOptions is the object form of the textDocumentSync capability.
// LSP v2 servers send a bare TextDocumentSyncKind number instead, which decodes
// into Change with OpenClose and Save enabled unless the kind is None.
type TextDocumentSyncOptions struct {
	OpenClose bool                 `json:"openClose,omitempty"`
	Change    TextDocumentSyncKind `json:"change"`
	Save      Flag                 `json:"save,omitempty"`
}

// Enabled reports whether documents should be synced at all
func (o *TextDocumentSyncOptions) Enabled() bool {
	return o != nil && (o.OpenClose || o.Change != TextDocumentSyncKindNone)
}

// UnmarshalJSON implements json.Unmarshaler
func (o *TextDocumentSyncOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '{' {
		var kind TextDocumentSyncKind
		if err := json.Unmarshal(data, &kind); err != nil {
			return err
		}
		sync := kind != TextDocumentSyncKindNone
		*o = TextDocumentSyncOptions{OpenClose: sync, Change: kind, Save: Flag(sync)}
		return nil
	}

	type plain TextDocumentSyncOptions
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = TextDocumentSyncOptions(p)
	return nil
}

// CompletionOptions are the server's completion options
type CompletionOptions struct {
	ResolveProvider   bool     `json:"resolveProvider,omitempty"`
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// SignatureHelpOptions are the server's signature help options
type SignatureHelpOptions struct {
	TriggerCharacters []string `json:"triggerCharacters,omitempty"`
}

// CodeLensOptions are the server's code lens options
type CodeLensOptions struct {
	ResolveProvider bool `json:"resolveProvider,omitempty"`
}

// DocumentOnTypeFormattingOptions are the server's on-type formatting options
type DocumentOnTypeFormattingOptions struct {
	FirstTriggerCharacter string   `json:"firstTriggerCharacter"`
	MoreTriggerCharacter  []string `json:"moreTriggerCharacter,omitempty"`
}

// DocumentLinkOptions are the server's document link options
type DocumentLinkOptions struct {
	ResolveProvider bool `json:"resolveProvider,omitempty"`
}
