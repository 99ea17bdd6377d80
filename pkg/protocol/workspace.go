package protocol

// Method names understood by the client.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "initialized"
	MethodShutdown    = "shutdown"
	MethodExit        = "exit"

	MethodCompletion             = "textDocument/completion"
	MethodCompletionItemResolve  = "completionItem/resolve"
	MethodHover                  = "textDocument/hover"
	MethodSignatureHelp          = "textDocument/signatureHelp"
	MethodDefinition             = "textDocument/definition"
	MethodReferences             = "textDocument/references"
	MethodDocumentHighlight      = "textDocument/documentHighlight"
	MethodDocumentSymbol         = "textDocument/documentSymbol"
	MethodWorkspaceSymbol        = "workspace/symbol"
	MethodCodeAction             = "textDocument/codeAction"
	MethodCodeLens               = "textDocument/codeLens"
	MethodCodeLensResolve        = "codeLens/resolve"
	MethodDocumentLink           = "textDocument/documentLink"
	MethodDocumentLinkResolve    = "documentLink/resolve"
	MethodFormatting             = "textDocument/formatting"
	MethodRangeFormatting        = "textDocument/rangeFormatting"
	MethodOnTypeFormatting       = "textDocument/onTypeFormatting"
	MethodRename                 = "textDocument/rename"
	MethodDidChangeConfiguration = "workspace/didChangeConfiguration"
	MethodDidOpenTextDocument    = "textDocument/didOpen"
	MethodDidChangeTextDocument  = "textDocument/didChange"
	MethodDidCloseTextDocument   = "textDocument/didClose"
	MethodDidSaveTextDocument    = "textDocument/didSave"
	MethodDidChangeWatchedFiles  = "workspace/didChangeWatchedFiles"
	MethodShowMessage            = "window/showMessage"
	MethodShowMessageRequest     = "window/showMessageRequest"
	MethodLogMessage             = "window/logMessage"
	MethodTelemetryEvent         = "telemetry/event"
	MethodPublishDiagnostics     = "textDocument/publishDiagnostics"
)

// DidChangeConfigurationParams is the payload of workspace/didChangeConfiguration
type DidChangeConfigurationParams struct {
	Settings any `json:"settings"`
}

// DidOpenTextDocumentParams is the payload of textDocument/didOpen
type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

// TextDocumentContentChangeEvent describes one change to a document. A nil Range
// means Text replaces the whole document.
type TextDocumentContentChangeEvent struct {
	Range       *Range `json:"range,omitempty"`
	RangeLength *int   `json:"rangeLength,omitempty"`
	Text        string `json:"text"`
}

// DidChangeTextDocumentParams is the payload of textDocument/didChange
type DidChangeTextDocumentParams struct {
	TextDocument   VersionedTextDocumentIdentifier  `json:"textDocument"`
	ContentChanges []TextDocumentContentChangeEvent `json:"contentChanges"`
}

// DidCloseTextDocumentParams is the payload of textDocument/didClose
type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

// DidSaveTextDocumentParams is the payload of textDocument/didSave
type DidSaveTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Text         *string                `json:"text,omitempty"`
}

// FileChangeType is the kind of a file event
type FileChangeType int

const (
	FileChangeTypeCreated FileChangeType = 1
	FileChangeTypeChanged FileChangeType = 2
	FileChangeTypeDeleted FileChangeType = 3
)

// FileEvent describes one watched file change
type FileEvent struct {
	URI  string         `json:"uri"`
	Type FileChangeType `json:"type"`
}

// DidChangeWatchedFilesParams is the payload of workspace/didChangeWatchedFiles
type DidChangeWatchedFilesParams struct {
	Changes []FileEvent `json:"changes"`
}

// MessageType is the severity of a window message
type MessageType int

const (
	MessageTypeError   MessageType = 1
	MessageTypeWarning MessageType = 2
	MessageTypeInfo    MessageType = 3
	MessageTypeLog     MessageType = 4
)

// ShowMessageParams is the payload of window/showMessage
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}

// MessageActionItem is one of the choices offered by window/showMessageRequest
type MessageActionItem struct {
	Title string `json:"title"`
}

// ShowMessageRequestParams is the payload of window/showMessageRequest
type ShowMessageRequestParams struct {
	Type    MessageType         `json:"type"`
	Message string              `json:"message"`
	Actions []MessageActionItem `json:"actions,omitempty"`
}

// LogMessageParams is the payload of window/logMessage
type LogMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}
