package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"github.com/russellhaering/lspbridge/pkg/store"
	"go.uber.org/zap"
)

// DiagnosticStore holds the latest diagnostics per document URI. Get returns
// store.ErrNotFound for documents with none.
type DiagnosticStore interface {
	Put(uri string, diagnostics []protocol.Diagnostic) error
	Get(uri string) ([]protocol.Diagnostic, error)
	Delete(uri string) error
	ListPrefix(prefix string) (map[string][]protocol.Diagnostic, error)
}

// LintMessage is one diagnostic in editor coordinates
type LintMessage struct {
	Severity string
	FilePath string
	Range    editor.Range
	Text     string
	Source   string
}

// LinterBridge records textDocument/publishDiagnostics and serves lint results
type LinterBridge struct {
	store  DiagnosticStore
	logger *zap.Logger

	mu        sync.Mutex
	observers map[int]func(path string, messages []LintMessage)
	nextID    int
	disposed  bool
}

// NewLinterBridge subscribes to the connection's diagnostics. A nil store
// keeps diagnostics in memory.
func NewLinterBridge(conn *lsp.Connection, diagnostics DiagnosticStore, logger *zap.Logger) *LinterBridge {
	if diagnostics == nil {
		diagnostics = store.NewMemory()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &LinterBridge{
		store:     diagnostics,
		logger:    logger,
		observers: make(map[int]func(string, []LintMessage)),
	}
	conn.OnPublishDiagnostics(b.publish)
	return b
}

func (b *LinterBridge) publish(params protocol.PublishDiagnosticsParams) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	observers := make([]func(string, []LintMessage), 0, len(b.observers))
	for _, fn := range b.observers {
		observers = append(observers, fn)
	}
	b.mu.Unlock()

	var err error
	if len(params.Diagnostics) == 0 {
		err = b.store.Delete(params.URI)
	} else {
		err = b.store.Put(params.URI, params.Diagnostics)
	}
	if err != nil {
		b.logger.Error("failed to store diagnostics", zap.String("uri", params.URI), zap.Error(err))
		return
	}

	path := convert.URIToPath(params.URI)
	messages := diagnosticsToMessages(path, params.Diagnostics)
	for _, fn := range observers {
		fn(path, messages)
	}
}

// Lint returns the current diagnostics for the document open in e
func (b *LinterBridge) Lint(ctx context.Context, e editor.TextEditor) ([]LintMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	diagnostics, err := b.store.Get(convert.PathToURI(e.Path()))
	if errors.Is(err, store.ErrNotFound) {
		return []LintMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	return diagnosticsToMessages(e.Path(), diagnostics), nil
}

// LintProject returns the diagnostics of every document under the directory
// root, keyed by path
func (b *LinterBridge) LintProject(ctx context.Context, root string) (map[string][]LintMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := convert.PathToURI(root)
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	entries, err := b.store.ListPrefix(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]LintMessage, len(entries))
	for uri, diagnostics := range entries {
		path := convert.URIToPath(uri)
		out[path] = diagnosticsToMessages(path, diagnostics)
	}
	return out, nil
}

// OnDidUpdate calls fn whenever the server publishes diagnostics for a file
func (b *LinterBridge) OnDidUpdate(fn func(path string, messages []LintMessage)) editor.Disposable {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	return editor.DisposableFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.observers, id)
	})
}

// Dispose stops recording diagnostics and drops every observer
func (b *LinterBridge) Dispose() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposed = true
	b.observers = make(map[int]func(string, []LintMessage))
}

func diagnosticsToMessages(path string, diagnostics []protocol.Diagnostic) []LintMessage {
	messages := make([]LintMessage, 0, len(diagnostics))
	for _, d := range diagnostics {
		messages = append(messages, LintMessage{
			Severity: severityName(d.Severity),
			FilePath: path,
			Range:    convert.RangeToEditorRange(d.Range),
			Text:     d.Message,
			Source:   d.Source,
		})
	}
	return messages
}

func severityName(s protocol.DiagnosticSeverity) string {
	switch s {
	case protocol.DiagnosticSeverityError:
		return "Error"
	case protocol.DiagnosticSeverityWarning:
		return "Warning"
	case protocol.DiagnosticSeverityInformation, protocol.DiagnosticSeverityHint:
		return "Info"
	default:
		return "Error"
	}
}
