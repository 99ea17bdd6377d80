package bridge

import (
	"context"
	"sync"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"go.uber.org/zap"
)

// DocumentSyncBridge mirrors the contents of matching editors to the server
type DocumentSyncBridge struct {
	ctx     context.Context
	conn    *lsp.Connection
	options protocol.TextDocumentSyncOptions
	filter  EditorFilter
	logger  *zap.Logger

	mu       sync.Mutex
	docs     map[editor.TextEditor]*syncedDocument
	observer editor.Disposable
	disposed bool
}

type syncedDocument struct {
	uri     string
	version int
	subs    editor.CompositeDisposable
}

// NewDocumentSyncBridge starts syncing every current and future editor in
// workspace that passes filter. ctx bounds the notifications it sends.
func NewDocumentSyncBridge(ctx context.Context, conn *lsp.Connection, workspace editor.Workspace, options protocol.TextDocumentSyncOptions, filter EditorFilter, logger *zap.Logger) *DocumentSyncBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &DocumentSyncBridge{
		ctx:     ctx,
		conn:    conn,
		options: options,
		filter:  filter,
		logger:  logger,
		docs:    make(map[editor.TextEditor]*syncedDocument),
	}
	if workspace != nil {
		b.observer = workspace.ObserveTextEditors(b.track)
	}
	return b
}

// Kind returns the change sync kind negotiated with the server
func (b *DocumentSyncBridge) Kind() protocol.TextDocumentSyncKind {
	return b.options.Change
}

// Version returns the last version sent for e, or 0 when e is not synced
func (b *DocumentSyncBridge) Version(e editor.TextEditor) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if doc, ok := b.docs[e]; ok {
		return doc.version
	}
	return 0
}

func (b *DocumentSyncBridge) track(e editor.TextEditor) {
	if e.Path() == "" || (b.filter != nil && !b.filter(e)) {
		return
	}

	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	if _, ok := b.docs[e]; ok {
		b.mu.Unlock()
		return
	}
	doc := &syncedDocument{uri: convert.PathToURI(e.Path()), version: 1}
	b.docs[e] = doc
	b.mu.Unlock()

	if b.options.OpenClose {
		b.notify("didOpen", b.conn.DidOpenTextDocument(b.ctx, &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{
				URI:        doc.uri,
				LanguageID: LanguageID(e.GrammarScope()),
				Version:    doc.version,
				Text:       e.Text(),
			},
		}))
	}

	doc.subs.Add(e.OnDidChangeText(func(changes []editor.TextChange) {
		b.changed(e, doc, changes)
	}))
	doc.subs.Add(e.OnDidSave(func() {
		if b.options.Save {
			b.notify("didSave", b.conn.DidSaveTextDocument(b.ctx, &protocol.DidSaveTextDocumentParams{
				TextDocument: protocol.TextDocumentIdentifier{URI: doc.uri},
			}))
		}
	}))
	doc.subs.Add(e.OnDidDestroy(func() {
		b.closed(e, doc)
	}))
}

func (b *DocumentSyncBridge) changed(e editor.TextEditor, doc *syncedDocument, changes []editor.TextChange) {
	var events []protocol.TextDocumentContentChangeEvent
	switch b.options.Change {
	case protocol.TextDocumentSyncKindFull:
		events = []protocol.TextDocumentContentChangeEvent{{Text: e.Text()}}
	case protocol.TextDocumentSyncKindIncremental:
		for _, c := range changes {
			r := convert.EditorRangeToRange(c.OldRange)
			events = append(events, protocol.TextDocumentContentChangeEvent{Range: &r, Text: c.NewText})
		}
	default:
		return
	}

	b.mu.Lock()
	doc.version++
	version := doc.version
	b.mu.Unlock()

	b.notify("didChange", b.conn.DidChangeTextDocument(b.ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument:   protocol.VersionedTextDocumentIdentifier{URI: doc.uri, Version: version},
		ContentChanges: events,
	}))
}

func (b *DocumentSyncBridge) closed(e editor.TextEditor, doc *syncedDocument) {
	b.mu.Lock()
	delete(b.docs, e)
	b.mu.Unlock()
	doc.subs.Dispose()

	if b.options.OpenClose {
		b.notify("didClose", b.conn.DidCloseTextDocument(b.ctx, &protocol.DidCloseTextDocumentParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: doc.uri},
		}))
	}
}

func (b *DocumentSyncBridge) notify(what string, err error) {
	if err != nil {
		b.logger.Error("failed to sync document", zap.String("notification", what), zap.Error(err))
	}
}

// Dispose stops syncing. Documents stay open on the server until it shuts down.
func (b *DocumentSyncBridge) Dispose() {
	b.mu.Lock()
	b.disposed = true
	docs := b.docs
	b.docs = make(map[editor.TextEditor]*syncedDocument)
	observer := b.observer
	b.mu.Unlock()

	if observer != nil {
		observer.Dispose()
	}
	for _, doc := range docs {
		doc.subs.Dispose()
	}
}
