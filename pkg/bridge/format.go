package bridge

import (
	"context"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"go.uber.org/zap"
)

// FormatDocumentBridge formats whole documents with textDocument/formatting
type FormatDocumentBridge struct {
	conn   *lsp.Connection
	logger *zap.Logger
}

func NewFormatDocumentBridge(conn *lsp.Connection, logger *zap.Logger) *FormatDocumentBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormatDocumentBridge{conn: conn, logger: logger}
}

// Format formats the document open in e
func (b *FormatDocumentBridge) Format(ctx context.Context, e editor.TextEditor) error {
	edits, err := b.conn.DocumentFormatting(ctx, &protocol.DocumentFormattingParams{
		TextDocument: convert.EditorToTextDocumentIdentifier(e),
		Options:      formattingOptions(e),
	})
	if err != nil {
		return err
	}
	b.logger.Debug("applying formatting edits", zap.String("path", e.Path()), zap.Int("edits", len(edits)))
	ApplyTextEdits(e, edits)
	return nil
}

// Register binds the bridge to the "<name>:format-document" command, acting on
// the active editor when it passes filter
func (b *FormatDocumentBridge) Register(commands editor.Commands, workspace editor.Workspace, name string, filter EditorFilter) editor.Disposable {
	return commands.Add(name+":format-document", func(ctx context.Context) error {
		e := activeEditor(workspace, filter)
		if e == nil {
			return nil
		}
		return b.Format(ctx, e)
	})
}

// FormatRangeBridge formats ranges with textDocument/rangeFormatting
type FormatRangeBridge struct {
	conn   *lsp.Connection
	logger *zap.Logger
}

func NewFormatRangeBridge(conn *lsp.Connection, logger *zap.Logger) *FormatRangeBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FormatRangeBridge{conn: conn, logger: logger}
}

// Format formats r in the document open in e
func (b *FormatRangeBridge) Format(ctx context.Context, e editor.TextEditor, r editor.Range) error {
	edits, err := b.conn.DocumentRangeFormatting(ctx, &protocol.DocumentRangeFormattingParams{
		TextDocument: convert.EditorToTextDocumentIdentifier(e),
		Range:        convert.EditorRangeToRange(r),
		Options:      formattingOptions(e),
	})
	if err != nil {
		return err
	}
	b.logger.Debug("applying range formatting edits", zap.String("path", e.Path()), zap.Int("edits", len(edits)))
	ApplyTextEdits(e, edits)
	return nil
}

// Register binds the bridge to the "<name>:format-selection" command, which
// formats the active editor's selection
func (b *FormatRangeBridge) Register(commands editor.Commands, workspace editor.Workspace, name string, filter EditorFilter) editor.Disposable {
	return commands.Add(name+":format-selection", func(ctx context.Context) error {
		e := activeEditor(workspace, filter)
		if e == nil {
			return nil
		}
		return b.Format(ctx, e, e.SelectedRange())
	})
}

func formattingOptions(e editor.TextEditor) protocol.FormattingOptions {
	return protocol.FormattingOptions{TabSize: e.TabLength(), InsertSpaces: e.SoftTabs()}
}

func activeEditor(workspace editor.Workspace, filter EditorFilter) editor.TextEditor {
	if workspace == nil {
		return nil
	}
	e := workspace.ActiveTextEditor()
	if e == nil || (filter != nil && !filter(e)) {
		return nil
	}
	return e
}
