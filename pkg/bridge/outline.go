package bridge

import (
	"context"
	"sort"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// OutlineNode is one entry of an outline tree
type OutlineNode struct {
	Label    string
	Kind     protocol.SymbolKind
	Start    editor.Point
	End      editor.Point
	Children []*OutlineNode
}

// Outline is the symbol outline of one document
type Outline struct {
	Name  string
	Trees []*OutlineNode
}

// OutlineBridge builds outlines from textDocument/documentSymbol
type OutlineBridge struct {
	conn *lsp.Connection
	name string
}

func NewOutlineBridge(conn *lsp.Connection, name string) *OutlineBridge {
	return &OutlineBridge{conn: conn, name: name}
}

// Outline returns the outline of the document open in e
func (b *OutlineBridge) Outline(ctx context.Context, e editor.TextEditor) (*Outline, error) {
	symbols, err := b.conn.DocumentSymbol(ctx, &protocol.DocumentSymbolParams{
		TextDocument: convert.EditorToTextDocumentIdentifier(e),
	})
	if err != nil {
		return nil, err
	}
	return &Outline{Name: b.name, Trees: BuildOutlineTrees(symbols)}, nil
}

// Dispose implements editor.Disposable
func (b *OutlineBridge) Dispose() {}

// BuildOutlineTrees nests the flat symbol list by range containment. A symbol
// becomes a child of the innermost earlier symbol whose range encloses it.
func BuildOutlineTrees(symbols []protocol.SymbolInformation) []*OutlineNode {
	sorted := append([]protocol.SymbolInformation(nil), symbols...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Location.Range, sorted[j].Location.Range
		if a.Start != b.Start {
			return a.Start.Less(b.Start)
		}
		return b.End.Less(a.End)
	})

	var roots []*OutlineNode
	var stack []*OutlineNode
	for _, sym := range sorted {
		node := &OutlineNode{
			Label: sym.Name,
			Kind:  sym.Kind,
			Start: convert.PositionToPoint(sym.Location.Range.Start),
			End:   convert.PositionToPoint(sym.Location.Range.End),
		}

		for len(stack) > 0 && !contains(stack[len(stack)-1], node) {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
		}
		stack = append(stack, node)
	}
	return roots
}

func contains(outer, inner *OutlineNode) bool {
	return !inner.Start.Less(outer.Start) && !outer.End.Less(inner.End)
}
