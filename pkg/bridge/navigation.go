package bridge

import (
	"context"
	"errors"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// Definition is one definition site
type Definition struct {
	Path     string
	Position editor.Point
	Range    editor.Range
	Language string
}

// DefinitionQueryResult is the answer to a definition lookup
type DefinitionQueryResult struct {
	QueryRange  []editor.Range
	Definitions []Definition
}

// DefinitionBridge resolves definitions with textDocument/definition
type DefinitionBridge struct {
	conn     *lsp.Connection
	language string
}

func NewDefinitionBridge(conn *lsp.Connection, language string) *DefinitionBridge {
	return &DefinitionBridge{conn: conn, language: language}
}

// Definition returns the definitions of the symbol at p, or nil when the
// server knows none
func (b *DefinitionBridge) Definition(ctx context.Context, e editor.TextEditor, p editor.Point) (*DefinitionQueryResult, error) {
	params := convert.EditorToPositionParams(e, p)
	locations, err := b.conn.GotoDefinition(ctx, &params)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}

	result := &DefinitionQueryResult{QueryRange: []editor.Range{wordRangeAt(e, p)}}
	for _, loc := range locations {
		r := convert.RangeToEditorRange(loc.Range)
		result.Definitions = append(result.Definitions, Definition{
			Path:     convert.URIToPath(loc.URI),
			Position: r.Start,
			Range:    r,
			Language: b.language,
		})
	}
	return result, nil
}

// Dispose implements editor.Disposable
func (b *DefinitionBridge) Dispose() {}

// HyperclickSuggestion is a clickable range. Callback navigates to the first
// target.
type HyperclickSuggestion struct {
	Range    editor.Range
	Targets  []protocol.Location
	Callback func(ctx context.Context) error
}

// HyperclickBridge turns definitions into clickable ranges
type HyperclickBridge struct {
	conn      *lsp.Connection
	workspace editor.Workspace
}

func NewHyperclickBridge(conn *lsp.Connection, workspace editor.Workspace) *HyperclickBridge {
	return &HyperclickBridge{conn: conn, workspace: workspace}
}

// Suggestion returns the clickable range at p, or nil when the symbol has no
// definition
func (b *HyperclickBridge) Suggestion(ctx context.Context, e editor.TextEditor, p editor.Point) (*HyperclickSuggestion, error) {
	params := convert.EditorToPositionParams(e, p)
	locations, err := b.conn.GotoDefinition(ctx, &params)
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}

	target := locations[0]
	return &HyperclickSuggestion{
		Range:   wordRangeAt(e, p),
		Targets: locations,
		Callback: func(ctx context.Context) error {
			return b.open(ctx, target)
		},
	}, nil
}

// Dispose implements editor.Disposable
func (b *HyperclickBridge) Dispose() {}

func (b *HyperclickBridge) open(ctx context.Context, loc protocol.Location) error {
	if b.workspace == nil {
		return errors.New("no workspace to open definition in")
	}
	_, err := b.workspace.Open(ctx, convert.URIToPath(loc.URI), convert.PositionToPoint(loc.Range.Start))
	return err
}

// Reference is one use of a symbol
type Reference struct {
	URI   string
	Name  string
	Range editor.Range
}

// FindReferencesResult lists the references to one symbol
type FindReferencesResult struct {
	ReferencedSymbolName string
	BaseURI              string
	References           []Reference
}

// FindReferencesBridge lists references with textDocument/references
type FindReferencesBridge struct {
	conn *lsp.Connection
}

func NewFindReferencesBridge(conn *lsp.Connection) *FindReferencesBridge {
	return &FindReferencesBridge{conn: conn}
}

// References returns the references to the symbol at p, including its
// declaration, or nil when there are none. projectRoot becomes the result's
// base URI.
func (b *FindReferencesBridge) References(ctx context.Context, e editor.TextEditor, p editor.Point, projectRoot string) (*FindReferencesResult, error) {
	locations, err := b.conn.FindReferences(ctx, &protocol.ReferenceParams{
		TextDocumentPositionParams: convert.EditorToPositionParams(e, p),
		Context:                    protocol.ReferenceContext{IncludeDeclaration: true},
	})
	if err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}

	name := e.TextInRange(wordRangeAt(e, p))
	result := &FindReferencesResult{
		ReferencedSymbolName: name,
		BaseURI:              projectRoot,
	}
	for _, loc := range locations {
		result.References = append(result.References, Reference{
			URI:   loc.URI,
			Name:  name,
			Range: convert.RangeToEditorRange(loc.Range),
		})
	}
	return result, nil
}

// Dispose implements editor.Disposable
func (b *FindReferencesBridge) Dispose() {}
