package bridge

import (
	"context"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// SuggestionRequest is an autocomplete request from the editor
type SuggestionRequest struct {
	Editor         editor.TextEditor
	BufferPosition editor.Point
	Prefix         string
}

// Suggestion is one autocomplete entry. Exactly one of Text and Snippet is set.
type Suggestion struct {
	Text              string
	Snippet           string
	DisplayText       string
	FilterText        string
	Type              string
	LeftLabel         string
	Description       string
	ReplacementPrefix string
	ReplacementRange  *editor.Range
}

// AutocompleteBridge serves completions from textDocument/completion
type AutocompleteBridge struct {
	conn *lsp.Connection
}

func NewAutocompleteBridge(conn *lsp.Connection) *AutocompleteBridge {
	return &AutocompleteBridge{conn: conn}
}

// Suggestions returns the completions at the request position
func (b *AutocompleteBridge) Suggestions(ctx context.Context, req SuggestionRequest) ([]Suggestion, error) {
	list, err := b.conn.Completion(ctx, &protocol.CompletionParams{
		TextDocumentPositionParams: convert.EditorToPositionParams(req.Editor, req.BufferPosition),
	})
	if err != nil {
		return nil, err
	}

	suggestions := make([]Suggestion, 0, len(list.Items))
	for _, item := range list.Items {
		suggestions = append(suggestions, completionItemToSuggestion(item, req.Prefix))
	}
	return suggestions, nil
}

// Dispose implements editor.Disposable
func (b *AutocompleteBridge) Dispose() {}

func completionItemToSuggestion(item protocol.CompletionItem, prefix string) Suggestion {
	text := item.InsertText
	if text == "" {
		text = item.Label
	}

	s := Suggestion{
		DisplayText:       item.Label,
		FilterText:        item.FilterText,
		Type:              completionKindToType(item.Kind),
		LeftLabel:         item.Detail,
		Description:       string(item.Documentation),
		ReplacementPrefix: prefix,
	}
	if s.FilterText == "" {
		s.FilterText = item.Label
	}

	if item.TextEdit != nil {
		text = item.TextEdit.NewText
		r := convert.RangeToEditorRange(item.TextEdit.Range)
		s.ReplacementRange = &r
		s.ReplacementPrefix = ""
	}

	if item.InsertTextFormat == protocol.InsertTextFormatSnippet {
		s.Snippet = text
	} else {
		s.Text = text
	}
	return s
}

func completionKindToType(kind protocol.CompletionItemKind) string {
	switch kind {
	case protocol.CompletionItemKindMethod:
		return "method"
	case protocol.CompletionItemKindFunction, protocol.CompletionItemKindConstructor:
		return "function"
	case protocol.CompletionItemKindField, protocol.CompletionItemKindProperty:
		return "property"
	case protocol.CompletionItemKindVariable:
		return "variable"
	case protocol.CompletionItemKindClass:
		return "class"
	case protocol.CompletionItemKindInterface:
		return "type"
	case protocol.CompletionItemKindModule:
		return "module"
	case protocol.CompletionItemKindUnit, protocol.CompletionItemKindValue, protocol.CompletionItemKindColor:
		return "value"
	case protocol.CompletionItemKindEnum:
		return "constant"
	case protocol.CompletionItemKindKeyword:
		return "keyword"
	case protocol.CompletionItemKindSnippet:
		return "snippet"
	case protocol.CompletionItemKindFile, protocol.CompletionItemKindReference:
		return "import"
	default:
		return ""
	}
}
