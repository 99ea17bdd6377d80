// Package bridge adapts single LSP capabilities to editor-facing features.
// Each bridge holds the connection it was built with and converts between
// editor and protocol coordinates at its boundary.
package bridge

import (
	"math"
	"strings"
	"unicode"

	"github.com/russellhaering/lspbridge/pkg/editor"
)

// EditorFilter reports whether a bridge should act on an editor
type EditorFilter func(editor.TextEditor) bool

// ScopeFilter matches editors whose grammar scope is one of scopes
func ScopeFilter(scopes []string) EditorFilter {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		set[s] = struct{}{}
	}
	return func(e editor.TextEditor) bool {
		_, ok := set[e.GrammarScope()]
		return ok
	}
}

// LanguageID derives an LSP language identifier from a grammar scope by taking
// its last dotted segment, so "source.go" becomes "go"
func LanguageID(scope string) string {
	if i := strings.LastIndexByte(scope, '.'); i >= 0 {
		return scope[i+1:]
	}
	return scope
}

// wordRangeAt returns the identifier surrounding p, or an empty range at p
func wordRangeAt(e editor.TextEditor, p editor.Point) editor.Range {
	line := []rune(e.TextInRange(editor.Range{
		Start: editor.Point{Row: p.Row},
		End:   editor.Point{Row: p.Row, Column: math.MaxInt32},
	}))

	col := p.Column
	if col > len(line) {
		col = len(line)
	}
	start, end := col, col
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	for end < len(line) && isWordRune(line[end]) {
		end++
	}
	return editor.Range{
		Start: editor.Point{Row: p.Row, Column: start},
		End:   editor.Point{Row: p.Row, Column: end},
	}
}

func isWordRune(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
