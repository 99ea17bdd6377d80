// Package convert maps editor coordinates and file paths to and from their
// Language Server Protocol equivalents. Every function is pure.
package convert

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// PathToURI converts a file path to a file:// URI. The empty path maps to the
// empty URI.
func PathToURI(path string) string {
	return pathToURI(path, filepath.Separator)
}

// URIToPath converts a file:// URI back to a file path
func URIToPath(uri string) string {
	return uriToPath(uri, filepath.Separator)
}

func pathToURI(path string, sep byte) string {
	if path == "" {
		return ""
	}
	if sep == '\\' {
		path = strings.ReplaceAll(path, `\`, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String()
}

func uriToPath(uri string, sep byte) string {
	if uri == "" {
		return ""
	}

	var path string
	if u, err := url.Parse(uri); err == nil && u.Scheme == "file" {
		path = u.Path
	} else {
		path = strings.TrimPrefix(uri, "file://")
		if unescaped, err := url.PathUnescape(path); err == nil {
			path = unescaped
		}
	}

	if sep == '\\' {
		// "/C:/dir" is the URI form of "C:\dir"
		if len(path) >= 3 && path[0] == '/' && path[2] == ':' {
			path = path[1:]
		}
		path = strings.ReplaceAll(path, "/", `\`)
	}
	return path
}

// PointToPosition converts an editor point to an LSP position
func PointToPosition(p editor.Point) protocol.Position {
	return protocol.Position{Line: p.Row, Character: p.Column}
}

// PositionToPoint converts an LSP position to an editor point
func PositionToPoint(p protocol.Position) editor.Point {
	return editor.Point{Row: p.Line, Column: p.Character}
}

// RangeToEditorRange converts an LSP range to an editor range
func RangeToEditorRange(r protocol.Range) editor.Range {
	return editor.Range{Start: PositionToPoint(r.Start), End: PositionToPoint(r.End)}
}

// EditorRangeToRange converts an editor range to an LSP range
func EditorRangeToRange(r editor.Range) protocol.Range {
	return protocol.Range{Start: PointToPosition(r.Start), End: PointToPosition(r.End)}
}

// EditorToTextDocumentIdentifier identifies the document open in e
func EditorToTextDocumentIdentifier(e editor.TextEditor) protocol.TextDocumentIdentifier {
	return protocol.TextDocumentIdentifier{URI: PathToURI(e.Path())}
}

// EditorToPositionParams builds the position parameters for a request at p in e
func EditorToPositionParams(e editor.TextEditor, p editor.Point) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: EditorToTextDocumentIdentifier(e),
		Position:     PointToPosition(p),
	}
}
