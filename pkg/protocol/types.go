// Package protocol declares the Language Server Protocol wire types used by the
// client. Field names and JSON tags follow the LSP v2 specification, with a few
// later additions that modern servers depend on.
package protocol

import (
	"bytes"
	"encoding/json"
)

// Position represents a position in a text document. Both fields are zero-based.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Less reports whether p comes before o in document order.
func (p Position) Less(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Range represents a range in a text document
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Location represents a location in a text document
type Location struct {
	URI   string `json:"uri"`
	Range Range  `json:"range"`
}

// TextDocumentIdentifier identifies a text document
type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

// VersionedTextDocumentIdentifier identifies a specific version of a text document
type VersionedTextDocumentIdentifier struct {
	URI     string `json:"uri"`
	Version int    `json:"version"`
}

// TextDocumentItem represents an open text document
type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int    `json:"version"`
	Text       string `json:"text"`
}

// TextDocumentPositionParams is the base of every position-based request
type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

// TextEdit is a single range replacement. Edits for one document must be
// applied last-to-first so earlier ranges stay valid.
type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

// WorkspaceEdit describes changes to many resources
type WorkspaceEdit struct {
	Changes map[string][]TextEdit `json:"changes,omitempty"`
}

// Command represents a reference to a command on the server
type Command struct {
	Title     string            `json:"title"`
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// Flag is a capability that servers advertise either as a boolean or as an
// options object. Any object, including an empty one, enables the capability.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = false
	case len(data) > 0 && data[0] == '{':
		*f = true
	default:
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*f = Flag(b)
	}
	return nil
}

// MarkupContent is the LSP 3 representation of documentation
type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Documentation is a string, a MarkedString or a MarkupContent on the wire.
// It is flattened to plain text on decode.
type Documentation string

// UnmarshalJSON implements json.Unmarshaler
func (d *Documentation) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Documentation(s)
		return nil
	}

	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*d = Documentation(obj.Value)
	return nil
}
