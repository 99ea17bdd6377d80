// Package editor defines the host-editor surface the bridges consume, along
// with an in-memory implementation of it used by the CLI and by tests.
package editor

import (
	"context"
	"sync"
)

// Point is a zero-based row/column position in a buffer
type Point struct {
	Row    int
	Column int
}

// Less reports whether p comes before o in buffer order
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

// Range is a pair of points in a buffer
type Range struct {
	Start Point
	End   Point
}

// IsEmpty reports whether the range covers no text
func (r Range) IsEmpty() bool {
	return r.Start == r.End
}

// TextChange describes one replacement made to a buffer. OldRange is expressed in
// the coordinates the buffer had before the change.
type TextChange struct {
	OldRange Range
	NewText  string
}

// TextEditor is the per-buffer accessor surface used by the bridges
type TextEditor interface {
	// Path returns the file path backing the buffer, or "" for an unsaved buffer
	Path() string
	GrammarScope() string

	Text() string
	// TextInRange and SetTextInRange clip r to the buffer
	TextInRange(r Range) string
	SetTextInRange(r Range, text string) Range
	BufferRange() Range
	SelectedRange() Range
	SetCursorPosition(p Point)
	CursorPosition() Point

	TabLength() int
	SoftTabs() bool

	// Transact groups every change made by fn into one undo entry and one
	// change notification
	Transact(fn func())

	OnDidChangeText(fn func(changes []TextChange)) Disposable
	OnDidSave(fn func()) Disposable
	OnDidDestroy(fn func()) Disposable
}

// Workspace gives access to the editor's project and open editors
type Workspace interface {
	ProjectPaths() []string
	TextEditors() []TextEditor
	ActiveTextEditor() TextEditor

	// Open focuses the editor already open on path, or opens a new one, and
	// moves its cursor to at
	Open(ctx context.Context, path string, at Point) (TextEditor, error)

	// ObserveTextEditors calls fn for every current and future editor
	ObserveTextEditors(fn func(TextEditor)) Disposable
}

// CommandFunc is an editor command handler
type CommandFunc func(ctx context.Context) error

// Commands registers editor commands
type Commands interface {
	Add(name string, fn CommandFunc) Disposable
}

// Host bundles everything the bridges need from the editor
type Host struct {
	Workspace Workspace
	Commands  Commands
}

// Disposable releases a subscription or registration
type Disposable interface {
	Dispose()
}

// DisposableFunc adapts a function to Disposable
type DisposableFunc func()

// Dispose implements Disposable
func (f DisposableFunc) Dispose() {
	if f != nil {
		f()
	}
}

// CompositeDisposable disposes a group of disposables together
type CompositeDisposable struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add adds d to the group. Adding to a disposed group disposes d immediately.
func (c *CompositeDisposable) Add(d Disposable) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		d.Dispose()
		return
	}
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Len returns the number of disposables held
func (c *CompositeDisposable) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Dispose disposes every member, most recently added first
func (c *CompositeDisposable) Dispose() {
	c.mu.Lock()
	items := c.items
	c.items = nil
	c.disposed = true
	c.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].Dispose()
	}
}
