package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ScopeResolver maps a file path to a grammar scope
type ScopeResolver func(path string) string

// ExtensionScopes returns a ScopeResolver that looks up the file extension
// (including the dot) in scopes
func ExtensionScopes(scopes map[string]string) ScopeResolver {
	return func(path string) string {
		return scopes[strings.ToLower(filepath.Ext(path))]
	}
}

// MemoryWorkspace is a Workspace backed by Buffers
type MemoryWorkspace struct {
	mu       sync.Mutex
	roots    []string
	editors  []*Buffer
	active   *Buffer
	resolve  ScopeResolver
	bufOpts  []BufferOption
	nextID   int
	watchers map[int]func(TextEditor)
}

// NewMemoryWorkspace creates a workspace over the given project roots
func NewMemoryWorkspace(roots []string, resolve ScopeResolver, opts ...BufferOption) *MemoryWorkspace {
	if resolve == nil {
		resolve = func(string) string { return "" }
	}
	return &MemoryWorkspace{
		roots:    roots,
		resolve:  resolve,
		bufOpts:  opts,
		watchers: make(map[int]func(TextEditor)),
	}
}

// ProjectPaths implements Workspace
func (w *MemoryWorkspace) ProjectPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.roots...)
}

// TextEditors implements Workspace
func (w *MemoryWorkspace) TextEditors() []TextEditor {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]TextEditor, 0, len(w.editors))
	for _, b := range w.editors {
		out = append(out, b)
	}
	return out
}

// ActiveTextEditor implements Workspace
func (w *MemoryWorkspace) ActiveTextEditor() TextEditor {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return nil
	}
	return w.active
}

// Open implements Workspace. Relative paths resolve against the first project root.
func (w *MemoryWorkspace) Open(ctx context.Context, path string, at Point) (TextEditor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path = w.absolute(path)

	w.mu.Lock()
	for _, b := range w.editors {
		if b.Path() == path {
			w.active = b
			w.mu.Unlock()
			b.SetCursorPosition(at)
			return b, nil
		}
	}
	w.mu.Unlock()

	opts := append([]BufferOption{WithGrammarScope(w.resolve(path))}, w.bufOpts...)
	b, err := LoadBuffer(path, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open editor: %w", err)
	}
	// Another Open may have loaded the same path meanwhile.
	if existing := w.add(b); existing != b {
		existing.SetCursorPosition(at)
		return existing, nil
	}
	b.SetCursorPosition(at)
	return b, nil
}

// Add registers an existing buffer as an open editor and makes it active. A
// buffer for a path that is already open is ignored.
func (w *MemoryWorkspace) Add(b *Buffer) {
	w.add(b)
}

// add registers b and returns it, or returns the buffer already open on b's path
func (w *MemoryWorkspace) add(b *Buffer) *Buffer {
	w.mu.Lock()
	for _, open := range w.editors {
		if open == b || (b.Path() != "" && open.Path() == b.Path()) {
			w.active = open
			w.mu.Unlock()
			return open
		}
	}
	w.editors = append(w.editors, b)
	w.active = b
	watchers := make([]func(TextEditor), 0, len(w.watchers))
	for _, fn := range w.watchers {
		watchers = append(watchers, fn)
	}
	w.mu.Unlock()

	b.OnDidDestroy(func() { w.remove(b) })
	for _, fn := range watchers {
		fn(b)
	}
	return b
}

// Close destroys the editor open on path, if any
func (w *MemoryWorkspace) Close(path string) {
	path = w.absolute(path)
	w.mu.Lock()
	var target *Buffer
	for _, b := range w.editors {
		if b.Path() == path {
			target = b
			break
		}
	}
	w.mu.Unlock()

	if target != nil {
		target.Destroy()
	}
}

// ObserveTextEditors implements Workspace
func (w *MemoryWorkspace) ObserveTextEditors(fn func(TextEditor)) Disposable {
	w.mu.Lock()
	current := append([]*Buffer(nil), w.editors...)
	id := w.nextID
	w.nextID++
	w.watchers[id] = fn
	w.mu.Unlock()

	for _, b := range current {
		fn(b)
	}
	return DisposableFunc(func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.watchers, id)
	})
}

func (w *MemoryWorkspace) remove(b *Buffer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, e := range w.editors {
		if e == b {
			w.editors = append(w.editors[:i], w.editors[i+1:]...)
			break
		}
	}
	if w.active == b {
		w.active = nil
		if n := len(w.editors); n > 0 {
			w.active = w.editors[n-1]
		}
	}
}

func (w *MemoryWorkspace) absolute(path string) string {
	if filepath.IsAbs(path) || len(w.roots) == 0 {
		return filepath.Clean(path)
	}
	return filepath.Join(w.roots[0], path)
}
