package editor

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// Buffer is an in-memory TextEditor. Columns count runes.
type Buffer struct {
	mu sync.Mutex

	path      string
	scope     string
	text      string
	lines     []string
	cursor    Point
	selection Range
	tabLength int
	softTabs  bool

	depth   int
	pending []TextChange
	undo    []undoEntry

	nextID    int
	onChange  map[int]func([]TextChange)
	onSave    map[int]func()
	onDestroy map[int]func()
	destroyed bool
}

type inverseEdit struct {
	rng  Range
	text string
}

type undoEntry []inverseEdit

// BufferOption configures a Buffer
type BufferOption func(*Buffer)

// WithGrammarScope sets the buffer's grammar scope
func WithGrammarScope(scope string) BufferOption {
	return func(b *Buffer) {
		b.scope = scope
	}
}

// WithTabs sets the tab length and soft-tab setting
func WithTabs(length int, soft bool) BufferOption {
	return func(b *Buffer) {
		b.tabLength = length
		b.softTabs = soft
	}
}

// NewBuffer creates a buffer holding text
func NewBuffer(path, text string, opts ...BufferOption) *Buffer {
	b := &Buffer{
		path:      path,
		text:      text,
		tabLength: 4,
		softTabs:  true,
		onChange:  make(map[int]func([]TextChange)),
		onSave:    make(map[int]func()),
		onDestroy: make(map[int]func()),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.lines = strings.Split(text, "\n")
	return b
}

// LoadBuffer reads path from disk into a new buffer
func LoadBuffer(path string, opts ...BufferOption) (*Buffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return NewBuffer(path, string(data), opts...), nil
}

func (b *Buffer) Path() string         { return b.path }
func (b *Buffer) GrammarScope() string { return b.scope }
func (b *Buffer) TabLength() int       { return b.tabLength }
func (b *Buffer) SoftTabs() bool       { return b.softTabs }

// Text returns the whole buffer
func (b *Buffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// TextInRange returns the text covered by r, clamped to the buffer
func (b *Buffer) TextInRange(r Range) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	start, end := b.offset(r.Start), b.offset(r.End)
	if end < start {
		start, end = end, start
	}
	return b.text[start:end]
}

// SetTextInRange replaces r with text and returns the range of the inserted text
func (b *Buffer) SetTextInRange(r Range, text string) Range {
	b.mu.Lock()
	r = Range{Start: b.clip(r.Start), End: b.clip(r.End)}
	if r.End.Less(r.Start) {
		r.Start, r.End = r.End, r.Start
	}
	start, end := b.offset(r.Start), b.offset(r.End)
	old := b.text[start:end]

	b.text = b.text[:start] + text + b.text[end:]
	b.lines = strings.Split(b.text, "\n")
	newRange := Range{Start: r.Start, End: extent(r.Start, text)}

	change := TextChange{OldRange: r, NewText: text}
	inverse := inverseEdit{rng: newRange, text: old}

	var emit []TextChange
	if b.depth > 0 {
		b.pending = append(b.pending, change)
		last := len(b.undo) - 1
		b.undo[last] = append(b.undo[last], inverse)
	} else {
		b.undo = append(b.undo, undoEntry{inverse})
		emit = []TextChange{change}
	}
	listeners := b.changeListeners()
	b.mu.Unlock()

	if emit != nil {
		for _, fn := range listeners {
			fn(emit)
		}
	}
	return newRange
}

// Transact runs fn with every change grouped into one undo entry and one
// change notification. Nested transactions join the outermost one.
func (b *Buffer) Transact(fn func()) {
	b.mu.Lock()
	if b.depth == 0 {
		b.undo = append(b.undo, undoEntry{})
	}
	b.depth++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.depth--
		if b.depth > 0 {
			b.mu.Unlock()
			return
		}
		changes := b.pending
		b.pending = nil
		if last := len(b.undo) - 1; last >= 0 && len(b.undo[last]) == 0 {
			b.undo = b.undo[:last]
		}
		listeners := b.changeListeners()
		b.mu.Unlock()

		if len(changes) > 0 {
			for _, l := range listeners {
				l(changes)
			}
		}
	}()

	fn()
}

// UndoDepth returns the number of entries on the undo stack
func (b *Buffer) UndoDepth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.undo)
}

// Undo reverts the most recent undo entry. It returns false when there is
// nothing to undo.
func (b *Buffer) Undo() bool {
	b.mu.Lock()
	if len(b.undo) == 0 || b.depth > 0 {
		b.mu.Unlock()
		return false
	}
	entry := b.undo[len(b.undo)-1]
	b.undo = b.undo[:len(b.undo)-1]
	b.mu.Unlock()

	b.Transact(func() {
		for i := len(entry) - 1; i >= 0; i-- {
			b.SetTextInRange(entry[i].rng, entry[i].text)
		}
	})

	// The transaction above pushed its own entry; undoing must not be undoable.
	b.mu.Lock()
	if len(b.undo) > 0 {
		b.undo = b.undo[:len(b.undo)-1]
	}
	b.mu.Unlock()
	return true
}

// BufferRange returns the range covering the whole buffer
func (b *Buffer) BufferRange() Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	last := len(b.lines) - 1
	return Range{End: Point{Row: last, Column: utf8.RuneCountInString(b.lines[last])}}
}

// SelectedRange returns the current selection
func (b *Buffer) SelectedRange() Range {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selection
}

// SetSelectedRange sets the selection and moves the cursor to its end
func (b *Buffer) SetSelectedRange(r Range) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection = Range{Start: b.clip(r.Start), End: b.clip(r.End)}
	b.cursor = b.selection.End
}

// SetCursorPosition moves the cursor and collapses the selection onto it
func (b *Buffer) SetCursorPosition(p Point) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = b.clip(p)
	b.selection = Range{Start: b.cursor, End: b.cursor}
}

// CursorPosition returns the cursor position
func (b *Buffer) CursorPosition() Point {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cursor
}

// Save writes the buffer to its path and notifies save observers
func (b *Buffer) Save() error {
	b.mu.Lock()
	path, text := b.path, b.text
	listeners := make([]func(), 0, len(b.onSave))
	for _, fn := range b.onSave {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	if path == "" {
		return fmt.Errorf("buffer has no path")
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	for _, fn := range listeners {
		fn()
	}
	return nil
}

// Destroy closes the buffer and notifies destroy observers once
func (b *Buffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	listeners := make([]func(), 0, len(b.onDestroy))
	for _, fn := range b.onDestroy {
		listeners = append(listeners, fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// OnDidChangeText implements TextEditor
func (b *Buffer) OnDidChangeText(fn func([]TextChange)) Disposable {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.onChange[id] = fn
	return b.unsubscribe(func() { delete(b.onChange, id) })
}

// OnDidSave implements TextEditor
func (b *Buffer) OnDidSave(fn func()) Disposable {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.onSave[id] = fn
	return b.unsubscribe(func() { delete(b.onSave, id) })
}

// OnDidDestroy implements TextEditor
func (b *Buffer) OnDidDestroy(fn func()) Disposable {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.onDestroy[id] = fn
	return b.unsubscribe(func() { delete(b.onDestroy, id) })
}

func (b *Buffer) unsubscribe(remove func()) Disposable {
	return DisposableFunc(func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		remove()
	})
}

func (b *Buffer) changeListeners() []func([]TextChange) {
	listeners := make([]func([]TextChange), 0, len(b.onChange))
	for _, fn := range b.onChange {
		listeners = append(listeners, fn)
	}
	return listeners
}

// clip clamps p to a valid buffer position
func (b *Buffer) clip(p Point) Point {
	if p.Row < 0 {
		return Point{}
	}
	if p.Row >= len(b.lines) {
		last := len(b.lines) - 1
		return Point{Row: last, Column: utf8.RuneCountInString(b.lines[last])}
	}
	n := utf8.RuneCountInString(b.lines[p.Row])
	if p.Column < 0 {
		p.Column = 0
	}
	if p.Column > n {
		p.Column = n
	}
	return p
}

// offset converts p to a byte offset into text
func (b *Buffer) offset(p Point) int {
	p = b.clip(p)
	off := 0
	for i := 0; i < p.Row; i++ {
		off += len(b.lines[i]) + 1
	}
	line := b.lines[p.Row]
	col := 0
	for i := range line {
		if col == p.Column {
			return off + i
		}
		col++
	}
	return off + len(line)
}

// extent returns the point reached after inserting text at start
func extent(start Point, text string) Point {
	rows := strings.Count(text, "\n")
	if rows == 0 {
		return Point{Row: start.Row, Column: start.Column + utf8.RuneCountInString(text)}
	}
	tail := text[strings.LastIndex(text, "\n")+1:]
	return Point{Row: start.Row + rows, Column: utf8.RuneCountInString(tail)}
}
