package editor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferSetTextInRange(t *testing.T) {
	b := NewBuffer("", "hello world\nsecond line")

	r := b.SetTextInRange(Range{Start: Point{0, 6}, End: Point{0, 11}}, "there")
	assert.Equal(t, "hello there\nsecond line", b.Text())
	assert.Equal(t, Range{Start: Point{0, 6}, End: Point{0, 11}}, r)

	r = b.SetTextInRange(Range{Start: Point{1, 0}, End: Point{1, 0}}, "a\nb")
	assert.Equal(t, "hello there\na\nbsecond line", b.Text())
	assert.Equal(t, Point{2, 1}, r.End)

	assert.Equal(t, "there", b.TextInRange(Range{Start: Point{0, 6}, End: Point{0, 11}}))
	assert.Equal(t, Range{End: Point{2, 12}}, b.BufferRange())
}

func TestBufferClampsPoints(t *testing.T) {
	b := NewBuffer("", "abc\nde")
	assert.Equal(t, "c\nde", b.TextInRange(Range{Start: Point{0, 2}, End: Point{9, 9}}))

	b.SetCursorPosition(Point{1, 40})
	assert.Equal(t, Point{1, 2}, b.CursorPosition())
}

func TestBufferMultibyteColumns(t *testing.T) {
	b := NewBuffer("", "héllo")
	b.SetTextInRange(Range{Start: Point{0, 1}, End: Point{0, 2}}, "e")
	assert.Equal(t, "hello", b.Text())
}

func TestBufferTransactGroupsChanges(t *testing.T) {
	b := NewBuffer("", "one two three")

	var events [][]TextChange
	b.OnDidChangeText(func(changes []TextChange) {
		events = append(events, changes)
	})

	b.Transact(func() {
		b.SetTextInRange(Range{Start: Point{0, 8}, End: Point{0, 13}}, "3")
		b.SetTextInRange(Range{Start: Point{0, 4}, End: Point{0, 7}}, "2")
		b.SetTextInRange(Range{Start: Point{0, 0}, End: Point{0, 3}}, "1")
	})

	assert.Equal(t, "1 2 3", b.Text())
	require.Len(t, events, 1)
	assert.Len(t, events[0], 3)
	assert.Equal(t, 1, b.UndoDepth())

	require.True(t, b.Undo())
	assert.Equal(t, "one two three", b.Text())
	assert.Equal(t, 0, b.UndoDepth())
	assert.False(t, b.Undo())
}

func TestBufferEmptyTransactionLeavesNoUndoEntry(t *testing.T) {
	b := NewBuffer("", "text")
	b.Transact(func() {})
	assert.Equal(t, 0, b.UndoDepth())
}

func TestBufferSubscriptionsDispose(t *testing.T) {
	b := NewBuffer("", "x")

	calls := 0
	d := b.OnDidChangeText(func([]TextChange) { calls++ })
	b.SetTextInRange(Range{}, "a")
	d.Dispose()
	b.SetTextInRange(Range{}, "b")
	assert.Equal(t, 1, calls)

	destroyed := 0
	b.OnDidDestroy(func() { destroyed++ })
	b.Destroy()
	b.Destroy()
	assert.Equal(t, 1, destroyed)
}

func TestBufferSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	b := NewBuffer(path, "package main\n")

	saved := false
	b.OnDidSave(func() { saved = true })
	require.NoError(t, b.Save())
	assert.True(t, saved)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))

	assert.Error(t, NewBuffer("", "").Save())
}

func TestMemoryWorkspaceOpen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("plain\n"), 0644))

	ws := NewMemoryWorkspace([]string{root}, ExtensionScopes(map[string]string{".go": "source.go"}))

	var observed []string
	ws.ObserveTextEditors(func(e TextEditor) { observed = append(observed, e.Path()) })

	a, err := ws.Open(context.Background(), "a.go", Point{0, 3})
	require.NoError(t, err)
	assert.Equal(t, "source.go", a.GrammarScope())
	assert.Equal(t, Point{0, 3}, a.CursorPosition())

	b, err := ws.Open(context.Background(), filepath.Join(root, "b.txt"), Point{})
	require.NoError(t, err)
	assert.Equal(t, "", b.GrammarScope())
	assert.Equal(t, b, ws.ActiveTextEditor())

	again, err := ws.Open(context.Background(), "a.go", Point{0, 1})
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, a, ws.ActiveTextEditor())
	assert.Equal(t, Point{0, 1}, a.CursorPosition())
	assert.Len(t, ws.TextEditors(), 2)
	assert.Len(t, observed, 2)

	ws.Close("a.go")
	assert.Len(t, ws.TextEditors(), 1)
	assert.Equal(t, b, ws.ActiveTextEditor())

	_, err = ws.Open(context.Background(), "missing.go", Point{})
	assert.Error(t, err)
}

func TestMemoryWorkspaceConcurrentOpen(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a\n"), 0644))

	ws := NewMemoryWorkspace([]string{root}, nil)
	var observed atomic.Int32
	ws.ObserveTextEditors(func(TextEditor) { observed.Add(1) })

	const n = 8
	opened := make([]TextEditor, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := ws.Open(context.Background(), "a.go", Point{})
			assert.NoError(t, err)
			opened[i] = e
		}(i)
	}
	wg.Wait()

	for _, e := range opened {
		assert.Same(t, opened[0], e)
	}
	assert.Len(t, ws.TextEditors(), 1)
	assert.Equal(t, int32(1), observed.Load())

	ws.Add(NewBuffer(filepath.Join(root, "a.go"), "other"))
	assert.Len(t, ws.TextEditors(), 1)
	assert.Equal(t, int32(1), observed.Load())
}

func TestCommandRegistry(t *testing.T) {
	r := NewCommandRegistry(nil)

	var ran []string
	first := r.Add("pkg:cmd", func(context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	second := r.Add("pkg:cmd", func(context.Context) error {
		ran = append(ran, "second")
		return nil
	})
	r.Add("pkg:fail", func(context.Context) error { return errors.New("boom") })

	assert.Equal(t, []string{"pkg:cmd", "pkg:fail"}, r.Names())

	require.NoError(t, r.Dispatch(context.Background(), "pkg:cmd"))
	second.Dispose()
	require.NoError(t, r.Dispatch(context.Background(), "pkg:cmd"))
	assert.Equal(t, []string{"second", "first"}, ran)

	first.Dispose()
	assert.Equal(t, []string{"pkg:fail"}, r.Names())
	assert.Error(t, r.Dispatch(context.Background(), "pkg:cmd"))
	assert.EqualError(t, r.Dispatch(context.Background(), "pkg:fail"), "boom")
}

func TestCompositeDisposable(t *testing.T) {
	var order []int
	var c CompositeDisposable
	c.Add(DisposableFunc(func() { order = append(order, 1) }))
	c.Add(DisposableFunc(func() { order = append(order, 2) }))
	assert.Equal(t, 2, c.Len())

	c.Dispose()
	assert.Equal(t, []int{2, 1}, order)

	c.Add(DisposableFunc(func() { order = append(order, 3) }))
	assert.Equal(t, []int{2, 1, 3}, order)
	assert.Equal(t, 0, c.Len())
}
