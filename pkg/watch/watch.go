// Package watch reports file changes under project roots as LSP file events
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"go.uber.org/zap"
)

// ErrClosed is returned when starting a closed watcher
var ErrClosed = errors.New("watcher closed")

// Handler receives one debounced batch of file events
type Handler func(events []protocol.FileEvent)

// Watcher watches directory trees recursively and batches their changes
type Watcher struct {
	fsw      *fsnotify.Watcher
	matchers []*Matcher
	handler  Handler
	logger   *zap.Logger
	debounce time.Duration
	ignore   []string

	mu      sync.Mutex
	order   []string
	pending map[string]protocol.FileChangeType
	timer   *time.Timer
	closed  bool

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long the watcher waits for quiet before delivering a batch
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithIgnore adds gitignore-style patterns on top of each root's ignore file
func WithIgnore(patterns []string) Option {
	return func(w *Watcher) {
		w.ignore = append(w.ignore, patterns...)
	}
}

// New creates a watcher over roots that delivers batches to handler
func New(roots []string, handler Handler, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		handler:  handler,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		pending:  make(map[string]protocol.FileChangeType),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return nil, err
		}
		w.matchers = append(w.matchers, LoadMatcher(abs, w.ignore, logger))
	}
	return w, nil
}

// Start adds every non-ignored directory under the roots and begins delivering events
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.mu.Unlock()

	for _, m := range w.matchers {
		if err := w.addTree(m.Root()); err != nil {
			return err
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Close stops the watcher. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// Dispose implements editor.Disposable
func (w *Watcher) Dispose() {
	if err := w.Close(); err != nil {
		w.logger.Error("failed to close watcher", zap.Error(err))
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return err
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("file watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	kind, ok := changeType(ev.Op)
	if !ok || w.ignored(ev.Name) {
		return
	}

	if kind == protocol.FileChangeTypeCreated {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	}

	w.queue(convert.PathToURI(ev.Name), kind)
}

// queue merges kind into the pending batch and restarts the debounce timer
func (w *Watcher) queue(uri string, kind protocol.FileChangeType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	prev, seen := w.pending[uri]
	switch {
	case !seen:
		w.order = append(w.order, uri)
	case prev == protocol.FileChangeTypeCreated && kind == protocol.FileChangeTypeChanged:
		kind = protocol.FileChangeTypeCreated
	case prev == protocol.FileChangeTypeDeleted && kind == protocol.FileChangeTypeCreated:
		kind = protocol.FileChangeTypeChanged
	}
	w.pending[uri] = kind

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if w.closed || len(w.order) == 0 {
		w.mu.Unlock()
		return
	}
	events := make([]protocol.FileEvent, 0, len(w.order))
	for _, uri := range w.order {
		events = append(events, protocol.FileEvent{URI: uri, Type: w.pending[uri]})
	}
	w.order = nil
	w.pending = make(map[string]protocol.FileChangeType)
	w.mu.Unlock()

	w.logger.Debug("delivering file events", zap.Int("count", len(events)))
	w.handler(events)
}

func (w *Watcher) ignored(path string) bool {
	for _, m := range w.matchers {
		if m.Contains(path) {
			return m.Ignored(path)
		}
	}
	return false
}

func changeType(op fsnotify.Op) (protocol.FileChangeType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return protocol.FileChangeTypeCreated, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return protocol.FileChangeTypeDeleted, true
	case op.Has(fsnotify.Write):
		return protocol.FileChangeTypeChanged, true
	default:
		return 0, false
	}
}
