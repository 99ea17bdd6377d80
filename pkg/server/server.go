// Package server owns one language-server session: its process, its
// connection and the bridges built from the capabilities the server
// advertises.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/russellhaering/lspbridge/pkg/bridge"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"github.com/russellhaering/lspbridge/pkg/watch"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned by Start on a server that has left the Unstarted state
	ErrAlreadyStarted = errors.New("server already started")
	// ErrNotActive is returned by Stop on a server that was never started
	ErrNotActive = errors.New("server not active")
)

// State is the lifecycle stage of a RunningServer
type State int

const (
	StateUnstarted State = iota
	StateActive
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateActive:
		return "active"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Bridges holds the bridges built for a session. Optional bridges are nil when
// the server does not advertise their capability; Linter is always present.
type Bridges struct {
	Autocomplete   *bridge.AutocompleteBridge
	DocumentSync   *bridge.DocumentSyncBridge
	Outline        *bridge.OutlineBridge
	FormatRange    *bridge.FormatRangeBridge
	FormatDocument *bridge.FormatDocumentBridge
	Definition     *bridge.DefinitionBridge
	Hyperclick     *bridge.HyperclickBridge
	References     *bridge.FindReferencesBridge
	Linter         *bridge.LinterBridge
}

// RunningServer drives one language server from Unstarted through Active to
// Stopped. A stopped server cannot be restarted.
type RunningServer struct {
	name    string
	scopes  []string
	process Process
	host    editor.Host
	logger  *zap.Logger

	requestTimeout  time.Duration
	shutdownTimeout time.Duration
	diagnostics     bridge.DiagnosticStore
	watchEnabled    bool
	watchOptions    []watch.Option

	mu           sync.RWMutex
	state        State
	conn         *lsp.Connection
	capabilities protocol.ServerCapabilities
	bridges      Bridges
	formatters   *editor.CompositeDisposable
	watcher      *watch.Watcher
}

// Option configures a RunningServer
type Option func(*RunningServer)

// WithRequestTimeout bounds every request sent to the server
func WithRequestTimeout(d time.Duration) Option {
	return func(s *RunningServer) {
		s.requestTimeout = d
	}
}

// WithShutdownTimeout bounds the shutdown request sent by Stop
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *RunningServer) {
		s.shutdownTimeout = d
	}
}

// WithDiagnosticStore sets where the linter bridge keeps diagnostics
func WithDiagnosticStore(store bridge.DiagnosticStore) Option {
	return func(s *RunningServer) {
		s.diagnostics = store
	}
}

// WithFileWatcher reports changes under the workspace's project paths to the
// server with workspace/didChangeWatchedFiles
func WithFileWatcher(opts ...watch.Option) Option {
	return func(s *RunningServer) {
		s.watchEnabled = true
		s.watchOptions = append(s.watchOptions, opts...)
	}
}

// New wraps process. The server does nothing until Start.
func New(name string, scopes []string, process Process, host editor.Host, logger *zap.Logger, opts ...Option) *RunningServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RunningServer{
		name:            name,
		scopes:          scopes,
		process:         process,
		host:            host,
		logger:          logger.With(zap.String("server", name)),
		shutdownTimeout: 5 * time.Second,
		formatters:      &editor.CompositeDisposable{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the integration name the server was created with
func (s *RunningServer) Name() string {
	return s.name
}

// Process returns the underlying process
func (s *RunningServer) Process() Process {
	return s.process
}

// State returns the current lifecycle state
func (s *RunningServer) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Capabilities returns what the server advertised in its initialize response
func (s *RunningServer) Capabilities() protocol.ServerCapabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities
}

// Bridges returns the bridges built for the session. All fields are nil
// unless the server is active.
func (s *RunningServer) Bridges() Bridges {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bridges
}

// Connection returns the session's connection, or nil before Start
func (s *RunningServer) Connection() *lsp.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

// Start connects to the process, initializes the server and builds the
// bridges its capabilities allow. If initialize fails the process is killed,
// the server is Stopped and the error is returned.
func (s *RunningServer) Start(ctx context.Context, params *protocol.InitializeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUnstarted {
		return ErrAlreadyStarted
	}

	var connOpts []lsp.Option
	if s.requestTimeout > 0 {
		connOpts = append(connOpts, lsp.WithRequestTimeout(s.requestTimeout))
	}
	stream := lsp.NewStream(lsp.Pipe(s.process.Stdout(), s.process.Stdin()))
	conn := lsp.NewConnection(context.WithoutCancel(ctx), stream, s.logger, connOpts...)
	conn.OnLogMessage(s.logMessage)
	conn.OnTelemetryEvent(s.telemetry)

	s.logger.Info("initializing language server", zap.Int("pid", s.process.Pid()))
	result, err := conn.Initialize(ctx, params)
	if err != nil {
		s.logger.Error("failed to initialize language server", zap.Error(err))
		if derr := conn.Dispose(); derr != nil {
			s.logger.Warn("failed to dispose connection", zap.Error(derr))
		}
		if kerr := s.process.Kill(); kerr != nil {
			s.logger.Warn("failed to kill language server", zap.Error(kerr))
		}
		s.state = StateStopped
		return fmt.Errorf("failed to initialize %s: %w", s.name, err)
	}

	s.conn = conn
	s.capabilities = result.Capabilities

	// Diagnostics may arrive as soon as the server sees initialized.
	linter := bridge.NewLinterBridge(conn, s.diagnostics, s.logger)
	if err := conn.Initialized(ctx); err != nil {
		s.logger.Warn("failed to send initialized", zap.Error(err))
	}

	s.bridges = s.bridgeCapabilities(context.WithoutCancel(ctx), conn, result.Capabilities, linter)

	if s.watchEnabled && s.host.Workspace != nil {
		s.startWatcher(conn)
	}

	s.state = StateActive
	s.logger.Info("language server active")
	return nil
}

// capabilityBridge builds the bridge for one capability when enabled reports
// that the server advertises it
type capabilityBridge struct {
	name    string
	enabled func(caps protocol.ServerCapabilities) bool
	build   func(s *RunningServer, ctx context.Context, conn *lsp.Connection, caps protocol.ServerCapabilities, b *Bridges)
}

var capabilityBridges = []capabilityBridge{
	{
		name:    "autocomplete",
		enabled: func(caps protocol.ServerCapabilities) bool { return caps.CompletionProvider != nil },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.Autocomplete = bridge.NewAutocompleteBridge(conn)
		},
	},
	{
		name:    "document sync",
		enabled: func(caps protocol.ServerCapabilities) bool { return caps.TextDocumentSync.Enabled() },
		build: func(s *RunningServer, ctx context.Context, conn *lsp.Connection, caps protocol.ServerCapabilities, b *Bridges) {
			b.DocumentSync = bridge.NewDocumentSyncBridge(ctx, conn, s.host.Workspace, *caps.TextDocumentSync, s.filter(), s.logger)
		},
	},
	{
		name:    "outline",
		enabled: func(caps protocol.ServerCapabilities) bool { return bool(caps.DocumentSymbolProvider) },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.Outline = bridge.NewOutlineBridge(conn, s.name)
		},
	},
	{
		name:    "format range",
		enabled: func(caps protocol.ServerCapabilities) bool { return bool(caps.DocumentRangeFormattingProvider) },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.FormatRange = bridge.NewFormatRangeBridge(conn, s.logger)
			if s.host.Commands != nil {
				s.formatters.Add(b.FormatRange.Register(s.host.Commands, s.host.Workspace, s.name, s.filter()))
			}
		},
	},
	{
		name:    "format document",
		enabled: func(caps protocol.ServerCapabilities) bool { return bool(caps.DocumentFormattingProvider) },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.FormatDocument = bridge.NewFormatDocumentBridge(conn, s.logger)
			if s.host.Commands != nil {
				s.formatters.Add(b.FormatDocument.Register(s.host.Commands, s.host.Workspace, s.name, s.filter()))
			}
		},
	},
	{
		name:    "definition",
		enabled: func(caps protocol.ServerCapabilities) bool { return bool(caps.DefinitionProvider) },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.Definition = bridge.NewDefinitionBridge(conn, s.language())
			b.Hyperclick = bridge.NewHyperclickBridge(conn, s.host.Workspace)
		},
	},
	{
		name:    "references",
		enabled: func(caps protocol.ServerCapabilities) bool { return bool(caps.ReferencesProvider) },
		build: func(s *RunningServer, _ context.Context, conn *lsp.Connection, _ protocol.ServerCapabilities, b *Bridges) {
			b.References = bridge.NewFindReferencesBridge(conn)
		},
	},
}

// bridgeCapabilities builds the bridges caps allows. The linter is present
// regardless of caps.
func (s *RunningServer) bridgeCapabilities(ctx context.Context, conn *lsp.Connection, caps protocol.ServerCapabilities, linter *bridge.LinterBridge) Bridges {
	b := Bridges{Linter: linter}
	for _, cb := range capabilityBridges {
		if !cb.enabled(caps) {
			continue
		}
		s.logger.Debug("bridging capability", zap.String("bridge", cb.name))
		cb.build(s, ctx, conn, caps, &b)
	}
	return b
}

func (s *RunningServer) startWatcher(conn *lsp.Connection) {
	w, err := watch.New(s.host.Workspace.ProjectPaths(), func(events []protocol.FileEvent) {
		err := conn.DidChangeWatchedFiles(context.Background(), &protocol.DidChangeWatchedFilesParams{Changes: events})
		if err != nil {
			s.logger.Warn("failed to send watched file changes", zap.Error(err))
		}
	}, s.logger, s.watchOptions...)
	if err != nil {
		s.logger.Warn("failed to create file watcher", zap.Error(err))
		return
	}
	if err := w.Start(); err != nil {
		s.logger.Warn("failed to start file watcher", zap.Error(err))
		w.Dispose()
		return
	}
	s.watcher = w
}

// Stop tears the session down: bridges first, then the file watcher, then
// shutdown and exit, then the transport, then the process. Stopping a stopped
// server does nothing.
func (s *RunningServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateUnstarted:
		return ErrNotActive
	case StateStopped:
		return nil
	}

	s.logger.Info("stopping language server")
	s.disposeBridges()
	s.formatters.Dispose()
	if s.watcher != nil {
		s.watcher.Dispose()
		s.watcher = nil
	}

	shutdownCtx := ctx
	if s.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.shutdownTimeout)
		defer cancel()
	}
	if err := s.conn.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("language server did not shut down cleanly", zap.Error(err))
	}
	if err := s.conn.Exit(ctx); err != nil {
		s.logger.Debug("failed to send exit", zap.Error(err))
	}

	var errs []error
	if err := s.conn.Dispose(); err != nil {
		errs = append(errs, err)
	}
	if err := s.process.Kill(); err != nil {
		errs = append(errs, err)
	}

	s.state = StateStopped
	return errors.Join(errs...)
}

func (s *RunningServer) disposeBridges() {
	b := s.bridges
	if b.Autocomplete != nil {
		b.Autocomplete.Dispose()
	}
	if b.DocumentSync != nil {
		b.DocumentSync.Dispose()
	}
	if b.Outline != nil {
		b.Outline.Dispose()
	}
	if b.Definition != nil {
		b.Definition.Dispose()
	}
	if b.Hyperclick != nil {
		b.Hyperclick.Dispose()
	}
	if b.References != nil {
		b.References.Dispose()
	}
	if b.Linter != nil {
		b.Linter.Dispose()
	}
	s.bridges = Bridges{}
}

func (s *RunningServer) filter() bridge.EditorFilter {
	return bridge.ScopeFilter(s.scopes)
}

func (s *RunningServer) language() string {
	if len(s.scopes) == 0 {
		return ""
	}
	return bridge.LanguageID(s.scopes[0])
}

func (s *RunningServer) logMessage(params protocol.LogMessageParams) {
	switch params.Type {
	case protocol.MessageTypeError:
		s.logger.Error(params.Message)
	case protocol.MessageTypeWarning:
		s.logger.Warn(params.Message)
	case protocol.MessageTypeInfo:
		s.logger.Info(params.Message)
	default:
		s.logger.Debug(params.Message)
	}
}

func (s *RunningServer) telemetry(event json.RawMessage) {
	s.logger.Debug("telemetry event", zap.ByteString("event", event))
}
