package autobridge

import (
	"context"
	"path/filepath"

	"github.com/google/wire"
	"github.com/russellhaering/lspbridge/pkg/bridge"
	"github.com/russellhaering/lspbridge/pkg/config"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/log"
	"github.com/russellhaering/lspbridge/pkg/server"
	"github.com/russellhaering/lspbridge/pkg/store"
	"github.com/russellhaering/lspbridge/pkg/watch"
	"go.uber.org/zap"
)

// RootDir is the project directory the session works in
type RootDir string

func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := log.New(cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

func ProvideWorkspace(cfg *config.Config, rootDir RootDir) (*editor.MemoryWorkspace, error) {
	root, err := filepath.Abs(string(rootDir))
	if err != nil {
		return nil, err
	}
	return editor.NewMemoryWorkspace([]string{root}, cfg.ScopeFor, editor.WithTabs(cfg.Editor.TabLength, cfg.Editor.SoftTabs)), nil
}

func ProvideCommands(logger *zap.Logger) *editor.CommandRegistry {
	return editor.NewCommandRegistry(logger)
}

func ProvideHost(workspace *editor.MemoryWorkspace, commands *editor.CommandRegistry) editor.Host {
	return editor.Host{Workspace: workspace, Commands: commands}
}

// ProvideDiagnosticStore opens the bbolt diagnostics database when one is
// configured and keeps diagnostics in memory otherwise
func ProvideDiagnosticStore(cfg *config.Config, logger *zap.Logger) (bridge.DiagnosticStore, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DiagnosticsDB == "" {
		return store.NewMemory(), func() {}, nil
	}

	db, err := store.OpenBolt(cfg.DiagnosticsDB)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Error("error closing diagnostics database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

func ProvideIntegration(cfg *config.Config, logger *zap.Logger) Integration {
	return &CommandIntegration{
		IntegrationName: cfg.Name,
		Scopes:          cfg.GrammarScopes,
		Command: server.Command{
			Path: cfg.Server.Command,
			Args: cfg.Server.Args,
			Env:  cfg.Server.Env,
			Dir:  cfg.Server.Dir,
		},
		Logger: logger,
	}
}

func ProvideServerOptions(cfg *config.Config, diagnostics bridge.DiagnosticStore) []server.Option {
	opts := []server.Option{
		server.WithRequestTimeout(cfg.RequestTimeout),
		server.WithShutdownTimeout(cfg.ShutdownTimeout),
		server.WithDiagnosticStore(diagnostics),
	}
	if cfg.Watch.Enabled {
		opts = append(opts, server.WithFileWatcher(
			watch.WithIgnore(cfg.Watch.Ignore),
			watch.WithDebounce(cfg.Watch.Debounce),
		))
	}
	return opts
}

// ProvideAutoBridge builds the AutoBridge. Its cleanup deactivates it.
func ProvideAutoBridge(integration Integration, host editor.Host, logger *zap.Logger, opts []server.Option) (*AutoBridge, func()) {
	a := New(integration, host, logger, opts...)
	cleanup := func() {
		if err := a.Deactivate(context.Background()); err != nil {
			logger.Warn("error deactivating integration", zap.Error(err))
		}
	}
	return a, cleanup
}

// Session is everything a command needs to drive one integration
type Session struct {
	Config    *config.Config
	Logger    *zap.Logger
	Workspace *editor.MemoryWorkspace
	Commands  *editor.CommandRegistry
	Bridge    *AutoBridge
}

var ProvideSession = wire.Struct(new(Session), "*")

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideWorkspace,
	ProvideCommands,
	ProvideHost,
	ProvideDiagnosticStore,
	ProvideIntegration,
	ProvideServerOptions,
	ProvideAutoBridge,
	ProvideSession,
)
