// Package autobridge is the per-language entry point. An Integration names a
// language server and knows how to launch it; an AutoBridge runs that server
// and exposes its features through providers that stay registered whether or
// not a server is running.
package autobridge

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"github.com/russellhaering/lspbridge/pkg/server"
	"go.uber.org/zap"
)

var (
	// ErrNameRequired is returned by Activate for an integration without a name
	ErrNameRequired = errors.New("autobridge: integration name is required")
	// ErrGrammarScopesRequired is returned by Activate for an integration without grammar scopes
	ErrGrammarScopesRequired = errors.New("autobridge: at least one grammar scope is required")
)

// Integration describes one language server
type Integration interface {
	Name() string
	GrammarScopes() []string
	StartServerProcess(ctx context.Context) (server.Process, error)
}

// CommandIntegration launches its server from a command line
type CommandIntegration struct {
	IntegrationName string
	Scopes          []string
	Command         server.Command
	Logger          *zap.Logger
}

// Name implements Integration
func (c *CommandIntegration) Name() string {
	return c.IntegrationName
}

// GrammarScopes implements Integration
func (c *CommandIntegration) GrammarScopes() []string {
	return c.Scopes
}

// StartServerProcess implements Integration
func (c *CommandIntegration) StartServerProcess(context.Context) (server.Process, error) {
	return server.StartProcess(c.Command, c.Logger)
}

// AutoBridge runs one Integration's server on behalf of an editor host
type AutoBridge struct {
	integration Integration
	host        editor.Host
	logger      *zap.Logger
	serverOpts  []server.Option

	mu      sync.Mutex
	server  *server.RunningServer
	process server.Process
}

// New creates an AutoBridge. opts are applied to every server it starts.
func New(integration Integration, host editor.Host, logger *zap.Logger, opts ...server.Option) *AutoBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoBridge{
		integration: integration,
		host:        host,
		logger:      logger.With(zap.String("integration", integration.Name())),
		serverOpts:  opts,
	}
}

// Activate checks the integration and starts its server
func (a *AutoBridge) Activate(ctx context.Context) error {
	if a.integration.Name() == "" {
		return ErrNameRequired
	}
	if len(a.integration.GrammarScopes()) == 0 {
		return ErrGrammarScopesRequired
	}
	return a.StartServer(ctx)
}

// Deactivate stops the server
func (a *AutoBridge) Deactivate(ctx context.Context) error {
	return a.StopServer(ctx)
}

// StartServer launches and initializes the server unless one is already active
func (a *AutoBridge) StartServer(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil && a.server.State() == server.StateActive {
		return nil
	}

	proc, err := a.integration.StartServerProcess(ctx)
	if err != nil {
		return err
	}

	rs := server.New(a.integration.Name(), a.integration.GrammarScopes(), proc, a.host, a.logger, a.serverOpts...)
	if err := rs.Start(ctx, a.initializeParams()); err != nil {
		return err
	}

	a.server = rs
	a.process = proc
	return nil
}

// StopServer stops the server if one is running and kills its process
func (a *AutoBridge) StopServer(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return nil
	}

	a.logger.Info("stopping language server")
	err := a.server.Stop(ctx)
	a.server = nil

	if kerr := a.process.Kill(); kerr != nil {
		a.logger.Warn("failed to kill language server", zap.Error(kerr))
	}
	a.process = nil
	return err
}

// Server returns the running server, or nil
func (a *AutoBridge) Server() *server.RunningServer {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server
}

func (a *AutoBridge) initializeParams() *protocol.InitializeParams {
	params := &protocol.InitializeParams{
		ProcessID:    os.Getpid(),
		Capabilities: protocol.ClientCapabilities{},
	}
	if a.host.Workspace == nil {
		return params
	}
	if paths := a.host.Workspace.ProjectPaths(); len(paths) > 0 {
		root := paths[0]
		uri := convert.PathToURI(root)
		params.RootPath = &root
		params.RootURI = &uri
	}
	return params
}

// bridges returns the active server's bridges, or false when no server is active
func (a *AutoBridge) bridges() (server.Bridges, bool) {
	a.mu.Lock()
	rs := a.server
	a.mu.Unlock()

	if rs == nil || rs.State() != server.StateActive {
		return server.Bridges{}, false
	}
	return rs.Bridges(), true
}
