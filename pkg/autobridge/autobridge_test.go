package autobridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/russellhaering/lspbridge/pkg/bridge"
	"github.com/russellhaering/lspbridge/pkg/config"
	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/russellhaering/lspbridge/pkg/lsp/lsptest"
	"github.com/russellhaering/lspbridge/pkg/protocol"
	"github.com/russellhaering/lspbridge/pkg/server"
	"github.com/russellhaering/lspbridge/pkg/store"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIntegration struct {
	name    string
	scopes  []string
	process *lsptest.Process
	err     error
	starts  int
}

func (f *fakeIntegration) Name() string            { return f.name }
func (f *fakeIntegration) GrammarScopes() []string { return f.scopes }

func (f *fakeIntegration) StartServerProcess(context.Context) (server.Process, error) {
	f.starts++
	if f.err != nil {
		return nil, f.err
	}
	return f.process, nil
}

type fixture struct {
	fake        *lsptest.Server
	integration *fakeIntegration
	workspace   *editor.MemoryWorkspace
	bridge      *AutoBridge
	root        string
}

func newFixture(t *testing.T, caps map[string]any) *fixture {
	t.Helper()
	root := t.TempDir()

	fake := lsptest.NewServer(t)
	fake.Capabilities(caps)

	integration := &fakeIntegration{
		name:    "gopls",
		scopes:  []string{"source.go"},
		process: lsptest.NewProcess(fake),
	}
	ws := editor.NewMemoryWorkspace([]string{root}, editor.ExtensionScopes(map[string]string{".go": "source.go"}))
	host := editor.Host{Workspace: ws, Commands: editor.NewCommandRegistry(nil)}

	return &fixture{
		fake:        fake,
		integration: integration,
		workspace:   ws,
		bridge:      New(integration, host, nil),
		root:        root,
	}
}

func (f *fixture) open(t *testing.T, name, text string) editor.TextEditor {
	t.Helper()
	path := filepath.Join(f.root, name)
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	e, err := f.workspace.Open(context.Background(), path, editor.Point{})
	require.NoError(t, err)
	return e
}

func TestActivateValidatesIntegration(t *testing.T) {
	tests := []struct {
		name    string
		iname   string
		scopes  []string
		wantErr error
	}{
		{"missing name", "", []string{"source.go"}, ErrNameRequired},
		{"missing scopes", "gopls", nil, ErrGrammarScopesRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]any{})
			f.integration.name = tt.iname
			f.integration.scopes = tt.scopes

			err := f.bridge.Activate(context.Background())
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.integration.starts)
			assert.Nil(t, f.bridge.Server())
		})
	}
}

func TestActivateStartsServer(t *testing.T) {
	f := newFixture(t, map[string]any{"documentSymbolProvider": true})
	require.NoError(t, f.bridge.Activate(context.Background()))

	rs := f.bridge.Server()
	require.NotNil(t, rs)
	assert.Equal(t, server.StateActive, rs.State())

	var params map[string]any
	require.NoError(t, f.fake.CallsTo("initialize")[0].Decode(&params))
	assert.Equal(t, float64(os.Getpid()), params["processId"])
	assert.Equal(t, f.root, params["rootPath"])
	assert.Equal(t, convert.PathToURI(f.root), params["rootUri"])
	assert.Equal(t, map[string]any{}, params["capabilities"])

	require.NoError(t, f.bridge.StartServer(context.Background()))
	assert.Equal(t, 1, f.integration.starts)
	assert.Len(t, f.fake.CallsTo("initialize"), 1)
}

func TestInitializeParamsWithoutProject(t *testing.T) {
	a := New(&fakeIntegration{name: "gopls", scopes: []string{"source.go"}}, editor.Host{}, nil)
	params := a.initializeParams()
	assert.Nil(t, params.RootPath)
	assert.Nil(t, params.RootURI)
	assert.Equal(t, os.Getpid(), params.ProcessID)
}

func TestStartServerProcessError(t *testing.T) {
	f := newFixture(t, map[string]any{})
	f.integration.err = errors.New("no such binary")

	assert.EqualError(t, f.bridge.Activate(context.Background()), "no such binary")
	assert.Nil(t, f.bridge.Server())
}

func TestStartServerInitializeFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.fake.Fail("initialize", jsonrpc2.CodeInternalError, "broken")

	err := f.bridge.Activate(context.Background())
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Nil(t, f.bridge.Server())
	assert.Equal(t, 1, f.integration.process.Kills())
}

func TestProvidersWithoutServer(t *testing.T) {
	f := newFixture(t, map[string]any{})
	e := f.open(t, "main.go", "package main\n")
	ctx := context.Background()

	outline, err := f.bridge.GetOutline(ctx, e)
	assert.NoError(t, err)
	assert.Nil(t, outline)

	messages, err := f.bridge.ProvideLinting(ctx, e)
	assert.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)

	suggestions, err := f.bridge.ProvideSuggestions(ctx, bridge.SuggestionRequest{Editor: e})
	assert.NoError(t, err)
	assert.NotNil(t, suggestions)
	assert.Empty(t, suggestions)

	hyperclick, err := f.bridge.GetSuggestion(ctx, e, editor.Point{})
	assert.NoError(t, err)
	assert.Nil(t, hyperclick)

	definition, err := f.bridge.GetDefinition(ctx, e, editor.Point{})
	assert.NoError(t, err)
	assert.Nil(t, definition)

	references, err := f.bridge.GetReferences(ctx, e, editor.Point{})
	assert.NoError(t, err)
	assert.Nil(t, references)

	assert.Empty(t, f.fake.Calls())
}

func TestProvidersWithoutCapability(t *testing.T) {
	f := newFixture(t, map[string]any{})
	require.NoError(t, f.bridge.Activate(context.Background()))
	e := f.open(t, "main.go", "package main\n")
	ctx := context.Background()

	outline, err := f.bridge.GetOutline(ctx, e)
	assert.NoError(t, err)
	assert.Nil(t, outline)

	suggestions, err := f.bridge.ProvideSuggestions(ctx, bridge.SuggestionRequest{Editor: e})
	assert.NoError(t, err)
	assert.Empty(t, suggestions)

	definition, err := f.bridge.GetDefinition(ctx, e, editor.Point{})
	assert.NoError(t, err)
	assert.Nil(t, definition)

	messages, err := f.bridge.ProvideLinting(ctx, e)
	assert.NoError(t, err)
	assert.Empty(t, messages)
}

func TestProvideProjectLinting(t *testing.T) {
	f := newFixture(t, map[string]any{})
	ctx := context.Background()

	project, err := f.bridge.ProvideProjectLinting(ctx, filepath.Join(f.root, "main.go"))
	require.NoError(t, err)
	assert.Empty(t, project)

	require.NoError(t, f.bridge.Activate(ctx))
	e := f.open(t, "main.go", "package main\n")

	sibling := convert.PathToURI(f.root + "other/b.go")
	require.NoError(t, f.fake.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         sibling,
		Diagnostics: []protocol.Diagnostic{{Message: "elsewhere"}},
	}))
	require.NoError(t, f.fake.Notify(ctx, "textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         convert.PathToURI(e.Path()),
		Diagnostics: []protocol.Diagnostic{{Message: "unused import"}},
	}))

	require.Eventually(t, func() bool {
		project, err = f.bridge.ProvideProjectLinting(ctx, e.Path())
		return err == nil && len(project[e.Path()]) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Len(t, project, 1)
	assert.Equal(t, "unused import", project[e.Path()][0].Text)
}

func TestGetOutlineDelegates(t *testing.T) {
	f := newFixture(t, map[string]any{"documentSymbolProvider": true})
	require.NoError(t, f.bridge.Activate(context.Background()))
	e := f.open(t, "main.go", "package main\n\nfunc main() {}\n")

	f.fake.Respond("textDocument/documentSymbol", []map[string]any{{
		"name": "main",
		"kind": 12,
		"location": map[string]any{
			"uri": convert.PathToURI(e.Path()),
			"range": map[string]any{
				"start": map[string]int{"line": 2, "character": 0},
				"end":   map[string]int{"line": 2, "character": 14},
			},
		},
	}})

	outline, err := f.bridge.ProvideOutlines().GetOutline(context.Background(), e)
	require.NoError(t, err)
	require.NotNil(t, outline)
	assert.Equal(t, "gopls", outline.Name)
	require.Len(t, outline.Trees, 1)
	assert.Equal(t, "main", outline.Trees[0].Label)
	assert.Equal(t, editor.Point{Row: 2}, outline.Trees[0].Start)
}

func TestRequestErrorsPropagate(t *testing.T) {
	f := newFixture(t, map[string]any{"documentSymbolProvider": true})
	f.fake.Fail("textDocument/documentSymbol", jsonrpc2.CodeInternalError, "symbols unavailable")
	require.NoError(t, f.bridge.Activate(context.Background()))
	e := f.open(t, "main.go", "package main\n")

	outline, err := f.bridge.GetOutline(context.Background(), e)
	assert.Nil(t, outline)
	var rpcErr *jsonrpc2.Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "symbols unavailable", rpcErr.Message)
}

func TestGetReferencesUsesProjectRoot(t *testing.T) {
	f := newFixture(t, map[string]any{"referencesProvider": true})
	require.NoError(t, f.bridge.Activate(context.Background()))
	e := f.open(t, "main.go", "package main\n\nvar x = 1\nvar y = x\n")

	uri := convert.PathToURI(e.Path())
	f.fake.Respond("textDocument/references", []map[string]any{
		{"uri": uri, "range": map[string]any{
			"start": map[string]int{"line": 2, "character": 4},
			"end":   map[string]int{"line": 2, "character": 5},
		}},
		{"uri": uri, "range": map[string]any{
			"start": map[string]int{"line": 3, "character": 8},
			"end":   map[string]int{"line": 3, "character": 9},
		}},
	})

	result, err := f.bridge.ProvideFindReferences().FindReferences(context.Background(), e, editor.Point{Row: 2, Column: 4})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, "x", result.ReferencedSymbolName)
	assert.Equal(t, f.root, result.BaseURI)
	assert.Len(t, result.References, 2)
}

func TestDeactivate(t *testing.T) {
	f := newFixture(t, map[string]any{"documentSymbolProvider": true})
	require.NoError(t, f.bridge.Activate(context.Background()))

	require.NoError(t, f.bridge.Deactivate(context.Background()))
	assert.Nil(t, f.bridge.Server())
	assert.Equal(t, 2, f.integration.process.Kills())
	assert.Contains(t, f.fake.Methods(), "shutdown")

	e := f.open(t, "main.go", "package main\n")
	outline, err := f.bridge.GetOutline(context.Background(), e)
	assert.NoError(t, err)
	assert.Nil(t, outline)

	require.NoError(t, f.bridge.Deactivate(context.Background()))
}

func TestProviderDescriptors(t *testing.T) {
	a := New(&fakeIntegration{name: "gopls", scopes: []string{"source.go", "source.gomod"}}, editor.Host{}, nil)

	assert.Equal(t, ".source.go, .source.gomod", a.ProvideAutocomplete().Selector)
	assert.Equal(t, "gopls", a.ProvideOutlines().Name)
	assert.Equal(t, "file", a.ProvideLinter().Scope)
	assert.Equal(t, "gopls", a.ProvideHyperclick().ProviderName)
	assert.Equal(t, []string{"source.go", "source.gomod"}, a.ProvideDefinitions().GrammarScopes)

	supported := a.ProvideFindReferences().IsEditorSupported
	assert.True(t, supported(editor.NewBuffer("a.go", "", editor.WithGrammarScope("source.go"))))
	assert.False(t, supported(editor.NewBuffer("a.txt", "", editor.WithGrammarScope("text.plain"))))
}

func TestProjectRoot(t *testing.T) {
	ws := editor.NewMemoryWorkspace([]string{"/work/a", "/work/b"}, nil)
	a := New(&fakeIntegration{name: "gopls", scopes: []string{"source.go"}}, editor.Host{Workspace: ws}, nil)

	assert.Equal(t, "/work/b", a.projectRoot("/work/b/pkg/file.go"))
	assert.Equal(t, "/work/a", a.projectRoot("/elsewhere/file.go"))
	assert.Equal(t, "", New(&fakeIntegration{name: "x"}, editor.Host{}, nil).projectRoot("/x.go"))
}

func TestProvideDiagnosticStore(t *testing.T) {
	cfg := config.Defaults()

	mem, cleanup, err := ProvideDiagnosticStore(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, mem)
	cleanup()

	cfg.DiagnosticsDB = filepath.Join(t.TempDir(), "diagnostics.db")
	db, cleanup, err := ProvideDiagnosticStore(&cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &store.Bolt{}, db)
	require.NoError(t, db.Put("file:///a.go", []protocol.Diagnostic{{Message: "unused"}}))
	cleanup()
}

func TestProvideServerOptions(t *testing.T) {
	cfg := config.Defaults()
	assert.Len(t, ProvideServerOptions(&cfg, store.NewMemory()), 3)

	cfg.Watch.Enabled = true
	assert.Len(t, ProvideServerOptions(&cfg, store.NewMemory()), 4)
}

func TestProvideIntegrationAndWorkspace(t *testing.T) {
	cfg := config.Defaults()
	cfg.Name = "gopls"
	cfg.GrammarScopes = []string{"source.go"}
	cfg.Server = config.Server{Command: "gopls", Args: []string{"serve"}}

	integration := ProvideIntegration(&cfg, nil)
	assert.Equal(t, "gopls", integration.Name())
	assert.Equal(t, []string{"source.go"}, integration.GrammarScopes())
	assert.Equal(t, server.Command{Path: "gopls", Args: []string{"serve"}}, integration.(*CommandIntegration).Command)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0644))
	ws, err := ProvideWorkspace(&cfg, RootDir(root))
	require.NoError(t, err)
	e, err := ws.Open(context.Background(), "main.go", editor.Point{})
	require.NoError(t, err)
	assert.Equal(t, "source.go", e.GrammarScope())
	assert.Equal(t, 4, e.TabLength())
	assert.True(t, e.SoftTabs())
}
