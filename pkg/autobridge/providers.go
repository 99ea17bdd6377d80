package autobridge

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/russellhaering/lspbridge/pkg/bridge"
	"github.com/russellhaering/lspbridge/pkg/editor"
)

// OutlineProvider serves document outlines
type OutlineProvider struct {
	Name          string
	GrammarScopes []string
	Priority      int
	UpdateOnEdit  bool
	GetOutline    func(ctx context.Context, e editor.TextEditor) (*bridge.Outline, error)
}

// LinterProvider serves diagnostics
type LinterProvider struct {
	Name          string
	GrammarScopes []string
	Scope         string
	LintOnFly     bool
	Lint          func(ctx context.Context, e editor.TextEditor) ([]bridge.LintMessage, error)
}

// AutocompleteProvider serves completion suggestions. Selector is a
// comma-separated list of scope selectors.
type AutocompleteProvider struct {
	Selector             string
	InclusionPriority    int
	ExcludeLowerPriority bool
	GetSuggestions       func(ctx context.Context, req bridge.SuggestionRequest) ([]bridge.Suggestion, error)
}

// HyperclickProvider serves clickable definitions
type HyperclickProvider struct {
	ProviderName  string
	GrammarScopes []string
	Priority      int
	GetSuggestion func(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.HyperclickSuggestion, error)
}

// DefinitionProvider serves definition lookups
type DefinitionProvider struct {
	Name          string
	GrammarScopes []string
	Priority      int
	GetDefinition func(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.DefinitionQueryResult, error)
}

// FindReferencesProvider serves reference lookups
type FindReferencesProvider struct {
	IsEditorSupported func(e editor.TextEditor) bool
	FindReferences    func(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.FindReferencesResult, error)
}

// ProvideOutlines returns the outline provider
func (a *AutoBridge) ProvideOutlines() OutlineProvider {
	return OutlineProvider{
		Name:          a.integration.Name(),
		GrammarScopes: a.integration.GrammarScopes(),
		Priority:      1,
		GetOutline:    a.GetOutline,
	}
}

// ProvideLinter returns the linter provider
func (a *AutoBridge) ProvideLinter() LinterProvider {
	return LinterProvider{
		Name:          a.integration.Name(),
		GrammarScopes: a.integration.GrammarScopes(),
		Scope:         "file",
		LintOnFly:     true,
		Lint:          a.ProvideLinting,
	}
}

// ProvideAutocomplete returns the autocomplete provider
func (a *AutoBridge) ProvideAutocomplete() AutocompleteProvider {
	selectors := make([]string, 0, len(a.integration.GrammarScopes()))
	for _, scope := range a.integration.GrammarScopes() {
		selectors = append(selectors, "."+scope)
	}
	return AutocompleteProvider{
		Selector:          strings.Join(selectors, ", "),
		InclusionPriority: 1,
		GetSuggestions:    a.ProvideSuggestions,
	}
}

// ProvideHyperclick returns the hyperclick provider
func (a *AutoBridge) ProvideHyperclick() HyperclickProvider {
	return HyperclickProvider{
		ProviderName:  a.integration.Name(),
		GrammarScopes: a.integration.GrammarScopes(),
		Priority:      1,
		GetSuggestion: a.GetSuggestion,
	}
}

// ProvideDefinitions returns the definition provider
func (a *AutoBridge) ProvideDefinitions() DefinitionProvider {
	return DefinitionProvider{
		Name:          a.integration.Name(),
		GrammarScopes: a.integration.GrammarScopes(),
		Priority:      1,
		GetDefinition: a.GetDefinition,
	}
}

// ProvideFindReferences returns the find-references provider
func (a *AutoBridge) ProvideFindReferences() FindReferencesProvider {
	return FindReferencesProvider{
		IsEditorSupported: bridge.ScopeFilter(a.integration.GrammarScopes()),
		FindReferences:    a.GetReferences,
	}
}

// GetOutline returns e's outline, or nil when no server with outline support is active
func (a *AutoBridge) GetOutline(ctx context.Context, e editor.TextEditor) (*bridge.Outline, error) {
	b, ok := a.bridges()
	if !ok || b.Outline == nil {
		return nil, nil
	}
	return b.Outline.Outline(ctx, e)
}

// ProvideLinting returns e's diagnostics, or none when no server is active
func (a *AutoBridge) ProvideLinting(ctx context.Context, e editor.TextEditor) ([]bridge.LintMessage, error) {
	b, ok := a.bridges()
	if !ok || b.Linter == nil {
		return []bridge.LintMessage{}, nil
	}
	return b.Linter.Lint(ctx, e)
}

// ProvideProjectLinting returns the diagnostics of every document under the
// project root containing path, keyed by file path
func (a *AutoBridge) ProvideProjectLinting(ctx context.Context, path string) (map[string][]bridge.LintMessage, error) {
	b, ok := a.bridges()
	if !ok || b.Linter == nil {
		return map[string][]bridge.LintMessage{}, nil
	}
	root := a.projectRoot(path)
	if root == "" {
		return map[string][]bridge.LintMessage{}, nil
	}
	return b.Linter.LintProject(ctx, root)
}

// ProvideSuggestions returns completions, or none when no server with completion support is active
func (a *AutoBridge) ProvideSuggestions(ctx context.Context, req bridge.SuggestionRequest) ([]bridge.Suggestion, error) {
	b, ok := a.bridges()
	if !ok || b.Autocomplete == nil {
		return []bridge.Suggestion{}, nil
	}
	return b.Autocomplete.Suggestions(ctx, req)
}

// GetSuggestion returns the hyperclick target at p, or nil
func (a *AutoBridge) GetSuggestion(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.HyperclickSuggestion, error) {
	b, ok := a.bridges()
	if !ok || b.Hyperclick == nil {
		return nil, nil
	}
	return b.Hyperclick.Suggestion(ctx, e, p)
}

// GetDefinition returns the definitions of the symbol at p, or nil
func (a *AutoBridge) GetDefinition(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.DefinitionQueryResult, error) {
	b, ok := a.bridges()
	if !ok || b.Definition == nil {
		return nil, nil
	}
	return b.Definition.Definition(ctx, e, p)
}

// GetReferences returns the references to the symbol at p, or nil. The base
// URI of the result is the project root containing e.
func (a *AutoBridge) GetReferences(ctx context.Context, e editor.TextEditor, p editor.Point) (*bridge.FindReferencesResult, error) {
	b, ok := a.bridges()
	if !ok || b.References == nil {
		return nil, nil
	}
	return b.References.References(ctx, e, p, a.projectRoot(e.Path()))
}

func (a *AutoBridge) projectRoot(path string) string {
	if a.host.Workspace == nil {
		return ""
	}
	roots := a.host.Workspace.ProjectPaths()
	for _, root := range roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return root
		}
	}
	if len(roots) > 0 {
		return roots[0]
	}
	return ""
}
