package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/russellhaering/lspbridge/pkg/bridge"
	"github.com/russellhaering/lspbridge/pkg/config"
	"github.com/russellhaering/lspbridge/pkg/convert"
	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/spf13/cobra"
)

// openFile opens path in the session's workspace
func openFile(ctx context.Context, path string) (editor.TextEditor, error) {
	e, err := session.Workspace.Open(ctx, path, editor.Point{})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return e, nil
}

func printOutline(w io.Writer, nodes []*bridge.OutlineNode, depth int) {
	for _, n := range nodes {
		fmt.Fprintf(w, "%s%s %s\n", strings.Repeat("  ", depth), formatPoint(n.Start), n.Label)
		printOutline(w, n.Children, depth+1)
	}
}

// newOutlineCmd creates the outline command
func newOutlineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outline FILE",
		Short: "Print the symbol outline of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			outline, err := session.Bridge.GetOutline(cmd.Context(), e)
			if err != nil {
				return fmt.Errorf("failed to get outline: %w", err)
			}
			if outline == nil {
				return fmt.Errorf("%s does not provide outlines", session.Config.Name)
			}

			printOutline(cmd.OutOrStdout(), outline.Trees, 0)
			return nil
		},
	}
}

// waitForDiagnostics opens path and waits until the server publishes
// diagnostics for it or timeout elapses
func waitForDiagnostics(ctx context.Context, path string, timeout time.Duration) (editor.TextEditor, error) {
	published := make(chan struct{}, 1)
	if rs := session.Bridge.Server(); rs != nil {
		if linter := rs.Bridges().Linter; linter != nil {
			sub := linter.OnDidUpdate(func(string, []bridge.LintMessage) {
				select {
				case published <- struct{}{}:
				default:
				}
			})
			defer sub.Dispose()
		}
	}

	e, err := openFile(ctx, path)
	if err != nil {
		return nil, err
	}

	select {
	case <-published:
	case <-time.After(timeout):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return e, nil
}

// newLintCmd creates the lint command
func newLintCmd() *cobra.Command {
	var (
		wait    time.Duration
		project bool
	)

	cmd := &cobra.Command{
		Use:   "lint FILE",
		Short: "Print the diagnostics the server publishes for a file",
		Long: `Open FILE, wait for the server to publish diagnostics and print them.
With --project, print every diagnostic stored for the project containing FILE.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := waitForDiagnostics(cmd.Context(), args[0], wait)
			if err != nil {
				return err
			}

			if project {
				byPath, err := session.Bridge.ProvideProjectLinting(cmd.Context(), e.Path())
				if err != nil {
					return fmt.Errorf("failed to lint project: %w", err)
				}
				printLintMessages(cmd.OutOrStdout(), byPath)
				return nil
			}

			messages, err := session.Bridge.ProvideLinting(cmd.Context(), e)
			if err != nil {
				return fmt.Errorf("failed to lint: %w", err)
			}
			printLintMessages(cmd.OutOrStdout(), map[string][]bridge.LintMessage{e.Path(): messages})
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 5*time.Second, "how long to wait for diagnostics")
	cmd.Flags().BoolVar(&project, "project", false, "print diagnostics for the whole project")

	return cmd
}

// printLintMessages writes one line per message, ordered by path
func printLintMessages(w io.Writer, byPath map[string][]bridge.LintMessage) {
	paths := make([]string, 0, len(byPath))
	for path := range byPath {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		for _, m := range byPath[path] {
			fmt.Fprintf(w, "%s:%s: %s: %s\n", m.FilePath, formatPoint(m.Range.Start), strings.ToLower(m.Severity), m.Text)
		}
	}
}

// newCompleteCmd creates the complete command
func newCompleteCmd() *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "complete FILE LINE:COL",
		Short: "Print completion suggestions at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[1])
			if err != nil {
				return err
			}
			e, err := openFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			suggestions, err := session.Bridge.ProvideSuggestions(cmd.Context(), bridge.SuggestionRequest{
				Editor:         e,
				BufferPosition: p,
				Prefix:         prefix,
			})
			if err != nil {
				return fmt.Errorf("failed to complete: %w", err)
			}
			for _, s := range suggestions {
				text := s.Text
				if text == "" {
					text = s.Snippet
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", text, s.Type, s.LeftLabel)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "text typed before the cursor, replaced by the suggestion")

	return cmd
}

// newDefinitionCmd creates the definition command
func newDefinitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "definition FILE LINE:COL",
		Short: "Print where the symbol at a position is defined",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[1])
			if err != nil {
				return err
			}
			e, err := openFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			result, err := session.Bridge.GetDefinition(cmd.Context(), e, p)
			if err != nil {
				return fmt.Errorf("failed to find definition: %w", err)
			}
			if result == nil {
				return errors.New("no definition found")
			}
			for _, d := range result.Definitions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", d.Path, formatPoint(d.Position))
			}
			return nil
		},
	}
}

// newReferencesCmd creates the references command
func newReferencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "references FILE LINE:COL",
		Short: "Print every reference to the symbol at a position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parsePoint(args[1])
			if err != nil {
				return err
			}
			e, err := openFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			result, err := session.Bridge.GetReferences(cmd.Context(), e, p)
			if err != nil {
				return fmt.Errorf("failed to find references: %w", err)
			}
			if result == nil {
				return errors.New("no references found")
			}
			for _, r := range result.References {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", convert.URIToPath(r.URI), formatPoint(r.Range.Start))
			}
			return nil
		},
	}
}

// newFormatCmd creates the format command
func newFormatCmd() *cobra.Command {
	var (
		rangeFlag string
		write     bool
	)

	cmd := &cobra.Command{
		Use:   "format FILE",
		Short: "Format a file, or a range of it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			command := session.Config.Name + ":format-document"
			if rangeFlag != "" {
				r, err := parseRange(rangeFlag)
				if err != nil {
					return err
				}
				buf, ok := e.(*editor.Buffer)
				if !ok {
					return errors.New("range formatting needs a selectable buffer")
				}
				buf.SetSelectedRange(r)
				command = session.Config.Name + ":format-selection"
			}

			if err := session.Commands.Dispatch(cmd.Context(), command); err != nil {
				return fmt.Errorf("failed to format: %w", err)
			}

			if write {
				return e.(*editor.Buffer).Save()
			}
			_, err = io.WriteString(cmd.OutOrStdout(), e.Text())
			return err
		},
	}

	cmd.Flags().StringVar(&rangeFlag, "range", "", "format only L:C-L:C (1-based)")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write the result back to the file")

	return cmd
}

// newSchemaCmd creates the schema command
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "schema",
		Short:       "Print the JSON schema of the configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"session": "none"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := json.MarshalIndent(config.Schema(), "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
}
