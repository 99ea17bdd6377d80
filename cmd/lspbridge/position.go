package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/russellhaering/lspbridge/pkg/editor"
)

// parsePoint parses a 1-based "LINE:COL" into a zero-based point
func parsePoint(s string) (editor.Point, error) {
	line, col, ok := strings.Cut(s, ":")
	if !ok {
		return editor.Point{}, fmt.Errorf("invalid position %q: want LINE:COL", s)
	}
	row, err := strconv.Atoi(line)
	if err != nil || row < 1 {
		return editor.Point{}, fmt.Errorf("invalid line in %q", s)
	}
	column, err := strconv.Atoi(col)
	if err != nil || column < 1 {
		return editor.Point{}, fmt.Errorf("invalid column in %q", s)
	}
	return editor.Point{Row: row - 1, Column: column - 1}, nil
}

// parseRange parses a 1-based "L:C-L:C" into a zero-based range
func parseRange(s string) (editor.Range, error) {
	start, end, ok := strings.Cut(s, "-")
	if !ok {
		return editor.Range{}, fmt.Errorf("invalid range %q: want L:C-L:C", s)
	}
	a, err := parsePoint(start)
	if err != nil {
		return editor.Range{}, err
	}
	b, err := parsePoint(end)
	if err != nil {
		return editor.Range{}, err
	}
	if b.Less(a) {
		return editor.Range{}, fmt.Errorf("invalid range %q: end before start", s)
	}
	return editor.Range{Start: a, End: b}, nil
}

// formatPoint renders a zero-based point as 1-based "LINE:COL"
func formatPoint(p editor.Point) string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}
