package main

import (
	"testing"

	"github.com/russellhaering/lspbridge/pkg/editor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		in      string
		want    editor.Point
		wantErr bool
	}{
		{"1:1", editor.Point{}, false},
		{"12:7", editor.Point{Row: 11, Column: 6}, false},
		{"0:1", editor.Point{}, true},
		{"3", editor.Point{}, true},
		{"a:b", editor.Point{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parsePoint(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, formatPoint(got))
		})
	}
}

func TestParseRange(t *testing.T) {
	r, err := parseRange("2:1-4:10")
	require.NoError(t, err)
	assert.Equal(t, editor.Range{Start: editor.Point{Row: 1}, End: editor.Point{Row: 3, Column: 9}}, r)

	_, err = parseRange("4:1-2:1")
	assert.Error(t, err)
	_, err = parseRange("4:1")
	assert.Error(t, err)
}
