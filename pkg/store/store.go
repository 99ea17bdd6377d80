// Package store persists the diagnostics published by language servers,
// keyed by document URI.
package store

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/russellhaering/lspbridge/pkg/protocol"
)

// ErrNotFound is returned when no diagnostics are stored for a URI
var ErrNotFound = errors.New("diagnostics not found")

// Memory keeps diagnostics in a map. The zero value is not usable; use NewMemory.
type Memory struct {
	mu    sync.RWMutex
	byURI map[string][]protocol.Diagnostic
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{byURI: make(map[string][]protocol.Diagnostic)}
}

// Put replaces the diagnostics stored for uri
func (m *Memory) Put(uri string, diagnostics []protocol.Diagnostic) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byURI[uri] = append([]protocol.Diagnostic(nil), diagnostics...)
	return nil
}

// Get returns the diagnostics stored for uri
func (m *Memory) Get(uri string) ([]protocol.Diagnostic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.byURI[uri]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]protocol.Diagnostic(nil), d...), nil
}

// Delete removes the diagnostics stored for uri
func (m *Memory) Delete(uri string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byURI, uri)
	return nil
}

// ListPrefix returns every entry whose URI starts with prefix
func (m *Memory) ListPrefix(prefix string) (map[string][]protocol.Diagnostic, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]protocol.Diagnostic)
	for uri, d := range m.byURI {
		if strings.HasPrefix(uri, prefix) {
			out[uri] = append([]protocol.Diagnostic(nil), d...)
		}
	}
	return out, nil
}

// Close implements io.Closer
func (m *Memory) Close() error {
	return nil
}

// SortedURIs returns the keys of entries in sorted order
func SortedURIs(entries map[string][]protocol.Diagnostic) []string {
	uris := make([]string, 0, len(entries))
	for uri := range entries {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}
