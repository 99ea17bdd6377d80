package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/russellhaering/lspbridge/pkg/protocol"
	bolt "go.etcd.io/bbolt"
)

var diagnosticsBucket = []byte("diagnostics")

// Bolt stores diagnostics in a bbolt database, one JSON record per URI
type Bolt struct {
	db *bolt.DB
}

type record struct {
	URI         string                `json:"uri"`
	Diagnostics []protocol.Diagnostic `json:"diagnostics"`
	Updated     time.Time             `json:"updated"`
}

// OpenBolt opens or creates the database at path
func OpenBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open diagnostics db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(diagnosticsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create diagnostics bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// Close closes the database
func (s *Bolt) Close() error {
	return s.db.Close()
}

// Put replaces the diagnostics stored for uri
func (s *Bolt) Put(uri string, diagnostics []protocol.Diagnostic) error {
	data, err := json.Marshal(record{URI: uri, Diagnostics: diagnostics, Updated: time.Now()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(diagnosticsBucket).Put([]byte(uri), data)
	})
}

// Get returns the diagnostics stored for uri
func (s *Bolt) Get(uri string) ([]protocol.Diagnostic, error) {
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(diagnosticsBucket).Get([]byte(uri))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.Diagnostics, nil
}

// Delete removes the diagnostics stored for uri
func (s *Bolt) Delete(uri string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(diagnosticsBucket).Delete([]byte(uri))
	})
}

// ListPrefix returns every entry whose URI starts with prefix
func (s *Bolt) ListPrefix(prefix string) (map[string][]protocol.Diagnostic, error) {
	out := make(map[string][]protocol.Diagnostic)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(diagnosticsBucket).Cursor()
		for k, v := c.Seek([]byte(prefix)); k != nil && strings.HasPrefix(string(k), prefix); k, v = c.Next() {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out[string(k)] = rec.Diagnostics
		}
		return nil
	})
	return out, err
}
