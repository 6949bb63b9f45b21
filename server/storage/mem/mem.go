// Package mem implements an in-memory dataset storage backend.
package mem

import (
	"context"
	"sort"
	"sync"

	"github.com/bobg/zdc"
	"github.com/bobg/zdc/server/storage"
)

var _ storage.Store = &Store{}

// Store is a memory-based implementation of dataset storage.
type Store struct {
	mu      sync.Mutex
	entries map[string]*storage.Entry
}

// New produces a new Store.
func New() *Store {
	return &Store{entries: make(map[string]*storage.Entry)}
}

// Get gets the entry with the given identifier.
func (s *Store) Get(_ context.Context, uuid string) (*storage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[uuid]
	if !ok {
		return nil, zdc.ErrNotFound
	}
	return copyEntry(e), nil
}

// Put stores an entry, replacing any existing one under the same identifier.
func (s *Store) Put(_ context.Context, e *storage.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[e.UUID] = copyEntry(e)
	return nil
}

// FindStatic gets a static entry by container-type name and content hash.
func (s *Store) FindStatic(_ context.Context, name, hash string) (*storage.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Static && e.Name == name && e.Hash == hash {
			return copyEntry(e), nil
		}
	}
	return nil, zdc.ErrNotFound
}

// SetReplacedBy records that an entry has been superseded.
func (s *Store) SetReplacedBy(_ context.Context, uuid, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[uuid]
	if !ok {
		return zdc.ErrNotFound
	}
	e.ReplacedBy = by
	return nil
}

// List produces all stored identifiers, in lexicographic order.
func (s *Store) List(_ context.Context, start string, f func(string) error) error {
	s.mu.Lock()
	uuids := make([]string, 0, len(s.entries))
	for uuid := range s.entries {
		uuids = append(uuids, uuid)
	}
	s.mu.Unlock()

	sort.Strings(uuids)
	index := sort.SearchStrings(uuids, start)
	for i := index; i < len(uuids); i++ {
		if uuids[i] == start {
			continue
		}
		if err := f(uuids[i]); err != nil {
			return err
		}
	}
	return nil
}

func copyEntry(e *storage.Entry) *storage.Entry {
	out := *e
	out.Data = make([]byte, len(e.Data))
	copy(out.Data, e.Data)
	return &out
}

func init() {
	storage.Register("mem", func(context.Context, map[string]interface{}) (storage.Store, error) {
		return New(), nil
	})
}
