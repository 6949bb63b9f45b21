// Package storage defines the dataset server's storage interface
// and a registry of storage backends.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Entry is one stored dataset: its archive bytes
// plus the metadata rows the server's consistency rules consult.
type Entry struct {
	UUID       string
	Owner      string // principal that created the entry
	Name       string // containerType.name
	Hash       string
	Static     bool
	Complete   bool
	Replaces   string
	ReplacedBy string
	Created    time.Time
	Modified   time.Time
	Data       []byte
}

// Store is a dataset storage backend.
type Store interface {
	// Get gets the entry with the given identifier,
	// or zdc.ErrNotFound.
	Get(ctx context.Context, uuid string) (*Entry, error)

	// Put stores an entry, replacing any existing entry
	// under the same identifier.
	Put(ctx context.Context, e *Entry) error

	// FindStatic gets a static entry with the given
	// container-type name and content hash, or zdc.ErrNotFound.
	FindStatic(ctx context.Context, name, hash string) (*Entry, error)

	// SetReplacedBy records that the identified entry
	// has been superseded by another.
	SetReplacedBy(ctx context.Context, uuid, by string) error

	// List calls a function for each stored identifier
	// in lexicographic order, beginning after the specified one.
	// If the callback returns an error, List exits with that error.
	List(ctx context.Context, start string, f func(uuid string) error) error
}

// Factory creates a Store from configuration parameters.
type Factory func(context.Context, map[string]interface{}) (Store, error)

var registry = make(map[string]Factory)

// Register makes a storage backend available under a key.
func Register(key string, f Factory) {
	registry[key] = f
}

// Create instantiates the storage backend registered under key.
func Create(ctx context.Context, key string, conf map[string]interface{}) (Store, error) {
	f, ok := registry[key]
	if !ok {
		return nil, fmt.Errorf("key %s not found in registry", key)
	}
	return f(ctx, conf)
}
