// Package codec maps item file extensions to converters
// between typed in-memory values and byte streams.
//
// A Registry is explicit, mutable state:
// populate it at startup and treat it as read-mostly afterward.
// The package-level Default registry carries the built-in converters
// for .json, .txt, .log, .pgm, .bin, and .png items.
package codec

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// ErrUnsupported is the error for an extension with no registered converter,
// or a value no registered converter can encode.
var ErrUnsupported = errors.New("unsupported format")

// Codec converts between a typed in-memory value and its byte representation.
// Encode must reject values it cannot handle with an error wrapping ErrUnsupported.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(b []byte) (any, error)
}

// Hasher is an optional Codec extension.
// A codec whose encoded form is not canonical
// (the same value may encode to different bytes)
// implements Hasher to supply a digest of the semantic content instead.
type Hasher interface {
	Hash(encoded []byte) []byte
}

// Registry maps extension tokens to codecs,
// with a default codec per value type as an encoding fallback.
type Registry struct {
	mu       sync.RWMutex
	exts     map[string]Codec
	typedefs map[reflect.Type]Codec
	pinned   map[reflect.Type]bool // type defaults that may not be displaced
	order    []Codec               // registration order, for the fallback scan
}

// NewRegistry produces an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		exts:     make(map[string]Codec),
		typedefs: make(map[reflect.Type]Codec),
		pinned:   make(map[reflect.Type]bool),
	}
}

// Register maps an extension token (without the dot) to a codec.
// If typeFor is non-nil, the codec also becomes the default
// for values of typeFor's dynamic type, displacing any earlier default —
// except the built-in default for generic JSON objects,
// which may not be displaced.
func (r *Registry) Register(ext string, c Codec, typeFor any) error {
	if ext == "" || c == nil {
		return fmt.Errorf("empty registration for extension %q", ext)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.exts[ext] = c
	if typeFor != nil {
		t := reflect.TypeOf(typeFor)
		if !r.pinned[t] {
			r.typedefs[t] = c
		}
	}
	for _, known := range r.order {
		if known == c {
			return nil
		}
	}
	r.order = append(r.order, c)
	return nil
}

// RegisterAlias maps a new extension to the codec
// already registered for a known extension.
func (r *Registry) RegisterAlias(ext, known string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.exts[known]
	if !ok {
		return fmt.Errorf("alias %s: unknown extension %s", ext, known)
	}
	r.exts[ext] = c
	return nil
}

// Lookup produces the codec registered for an extension.
func (r *Registry) Lookup(ext string) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.exts[ext]
	return c, ok
}

// Encode converts a value to bytes using the codec for the given extension.
// If the extension is unknown, Encode falls back to the default codec
// for the value's type, then to every registered codec in registration order,
// using the first that accepts the value.
func (r *Registry) Encode(ext string, v any) ([]byte, error) {
	if c, ok := r.Lookup(ext); ok {
		return c.Encode(v)
	}

	r.mu.RLock()
	c, ok := r.typedefs[reflect.TypeOf(v)]
	candidates := make([]Codec, len(r.order))
	copy(candidates, r.order)
	r.mu.RUnlock()

	if ok {
		if b, err := c.Encode(v); err == nil {
			return b, nil
		}
	}
	for _, c := range candidates {
		if b, err := c.Encode(v); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("encoding %s (%T): %w", ext, v, ErrUnsupported)
}

// Decode converts bytes to a value using the codec for the given extension.
func (r *Registry) Decode(ext string, b []byte) (any, error) {
	c, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("decoding .%s: %w", ext, ErrUnsupported)
	}
	return c.Decode(b)
}

// HashInput produces the bytes an encoded item contributes to a content hash:
// the codec's Hash override where one exists, otherwise the encoded bytes.
func (r *Registry) HashInput(ext string, encoded []byte) []byte {
	c, ok := r.Lookup(ext)
	if !ok {
		return encoded
	}
	if h, ok := c.(Hasher); ok {
		return h.Hash(encoded)
	}
	return encoded
}

// Digest is the default digest over encoded bytes: SHA2-256.
func Digest(b []byte) []byte {
	sum := sha256.Sum256(b)
	return sum[:]
}

// Default is the process-wide registry, populated at init
// with the built-in converters.
var Default = NewRegistry()
