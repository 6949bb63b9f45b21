package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// JSON converts structured values to and from UTF-8 JSON text.
// Encoding is canonical enough for content hashing:
// object keys marshal in sorted order.
type JSON struct{}

func (JSON) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("marshaling %T: %w", v, ErrUnsupported)
	}
	return buf.Bytes(), nil
}

func (JSON) Decode(b []byte) (any, error) {
	var v any
	err := json.Unmarshal(b, &v)
	return v, err
}

// Text converts strings to and from encoded text (UTF-8).
type Text struct{}

func (Text) Encode(v any) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("encoding %T as text: %w", v, ErrUnsupported)
	}
	return []byte(s), nil
}

func (Text) Decode(b []byte) (any, error) {
	return string(b), nil
}

// Binary passes raw bytes through unconverted.
type Binary struct{}

func (Binary) Encode(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("encoding %T as binary: %w", v, ErrUnsupported)
	}
	return b, nil
}

func (Binary) Decode(b []byte) (any, error) {
	return b, nil
}

func init() {
	Default.Register("json", JSON{}, map[string]any{})
	Default.Register("txt", Text{}, "")
	Default.RegisterAlias("log", "txt")
	Default.RegisterAlias("pgm", "txt")
	Default.Register("bin", Binary{}, []byte{})

	// The generic-object default must stay JSON;
	// later registrations may not displace it.
	Default.mu.Lock()
	Default.pinned[reflect.TypeOf(map[string]any{})] = true
	Default.mu.Unlock()
}
