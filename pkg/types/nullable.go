package types

import (
	"bytes"
	"encoding/json"
)

// Nullable tracks whether a JSON field was present, and whether it was null.
// Partial updates rely on it to tell "omitted" from "cleared".
type Nullable[T any] struct {
	Valid bool
	Value *T
}

// UnmarshalJSON implements json.Unmarshaler.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	n.Valid = true
	if bytes.Equal(trimmed, []byte("null")) {
		n.Value = nil
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	n.Value = &parsed
	return nil
}

// Some builds a present, non-null value.
func Some[T any](v T) Nullable[T] {
	return Nullable[T]{Valid: true, Value: &v}
}

// IsNull reports a field that was present and explicitly null.
func (n Nullable[T]) IsNull() bool {
	return n.Valid && n.Value == nil
}

// Ptr returns a copy of the value, nil when absent or null.
func (n Nullable[T]) Ptr() *T {
	if n.Value == nil {
		return nil
	}
	v := *n.Value
	return &v
}
