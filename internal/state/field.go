package state

import (
	"bytes"
	"encoding/json"
)

// Op says what an update does to one optional attribute.
type Op uint8

// Field operations.
const (
	// Unset leaves the stored value alone.
	Unset Op = iota
	// Clear removes the stored value.
	Clear
	// Set replaces the stored value.
	Set
)

// Field is an optional attribute in an update: Unset, Clear or Set(v).
// Decoded from JSON, an absent key is Unset, null is Clear and any other
// value is Set.
type Field[T any] struct {
	Op    Op
	Value T
}

// SetTo returns a Field that sets v.
func SetTo[T any](v T) Field[T] {
	return Field[T]{Op: Set, Value: v}
}

// Cleared returns a Field that clears the attribute.
func Cleared[T any]() Field[T] {
	return Field[T]{Op: Clear}
}

// FromPtr returns Set(*p) for a non-nil p and Clear otherwise.
func FromPtr[T any](p *T) Field[T] {
	if p == nil {
		return Cleared[T]()
	}
	return SetTo(*p)
}

// merge applies f to the previous value.
func (f Field[T]) merge(prev *T) *T {
	switch f.Op {
	case Set:
		v := f.Value
		return &v
	case Clear:
		return nil
	default:
		return prev
	}
}

// ptr returns the value when f is Set, nil otherwise.
func (f Field[T]) ptr() *T {
	if f.Op != Set {
		return nil
	}
	v := f.Value
	return &v
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*f = Cleared[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = SetTo(v)
	return nil
}
