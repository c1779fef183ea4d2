package hotmirror

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyName = errors.New("hotmirror: name is required")
	ErrNilStore  = errors.New("hotmirror: store is required")
	ErrNilCodec  = errors.New("hotmirror: codec is required")

	// ErrNotFound is matched by every *KeyError.
	ErrNotFound = errors.New("hotmirror: key not found")

	// ErrUpdateArgs is returned by Map.Update when more than one positional
	// source (Mapping or PairList) is supplied.
	ErrUpdateArgs = errors.New("hotmirror: update expects at most one positional source")
)

// KeyError reports a map lookup of an absent key.
type KeyError struct {
	Name string // logical collection name
	Key  string // encoded key
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("hotmirror: key %q not found in %q", e.Key, e.Name)
}

func (e *KeyError) Unwrap() error { return ErrNotFound }

// DecodeError reports a stored member, key or value the configured codec
// could not decode.
type DecodeError struct {
	Name string
	Raw  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("hotmirror: decode %q in %q: %v", e.Raw, e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError wraps a codec failure on a caller-supplied value. Nothing is
// sent to the store when encoding fails.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("hotmirror: encode for %q: %v", e.Name, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
