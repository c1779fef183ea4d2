// Package codec converts caller values to and from the strings kept in the
// shared store. Mirrors compare and look up members by their encoded form, so
// an Encode implementation must be deterministic: equal values must encode to
// identical strings.
package codec

// Codec encodes/decodes values V to the store's string representation.
type Codec[V any] interface {
	Encode(V) (string, error)
	Decode(string) (V, error)
}
