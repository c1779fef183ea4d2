package codec

import "fmt"

// LimitCodec wraps another codec to enforce a maximum allowed payload size
// at Decode time. Encode is forwarded to Inner unchanged.
// If MaxDecode <= 0, size limiting is disabled.
//
// Typical use: a shared collection other writers can fill with oversized members.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxDecode int
}

func (c LimitCodec[V]) Encode(v V) (string, error) { return c.Inner.Encode(v) }
func (c LimitCodec[V]) Decode(s string) (V, error) {
	if c.MaxDecode > 0 && len(s) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(s), c.MaxDecode)
	}
	return c.Inner.Decode(s)
}
