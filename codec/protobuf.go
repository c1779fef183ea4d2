package codec

import "google.golang.org/protobuf/proto"

// Protobuf encodes messages with deterministic marshaling so that equal
// messages map to the same member.
type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) (string, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(v)
	return string(b), err
}

func (c Protobuf[T]) Decode(s string) (T, error) {
	m := c.new()
	err := proto.Unmarshal([]byte(s), m)
	return m, err
}
