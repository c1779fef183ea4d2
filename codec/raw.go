package codec

// String is the identity codec for Go strings.
type String struct{}

func (String) Encode(s string) (string, error) { return s, nil }
func (String) Decode(s string) (string, error) { return s, nil }

// Bytes stores a raw byte slice as-is. Redis strings are binary safe.
type Bytes struct{}

func (Bytes) Encode(b []byte) (string, error) { return string(b), nil }
func (Bytes) Decode(s string) ([]byte, error) { return []byte(s), nil }
