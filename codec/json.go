package codec

import "encoding/json"

// JSON encodes with encoding/json. Map keys are sorted by the encoder, so
// encodings are stable for maps and structs.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func (JSON[V]) Decode(s string) (V, error) {
	var v V
	err := json.Unmarshal([]byte(s), &v)
	return v, err
}
