package codec

import (
	"bytes"
	"sort"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// Msgpack is a Codec that serializes values using vmihailenco/msgpack/v5.
// The zero value is ready to use. Every map in the output, at any depth and
// of any key type, has its entries ordered by their encoded key bytes, so
// equal values produce identical members.
//
// Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack[V any] struct{}

func (Msgpack[V]) Encode(v V) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	out, err := canonicalMsgpack(msgpack.NewDecoder(bytes.NewReader(buf.Bytes())))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (Msgpack[V]) Decode(s string) (V, error) {
	var v V
	err := msgpack.Unmarshal([]byte(s), &v)
	return v, err
}

// canonicalMsgpack re-emits the next value from dec with map entries sorted
// by encoded key. msgpack's own key sorting covers only a few string-keyed
// map types.
func canonicalMsgpack(dec *msgpack.Decoder) ([]byte, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}
	switch {
	case msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32:
		n, err := dec.DecodeMapLen()
		if err != nil {
			return nil, err
		}
		entries := make([][2][]byte, n)
		for i := range entries {
			if entries[i][0], err = canonicalMsgpack(dec); err != nil {
				return nil, err
			}
			if entries[i][1], err = canonicalMsgpack(dec); err != nil {
				return nil, err
			}
		}
		sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i][0], entries[j][0]) < 0 })

		var buf bytes.Buffer
		if err := msgpack.NewEncoder(&buf).EncodeMapLen(n); err != nil {
			return nil, err
		}
		for _, e := range entries {
			buf.Write(e[0])
			buf.Write(e[1])
		}
		return buf.Bytes(), nil

	case msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32:
		n, err := dec.DecodeArrayLen()
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := msgpack.NewEncoder(&buf).EncodeArrayLen(n); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			elem, err := canonicalMsgpack(dec)
			if err != nil {
				return nil, err
			}
			buf.Write(elem)
		}
		return buf.Bytes(), nil

	default:
		return dec.DecodeRaw()
	}
}
