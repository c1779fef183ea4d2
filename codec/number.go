package codec

import "strconv"

type integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Int encodes signed integers in base 10.
type Int[T integer] struct{}

func (Int[T]) Encode(v T) (string, error) { return strconv.FormatInt(int64(v), 10), nil }

// Decode rejects values outside T's range instead of wrapping them.
func (Int[T]) Decode(s string) (T, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if int64(T(n)) != n {
		return 0, &strconv.NumError{Func: "ParseInt", Num: s, Err: strconv.ErrRange}
	}
	return T(n), nil
}

// Uint encodes unsigned integers in base 10.
type Uint[T unsigned] struct{}

func (Uint[T]) Encode(v T) (string, error) { return strconv.FormatUint(uint64(v), 10), nil }

func (Uint[T]) Decode(s string) (T, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if uint64(T(n)) != n {
		return 0, &strconv.NumError{Func: "ParseUint", Num: s, Err: strconv.ErrRange}
	}
	return T(n), nil
}

// Float encodes float64 in the shortest form that round-trips ("3.14", not "3.140000").
type Float struct{}

func (Float) Encode(v float64) (string, error) { return strconv.FormatFloat(v, 'g', -1, 64), nil }
func (Float) Decode(s string) (float64, error) { return strconv.ParseFloat(s, 64) }

// Bool encodes as "true"/"false".
type Bool struct{}

func (Bool) Encode(v bool) (string, error) { return strconv.FormatBool(v), nil }
func (Bool) Decode(s string) (bool, error) { return strconv.ParseBool(s) }
