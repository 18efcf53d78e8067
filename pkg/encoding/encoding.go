// Package encoding converts typed field values to and from the string-shaped
// values stored in the params store.
//
// Everything that travels through a query string is a string, a sequence of
// string-shaped values, or a mapping of them. An Encoding[T] maps a Go value
// onto that shape (To) and back (From):
//
//	enc := encoding.Base64URL
//	enc.To("<<???>>")          // "PDw_Pz8-Pg"
//	enc.From("PDw_Pz8-Pg")     // "<<???>>", nil
//
// Default[T] covers strings, numbers, booleans, slices, string-keyed maps
// and flat structs by naive string coercion.
package encoding

import (
	"fmt"

	"github.com/vango-dev/urlstate/pkg/params"
)

// Encoding converts values of type T to and from their string-shaped form.
type Encoding[T any] interface {
	// To converts a value to a string-shaped params value.
	To(value T) any

	// From converts a string-shaped params value back to T.
	From(raw any) (T, error)
}

// Func adapts a pair of functions to Encoding. A nil ToFunc coerces to a
// string; a nil FromFunc falls back to Default[T]().From.
type Func[T any] struct {
	ToFunc   func(T) any
	FromFunc func(any) (T, error)
}

// To implements Encoding.
func (f Func[T]) To(value T) any {
	if f.ToFunc == nil {
		return Coerce(value)
	}
	return f.ToFunc(value)
}

// From implements Encoding.
func (f Func[T]) From(raw any) (T, error) {
	if f.FromFunc == nil {
		return Default[T]().From(raw)
	}
	return f.FromFunc(raw)
}

// Decoder builds a decode-only Encoding. To passes values through naive
// string coercion.
func Decoder[T any](from func(raw any) (T, error)) Encoding[T] {
	return Func[T]{FromFunc: from}
}

// StringDecoder is Decoder for transforms that only ever see scalar values.
func StringDecoder[T any](from func(s string) T) Encoding[T] {
	return Func[T]{FromFunc: func(raw any) (T, error) {
		s, _ := params.FormatScalar(raw)
		return from(s), nil
	}}
}

// Coerce converts a value to its string form. Values that are already
// string-shaped containers pass through.
func Coerce(v any) any {
	if v == nil {
		return nil
	}
	if params.IsContainer(v) {
		return params.CloneValue(v)
	}
	if s, ok := params.FormatScalar(v); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
