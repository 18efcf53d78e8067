package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

var forbidden = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

// IsForbidden reports whether key is one of the reserved property names that
// must never be read, written, or created.
func IsForbidden(key string) bool {
	_, ok := forbidden[key]
	return ok
}

// ForbiddenKeys returns the reserved key set in a stable order.
func ForbiddenKeys() []string {
	return []string{"__proto__", "constructor", "prototype"}
}

// Map is an insertion-ordered mapping from string keys to values.
// The zero value is ready to use.
type Map struct {
	keys []string
	vals map[string]any
}

// NewMap creates an empty Map.
func NewMap() *Map {
	return &Map{vals: make(map[string]any)}
}

// Len returns the number of keys.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Get returns the value stored under key.
func (m *Map) Get(key string) (any, bool) {
	if m == nil || IsForbidden(key) {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set stores value under key. A new key is appended to the key order;
// an existing key keeps its position. Forbidden keys are ignored and Set
// reports false.
func (m *Map) Set(key string, value any) bool {
	if IsForbidden(key) {
		return false
	}
	if m.vals == nil {
		m.vals = make(map[string]any)
	}
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = value
	return true
}

// Delete removes key. It reports whether the key was present.
func (m *Map) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.vals[key]; !ok {
		return false
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns a copy of the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map) Range(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	for _, k := range m.Keys() {
		v, ok := m.vals[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// Clone returns a deep copy of m.
func (m *Map) Clone() *Map {
	if m == nil {
		return nil
	}
	out := &Map{keys: make([]string, len(m.keys)), vals: make(map[string]any, len(m.vals))}
	copy(out.keys, m.keys)
	for k, v := range m.vals {
		out.vals[k] = CloneValue(v)
	}
	return out
}

// Equal reports whether m and other hold the same keys and deeply equal
// values. Key order is not compared.
func (m *Map) Equal(other *Map) bool {
	if m.Len() != other.Len() {
		return false
	}
	for _, k := range m.Keys() {
		ov, ok := other.Get(k)
		if !ok {
			return false
		}
		v, _ := m.Get(k)
		if !EqualValues(v, ov) {
			return false
		}
	}
	return true
}

// String renders m as JSON; it is meant for logs and test failures.
func (m *Map) String() string {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("params.Map(%d keys)", m.Len())
	}
	return string(b)
}

// MarshalJSON encodes m as a JSON object in insertion order.
func (m *Map) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(m.vals[k])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ErrNotObject is returned when JSON input that must be an object is not.
var ErrNotObject = errors.New("params: expected JSON object")

// ParseJSON decodes a JSON object into a Map, keeping key order. Input that
// is valid JSON but not an object fails with ErrNotObject.
func ParseJSON(data []byte) (*Map, error) {
	if t := bytes.TrimSpace(data); bytes.Equal(t, []byte("null")) {
		return nil, fmt.Errorf("%w, got null", ErrNotObject)
	}
	m := NewMap()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UnmarshalJSON decodes a JSON object into m, preserving the key order of
// the input. Numbers are kept as json.Number so their text survives.
func (m *Map) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("%w, got %v", ErrNotObject, tok)
	}
	out, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*m = *out
	return nil
}

func decodeObject(dec *json.Decoder) (*Map, error) {
	out := NewMap()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("params: expected object key, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			seq := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				seq = append(seq, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return seq, nil
		}
		return nil, fmt.Errorf("params: unexpected delimiter %v", t)
	default:
		return t, nil
	}
}

// FromAny converts a generic JSON-style tree (map[string]any, []any,
// []string, scalars) into the canonical shape. Plain Go maps have no key
// order, so their keys are inserted sorted.
func FromAny(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			out.Set(k, FromAny(t[k]))
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewMap()
		for _, k := range keys {
			out.Set(k, t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// MapFromAny is FromAny for a root object. Non-object input yields an
// empty Map.
func MapFromAny(v any) *Map {
	if m, ok := FromAny(v).(*Map); ok && m != nil {
		return m
	}
	return NewMap()
}

// ToAny converts a canonical value into plain map[string]any / []any trees,
// the shape produced by encoding/json.
func ToAny(v any) any {
	switch t := v.(type) {
	case *Map:
		if t == nil {
			return nil
		}
		out := make(map[string]any, t.Len())
		t.Range(func(k string, e any) bool {
			out[k] = ToAny(e)
			return true
		})
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToAny(e)
		}
		return out
	default:
		return v
	}
}

// CloneValue deep-copies a canonical value.
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Map:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// EqualValues deeply compares two canonical values. Scalars compare by
// their wire form, so "1" equals 1.
func EqualValues(a, b any) bool {
	switch at := a.(type) {
	case *Map:
		bt, ok := b.(*Map)
		return ok && at.Equal(bt)
	case []any:
		bt, ok := b.([]any)
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !EqualValues(at[i], bt[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	if b == nil {
		return false
	}
	as, aok := FormatScalar(a)
	bs, bok := FormatScalar(b)
	if aok && bok {
		return as == bs
	}
	return reflect.DeepEqual(a, b)
}

// IsContainer reports whether v is a *Map or a sequence.
func IsContainer(v any) bool {
	switch v.(type) {
	case *Map, []any:
		return true
	}
	return false
}

// FormatScalar renders a scalar value in its wire form. It reports false for
// nil and for containers.
func FormatScalar(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case bool:
		return strconv.FormatBool(t), true
	case int:
		return strconv.Itoa(t), true
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(t).Int(), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(t).Uint(), 10), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case *Map, []any:
		return "", false
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprintf("%v", v), true
	}
}
