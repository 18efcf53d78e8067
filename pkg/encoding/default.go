package encoding

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/vango-dev/urlstate/pkg/params"
)

type defaultEncoding[T any] struct{}

var mapType = reflect.TypeOf(params.Map{})

// Default returns the coercion-based Encoding for T.
//
// Strings pass through unchanged. Numbers and booleans use strconv. Slices
// and arrays become sequences, string-keyed maps become mappings, and
// structs become mappings keyed by their `url` tag or lowercased field name
// (zero fields are left out). Decoding reverses the same rules and returns
// an error when the stored shape does not fit T.
func Default[T any]() Encoding[T] {
	return defaultEncoding[T]{}
}

func (defaultEncoding[T]) To(value T) any {
	return toShape(reflect.ValueOf(&value).Elem())
}

func (defaultEncoding[T]) From(raw any) (T, error) {
	var result T
	if err := fromShape(raw, reflect.ValueOf(&result).Elem()); err != nil {
		return result, err
	}
	return result, nil
}

func toShape(v reflect.Value) any {
	switch v.Kind() {
	case reflect.Invalid:
		return nil
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		if v.Kind() == reflect.Interface {
			inner := v.Elem().Interface()
			if params.IsContainer(inner) {
				return params.CloneValue(inner)
			}
		}
		return toShape(v.Elem())
	case reflect.String:
		return v.String()
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil
		}
		out := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			out[i] = toShape(v.Index(i))
		}
		return out
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return nil
		}
		keys := make([]string, 0, v.Len())
		for _, k := range v.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		out := params.NewMap()
		for _, k := range keys {
			out.Set(k, toShape(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key()))))
		}
		return out
	case reflect.Struct:
		if v.Type() == mapType && v.CanAddr() {
			return v.Addr().Interface().(*params.Map).Clone()
		}
		out := params.NewMap()
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() {
				continue
			}
			key := fieldKey(field)
			if key == "-" || v.Field(i).IsZero() {
				continue
			}
			out.Set(key, toShape(v.Field(i)))
		}
		return out
	default:
		return formatValue(v)
	}
}

func fromShape(raw any, v reflect.Value) error {
	if raw == nil {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface:
		rv := reflect.ValueOf(params.CloneValue(raw))
		if !rv.Type().AssignableTo(v.Type()) {
			return fmt.Errorf("encoding: cannot decode %T into %s", raw, v.Type())
		}
		v.Set(rv)
		return nil
	case reflect.Pointer:
		elem := reflect.New(v.Type().Elem())
		if err := fromShape(raw, elem.Elem()); err != nil {
			return err
		}
		v.Set(elem)
		return nil
	case reflect.Slice:
		seq := asSequence(raw)
		out := reflect.MakeSlice(v.Type(), len(seq), len(seq))
		for i, e := range seq {
			if err := fromShape(e, out.Index(i)); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil
	case reflect.Array:
		seq := asSequence(raw)
		for i := 0; i < v.Len() && i < len(seq); i++ {
			if err := fromShape(seq[i], v.Index(i)); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		m, ok := raw.(*params.Map)
		if !ok || v.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("encoding: cannot decode %T into %s", raw, v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), m.Len())
		var err error
		m.Range(func(k string, e any) bool {
			elem := reflect.New(v.Type().Elem()).Elem()
			if err = fromShape(e, elem); err != nil {
				return false
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(v.Type().Key()), elem)
			return true
		})
		if err != nil {
			return err
		}
		v.Set(out)
		return nil
	case reflect.Struct:
		m, ok := raw.(*params.Map)
		if !ok {
			return fmt.Errorf("encoding: cannot decode %T into %s", raw, v.Type())
		}
		if v.Type() == mapType {
			v.Set(reflect.ValueOf(m.Clone()).Elem())
			return nil
		}
		t := v.Type()
		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			if !field.IsExported() || !v.Field(i).CanSet() {
				continue
			}
			key := fieldKey(field)
			if key == "-" {
				continue
			}
			if e, ok := m.Get(key); ok {
				if err := fromShape(e, v.Field(i)); err != nil {
					return err
				}
			}
		}
		return nil
	}

	s, ok := params.FormatScalar(raw)
	if !ok {
		return fmt.Errorf("encoding: cannot decode %T into %s", raw, v.Type())
	}
	return setFieldValue(v, s)
}

// asSequence treats a lone scalar as a one-element sequence, the way a
// repeated query key with a single occurrence is usually read.
func asSequence(raw any) []any {
	switch t := raw.(type) {
	case []any:
		return t
	case *params.Map:
		var out []any
		t.Range(func(_ string, e any) bool {
			out = append(out, e)
			return true
		})
		return out
	}
	return []any{raw}
}

func fieldKey(field reflect.StructField) string {
	key := field.Tag.Get("url")
	if key == "" {
		key = strings.ToLower(field.Name)
	}
	if name, _, found := strings.Cut(key, ","); found {
		key = name
	}
	return key
}

func formatValue(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	default:
		return fmt.Sprintf("%v", v.Interface())
	}
}

func setFieldValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	default:
		return fmt.Errorf("encoding: unsupported type %s", v.Type())
	}
	return nil
}
