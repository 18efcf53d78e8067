package encoding

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vango-dev/urlstate/pkg/params"
)

type base64Encoding struct {
	urlSafe bool
}

var (
	// Base64 is standard base64 with padding.
	Base64 Encoding[string] = base64Encoding{}

	// Base64URL is the URL-safe alphabet ("-" and "_") without padding. Its
	// output never needs percent-encoding inside a query value.
	Base64URL Encoding[string] = base64Encoding{urlSafe: true}
)

func (e base64Encoding) To(value string) any {
	if e.urlSafe {
		return base64.RawURLEncoding.EncodeToString([]byte(value))
	}
	return base64.StdEncoding.EncodeToString([]byte(value))
}

// From accepts either alphabet, with or without padding.
func (e base64Encoding) From(raw any) (string, error) {
	s, ok := params.FormatScalar(raw)
	if !ok {
		return "", fmt.Errorf("encoding: base64 value must be a string, got %T", raw)
	}
	b, err := decodeBase64(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	s = strings.NewReplacer("+", "-", "/", "_").Replace(s)
	return base64.RawURLEncoding.DecodeString(s)
}

type jsonEncoding[T any] struct{}

// JSON stores a value as URL-safe base64 of its JSON form, which keeps an
// arbitrary structure under a single query key.
func JSON[T any]() Encoding[T] {
	return jsonEncoding[T]{}
}

func (jsonEncoding[T]) To(value T) any {
	data, err := json.Marshal(value)
	if err != nil {
		return nil
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

func (jsonEncoding[T]) From(raw any) (T, error) {
	var result T
	s, ok := params.FormatScalar(raw)
	if !ok || s == "" {
		return result, fmt.Errorf("encoding: json value must be a non-empty string, got %T", raw)
	}
	data, err := decodeBase64(s)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, err
	}
	return result, nil
}

type commaEncoding struct{}

// Comma stores a string slice as one comma separated value: tags=go,web.
// Commas are left literal by the query-string codec, so the URL stays
// readable.
func Comma() Encoding[[]string] {
	return commaEncoding{}
}

func (commaEncoding) To(value []string) any {
	if len(value) == 0 {
		return nil
	}
	return strings.Join(value, ",")
}

func (commaEncoding) From(raw any) ([]string, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := params.FormatScalar(e); ok {
				out = append(out, s)
			}
		}
		return out, nil
	}
	s, ok := params.FormatScalar(raw)
	if !ok {
		return nil, fmt.Errorf("encoding: comma value must be a string, got %T", raw)
	}
	if s == "" {
		return []string{}, nil
	}
	return strings.Split(s, ","), nil
}
