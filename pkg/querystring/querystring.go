// Package querystring converts between nested params values and
// bracket-notation query strings.
//
//	{foo: "bar"}            <->  foo=bar
//	{foo: ["bar"]}          <->  foo[0]=bar
//	{foo: {bar: ["baz"]}}   <->  foo[bar][0]=baz
//
// Bracket notation keeps compatibility with the nested-params conventions of
// common server frameworks; internally paths are dot separated and written
// through package pathresolve.
package querystring

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vango-dev/urlstate/pkg/params"
	"github.com/vango-dev/urlstate/pkg/pathresolve"
)

// Entry is one key=value pair of an encoded query string. Key is in bracket
// notation; its segments and Value are already escaped.
type Entry struct {
	Key   string
	Value string
}

// Encode renders m as a query string without a leading "?". Entries follow
// the insertion order of m, depth first. nil leaves are omitted.
func Encode(m *params.Map) string {
	entries := Entries(m)
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(e.Key)
		b.WriteByte('=')
		b.WriteString(e.Value)
	}
	return b.String()
}

// Entries flattens m into escaped key/value pairs.
func Entries(m *params.Map) []Entry {
	var entries []Entry
	m.Range(func(k string, v any) bool {
		entries = appendEntries(entries, EscapeValue(k), v)
		return true
	})
	return entries
}

func appendEntries(entries []Entry, key string, v any) []Entry {
	switch t := v.(type) {
	case nil:
		return entries
	case *params.Map:
		t.Range(func(k string, e any) bool {
			entries = appendEntries(entries, key+"["+EscapeValue(k)+"]", e)
			return true
		})
		return entries
	case []any:
		for i, e := range t {
			entries = appendEntries(entries, key+"["+strconv.Itoa(i)+"]", e)
		}
		return entries
	}
	s, ok := params.FormatScalar(v)
	if !ok {
		return entries
	}
	return append(entries, Entry{Key: key, Value: EscapeValue(s)})
}

// EscapeValue form-encodes a value. Spaces become "+" (RFC 1738) and commas
// stay literal.
func EscapeValue(s string) string {
	escaped := url.QueryEscape(s)
	escaped = strings.ReplaceAll(escaped, "%20", "+")
	return strings.ReplaceAll(escaped, "%2C", ",")
}

// Decode parses a query string into a fresh Map. A leading "?" is ignored.
// Pairs with an empty value are dropped, as are pairs whose key contains a
// forbidden segment or cannot be unescaped. When a key repeats, the last
// value wins.
func Decode(query string) *params.Map {
	data := params.NewMap()
	query = strings.TrimPrefix(query, "?")
	for query != "" {
		var pair string
		pair, query, _ = strings.Cut(query, "&")
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil || value == "" {
			continue
		}
		insert(data, key, value)
	}
	return data
}

// DecodeValues builds a Map from already parsed url.Values, taking the last
// value of each key. Key order follows sorted keys since url.Values is a
// plain map.
func DecodeValues(values url.Values) *params.Map {
	return Decode(values.Encode())
}

func insert(data *params.Map, key, value string) {
	if !strings.Contains(key, "[") {
		data.Set(key, value)
		return
	}
	path := pathresolve.BracketToDot(key)
	for _, seg := range pathresolve.Split(path) {
		if params.IsForbidden(seg) {
			return
		}
	}
	pathresolve.Set(path, value, data)
}
