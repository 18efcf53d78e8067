// Package pathresolve navigates and mutates nested params values using
// dot-separated paths such as "filters.tags.0".
//
// Missing intermediate containers are created on write. A numeric-looking
// next segment creates a sequence, anything else creates a *params.Map, so
// "foo.0" yields {foo: [..]} and "foo.bar" yields {foo: {bar: ..}}. This
// mirrors the bracket syntax of query strings, foo[0] versus foo[bar].
//
// Any path that traverses a forbidden key (see params.IsForbidden) is
// neutralized: reads miss and writes are dropped without error.
package pathresolve

import (
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/vango-dev/urlstate/pkg/params"
)

// MaxIndex is the largest sequence index a write may address. Larger
// indexes are dropped so a short query string cannot force a huge
// allocation.
const MaxIndex = 1000

// logger returns the current default logger tagged with this package.
func logger() *slog.Logger {
	return slog.Default().With("component", "pathresolve")
}

// Split breaks a dot path into segments. The empty path has no segments.
func Split(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

var bracketSegment = regexp.MustCompile(`\[([^\]]+)\]`)

// BracketToDot rewrites bracket notation to dot notation:
// "a[b][0]" becomes "a.b.0". Empty brackets are left untouched.
func BracketToDot(key string) string {
	return bracketSegment.ReplaceAllString(key, ".$1")
}

// IsNumeric reports whether a segment implies a sequence container: a
// finite decimal number, or a blank segment (which reads as 0). Spellings
// strconv accepts but a URL index never is, such as "inf", "Infinity" or
// hex floats, are not numeric.
func IsNumeric(segment string) bool {
	s := strings.TrimSpace(segment)
	if s == "" {
		return true
	}
	if hasHexPrefix(s) {
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
}

func hasHexPrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// ResolveContainer walks keys from data, creating missing intermediates,
// and returns the container the final segment would be written into. hint
// is the final segment; it decides the container kind when the last key is
// missing. It returns nil when a forbidden key is traversed or a scalar
// blocks the path.
func ResolveContainer(keys []string, data *params.Map, hint string) any {
	if data == nil {
		return nil
	}
	var found any
	_, ok := descend(data, keys, hint, true, func(c any) (any, bool) {
		found = c
		return c, true
	})
	if !ok {
		return nil
	}
	return found
}

// Get returns the value at path. It never creates containers; a missing or
// forbidden segment reports false.
func Get(path string, data *params.Map) (any, bool) {
	keys := Split(path)
	if len(keys) == 0 || data == nil {
		return nil, false
	}
	var cur any = data
	for _, key := range keys {
		if params.IsForbidden(key) {
			logger().Debug("forbidden path segment ignored", "op", "get", "path", path)
			return nil, false
		}
		next, ok := child(cur, key)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// Set writes value at path, creating intermediates as needed. It reports
// false when the write was dropped.
func Set(path string, value any, data *params.Map) bool {
	keys := Split(path)
	if len(keys) == 0 || data == nil {
		return false
	}
	final := keys[len(keys)-1]
	_, ok := descend(data, keys[:len(keys)-1], final, true, func(c any) (any, bool) {
		if params.IsForbidden(final) {
			return c, false
		}
		return setChild(c, final, value)
	})
	if !ok {
		logger().Debug("write dropped", "path", path)
	}
	return ok
}

// Delete removes the value at path. Deleting a sequence element leaves a
// hole (nil), and trailing holes are trimmed. It reports whether anything
// was removed.
func Delete(path string, data *params.Map) bool {
	keys := Split(path)
	if len(keys) == 0 || data == nil {
		return false
	}
	final := keys[len(keys)-1]
	removed := false
	descend(data, keys[:len(keys)-1], final, false, func(c any) (any, bool) {
		if params.IsForbidden(final) {
			return c, false
		}
		switch t := c.(type) {
		case *params.Map:
			removed = t.Delete(final)
			return t, true
		case []any:
			i, ok := index(final)
			if !ok || i >= len(t) {
				return t, false
			}
			removed = t[i] != nil
			t[i] = nil
			for len(t) > 0 && t[len(t)-1] == nil {
				t = t[:len(t)-1]
			}
			return t, true
		}
		return c, false
	})
	return removed
}

// descend walks keys below c and hands the container reached to fn. The
// possibly replaced container is written back up the chain, which matters
// for sequences because growing a slice changes its header.
func descend(c any, keys []string, hint string, create bool, fn func(c any) (any, bool)) (any, bool) {
	if len(keys) == 0 {
		return fn(c)
	}
	key := keys[0]
	if params.IsForbidden(key) {
		logger().Debug("forbidden path segment ignored", "segment", key)
		return c, false
	}
	next := hint
	if len(keys) > 1 {
		next = keys[1]
	}

	sub, ok := child(c, key)
	if !ok || sub == nil {
		if !create {
			return c, false
		}
		sub = newContainer(next)
	}
	if !params.IsContainer(sub) {
		return c, false
	}

	updated, ok := descend(sub, keys[1:], hint, create, fn)
	if !ok {
		return c, false
	}
	return setChild(c, key, updated)
}

func newContainer(next string) any {
	if IsNumeric(next) {
		return []any{}
	}
	return params.NewMap()
}

func child(c any, key string) (any, bool) {
	switch t := c.(type) {
	case *params.Map:
		return t.Get(key)
	case []any:
		i, ok := index(key)
		if !ok || i >= len(t) {
			return nil, false
		}
		if t[i] == nil {
			return nil, false
		}
		return t[i], true
	}
	return nil, false
}

func setChild(c any, key string, value any) (any, bool) {
	switch t := c.(type) {
	case *params.Map:
		return t, t.Set(key, value)
	case []any:
		i, ok := index(key)
		if !ok || i > MaxIndex {
			return t, false
		}
		for len(t) <= i {
			t = append(t, nil)
		}
		t[i] = value
		return t, true
	}
	return c, false
}

func index(key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
