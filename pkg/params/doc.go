// Package params defines the value shapes shared by the query-string state
// engine: an insertion-ordered string-keyed Map, sequences ([]any), and
// scalars.
//
// A value stored in a Map is one of:
//   - a scalar: string, bool, or any Go integer or float type
//   - a sequence: []any, where nil elements are holes
//   - a mapping: *Map
//
// nil plays the role of "undefined": it is never written to a query string.
//
// # Forbidden keys
//
// The keys "__proto__", "constructor" and "prototype" are reserved. A Map
// silently refuses to store them, and the path resolver and codec drop any
// path that traverses one. This keeps query strings that target those names
// from ever reaching code that interprets them specially (for example a
// browser client that merges the store into a JavaScript object).
package params
