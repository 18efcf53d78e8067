// Package history unifies programmatic and user-driven navigation into one
// stream of URL change notifications.
//
// The host environment is reached through the History interface, injected
// at startup (a browser bridge, a WebSocket thin client, or the in-memory
// Memory history used by tests). Observe wraps it in a Bridge. The Bridge
// is itself a History: hand it to every piece of code that navigates so
// that every ReplaceState or PushState, whoever issues it, reaches the
// registered listeners.
//
//	b := history.Observe(history.NewMemory("https://example.com/search"))
//	stop := b.OnURLChange(func(c history.Change) {
//	    fmt.Println("now at", c.URL)
//	})
//	defer stop()
//
//	b.PushState(nil, "", "?q=go")      // listeners see ?q=go
//	b.Untrack(func() {
//	    b.ReplaceState(nil, "", "?q=gopher") // listeners are not called
//	})
//
// Back/forward navigation enters through PopState, or automatically when
// the History also implements PopSource.
package history

import (
	"net/url"
)

// QueryKey is the state payload key holding the serialized params store.
const QueryKey = "query"

// State is the payload stored with a history entry.
type State map[string]any

// Clone returns a shallow copy of s. The result is never nil.
func (s State) Clone() State {
	out := make(State, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Query returns the serialized store carried by the state, if any.
func (s State) Query() (map[string]any, bool) {
	if s == nil {
		return nil, false
	}
	q, ok := s[QueryKey].(map[string]any)
	return q, ok
}

// History is the host's navigation-state API.
type History interface {
	// ReplaceState replaces the current entry.
	ReplaceState(state State, title, url string)

	// PushState adds a new entry.
	PushState(state State, title, url string)

	// State returns the payload of the current entry.
	State() State

	// Location returns the URL of the current entry.
	Location() *url.URL
}

// PopSource is implemented by histories that can report back/forward
// navigation on their own.
type PopSource interface {
	OnPopState(fn func(state State, u *url.URL))
}

// Mode selects how a write lands in the history.
type Mode int

const (
	// ModeReplace replaces the current entry (default).
	ModeReplace Mode = iota

	// ModePush adds a new entry.
	ModePush
)

func (m Mode) String() string {
	if m == ModePush {
		return "push"
	}
	return "replace"
}

// ParseMode parses "push" or "replace". Anything else is replace.
func ParseMode(s string) Mode {
	if s == "push" {
		return ModePush
	}
	return ModeReplace
}

// Source tells listeners what caused a change.
type Source int

const (
	SourceReplace Source = iota
	SourcePush
	SourcePop
)

func (s Source) String() string {
	switch s {
	case SourcePush:
		return "push"
	case SourcePop:
		return "pop"
	default:
		return "replace"
	}
}

// Change is delivered to listeners on every notified navigation.
type Change struct {
	URL    *url.URL
	State  State
	Source Source
}

// URLFor builds the URL argument of a history write: "?query", or the bare
// path when query is empty.
func URLFor(path, query string) string {
	if query != "" {
		return "?" + query
	}
	if path == "" {
		return "/"
	}
	return path
}
