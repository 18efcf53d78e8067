package history

import (
	"net/url"
	"sync"
)

type memoryEntry struct {
	state State
	url   *url.URL
}

// Memory is an in-memory History with a back/forward stack. It is used by
// tests and tools that run the engine without a browser.
type Memory struct {
	mu      sync.Mutex
	entries []memoryEntry
	index   int
	onPop   []func(State, *url.URL)
}

// NewMemory creates a history whose only entry is rawURL. An unparsable
// URL starts at "/".
func NewMemory(rawURL string) *Memory {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	return &Memory{entries: []memoryEntry{{url: u}}}
}

// ReplaceState implements History.
func (m *Memory) ReplaceState(state State, _ string, rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.entries[m.index]
	m.entries[m.index] = memoryEntry{state: state, url: resolve(cur.url, rawURL)}
}

// PushState implements History. Forward entries are discarded.
func (m *Memory) PushState(state State, _ string, rawURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.entries[m.index]
	m.entries = append(m.entries[:m.index+1], memoryEntry{state: state, url: resolve(cur.url, rawURL)})
	m.index++
}

// State implements History.
func (m *Memory) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index].state
}

// Location implements History.
func (m *Memory) Location() *url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *m.entries[m.index].url
	return &u
}

// OnPopState implements PopSource.
func (m *Memory) OnPopState(fn func(State, *url.URL)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPop = append(m.onPop, fn)
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Index returns the position of the current entry.
func (m *Memory) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Back moves one entry back. It reports false at the start of the stack.
func (m *Memory) Back() bool {
	return m.Go(-1)
}

// Forward moves one entry forward.
func (m *Memory) Forward() bool {
	return m.Go(1)
}

// Go moves delta entries and fires the pop handlers. A move outside the
// stack, or a zero delta, does nothing.
func (m *Memory) Go(delta int) bool {
	m.mu.Lock()
	target := m.index + delta
	if delta == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return false
	}
	m.index = target
	e := m.entries[target]
	handlers := make([]func(State, *url.URL), len(m.onPop))
	copy(handlers, m.onPop)
	m.mu.Unlock()

	u := *e.url
	for _, fn := range handlers {
		fn(e.state, &u)
	}
	return true
}

func resolve(base *url.URL, rawURL string) *url.URL {
	if rawURL == "" {
		u := *base
		return &u
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		u := *base
		return &u
	}
	return base.ResolveReference(ref)
}
