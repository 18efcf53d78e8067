package history

import (
	"log/slog"
	"net/url"
	"sync"
)

type listenerEntry struct {
	id uint64
	fn func(Change)
}

// Bridge wraps a History and notifies listeners about URL changes.
type Bridge struct {
	h History

	mu        sync.Mutex
	listeners []listenerEntry
	nextID    uint64
	skip      bool

	metrics *Metrics
	logger  *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the bridge logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithMetrics records navigation counters into m.
func WithMetrics(m *Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// Observe wraps h. When h implements PopSource, its back/forward events are
// routed through PopState.
func Observe(h History, opts ...Option) *Bridge {
	b := &Bridge{h: h, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "history")
	if ps, ok := h.(PopSource); ok {
		ps.OnPopState(b.PopState)
	}
	return b
}

// History returns the wrapped History.
func (b *Bridge) History() History {
	return b.h
}

// State implements History.
func (b *Bridge) State() State {
	return b.h.State()
}

// Location implements History.
func (b *Bridge) Location() *url.URL {
	return b.h.Location()
}

// ReplaceState replaces the current entry and notifies listeners unless
// notifications are suppressed.
func (b *Bridge) ReplaceState(state State, title, url string) {
	b.h.ReplaceState(state, title, url)
	b.afterWrite(SourceReplace)
}

// PushState adds an entry and notifies listeners unless notifications are
// suppressed.
func (b *Bridge) PushState(state State, title, url string) {
	b.h.PushState(state, title, url)
	b.afterWrite(SourcePush)
}

// Navigate writes with the given mode.
func (b *Bridge) Navigate(mode Mode, state State, url string) {
	if mode == ModePush {
		b.PushState(state, "", url)
		return
	}
	b.ReplaceState(state, "", url)
}

// Untrack runs fn with listener notification suppressed. History writes
// made inside fn still reach the wrapped History. Nested calls keep the
// outer suppression in place.
func (b *Bridge) Untrack(fn func()) {
	b.mu.Lock()
	prev := b.skip
	b.skip = true
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.skip = prev
		b.mu.Unlock()
	}()
	fn()
}

// Suppressed reports whether notifications are currently suppressed.
func (b *Bridge) Suppressed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.skip
}

// OnURLChange registers fn. Listeners run in registration order. The
// returned function unregisters fn.
func (b *Bridge) OnURLChange(fn func(Change)) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, l := range b.listeners {
			if l.id == id {
				b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (b *Bridge) ListenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// PopState reports a back/forward navigation. It is never suppressed.
// A nil u falls back to the wrapped History's location.
func (b *Bridge) PopState(state State, u *url.URL) {
	if u == nil {
		u = b.h.Location()
	}
	b.metrics.pop()
	b.dispatch(Change{URL: u, State: state, Source: SourcePop})
}

func (b *Bridge) afterWrite(src Source) {
	b.metrics.navigation(src)

	b.mu.Lock()
	skip := b.skip
	b.mu.Unlock()
	if skip {
		b.metrics.suppress()
		return
	}
	b.dispatch(Change{URL: b.h.Location(), State: b.h.State(), Source: src})
}

func (b *Bridge) dispatch(c Change) {
	b.mu.Lock()
	listeners := make([]listenerEntry, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()

	b.logger.Debug("url changed", "source", c.Source.String(), "url", c.URL.String(), "listeners", len(listeners))
	for _, l := range listeners {
		l.fn(c)
	}
}
