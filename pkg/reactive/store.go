package reactive

import (
	"sync"

	"github.com/vango-dev/urlstate/pkg/params"
	"github.com/vango-dev/urlstate/pkg/pathresolve"
)

// source provides subscriber management for a reactive container.
type source struct {
	subs []Listener
}

func (s *source) subscribe(l Listener) {
	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}
	s.subs = append(s.subs, l)
}

func (s *source) unsubscribe(l Listener) {
	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *source) snapshot() []Listener {
	out := make([]Listener, len(s.subs))
	copy(out, s.subs)
	return out
}

// Store is a reactive nested mapping. Reads inside an effect subscribe the
// effect; writes that change the data notify every subscriber. Values
// handed in and out are deep copies, so callers can never mutate the store
// behind its back.
type Store struct {
	rt   *Runtime
	base source

	mu   sync.RWMutex
	data *params.Map
}

// NewStore creates a store seeded with a copy of initial.
func (rt *Runtime) NewStore(initial *params.Map) *Store {
	data := initial.Clone()
	if data == nil {
		data = params.NewMap()
	}
	return &Store{rt: rt, data: data}
}

// Runtime returns the runtime the store notifies through.
func (s *Store) Runtime() *Runtime {
	return s.rt
}

// Track subscribes the current effect to every change of the store without
// reading anything.
func (s *Store) Track() {
	if l := s.rt.listener; l != nil {
		s.base.subscribe(l)
		l.addSource(&s.base)
	}
}

// Get returns a copy of the value at a dot path and subscribes the current
// effect.
func (s *Store) Get(path string) (any, bool) {
	s.Track()
	return s.Peek(path)
}

// Peek is Get without subscribing.
func (s *Store) Peek(path string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := pathresolve.Get(path, s.data)
	if !ok {
		return nil, false
	}
	return params.CloneValue(v), true
}

// Raw returns an untracked deep copy of the whole store.
func (s *Store) Raw() *params.Map {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// Set writes a copy of value at path. Subscribers are notified only when
// the stored value actually changed. It reports whether the write was
// accepted; writes through forbidden keys are not.
func (s *Store) Set(path string, value any) bool {
	s.mu.Lock()
	old, existed := pathresolve.Get(path, s.data)
	if existed && params.EqualValues(old, value) {
		s.mu.Unlock()
		return true
	}
	ok := pathresolve.Set(path, params.CloneValue(value), s.data)
	s.mu.Unlock()

	if ok {
		s.rt.notify(s.base.snapshot())
	}
	return ok
}

// Delete removes the value at path and notifies subscribers when something
// was removed.
func (s *Store) Delete(path string) bool {
	s.mu.Lock()
	removed := pathresolve.Delete(path, s.data)
	s.mu.Unlock()

	if removed {
		s.rt.notify(s.base.snapshot())
	}
	return removed
}

// Replace merges next into the store: top-level keys present in next are
// assigned, keys missing from next are deleted. Subscribers are notified
// once if anything changed.
func (s *Store) Replace(next *params.Map) bool {
	if next == nil {
		next = params.NewMap()
	}
	changed := false

	s.mu.Lock()
	for _, k := range s.data.Keys() {
		if !next.Has(k) {
			s.data.Delete(k)
			changed = true
		}
	}
	next.Range(func(k string, v any) bool {
		if old, ok := s.data.Get(k); ok && params.EqualValues(old, v) {
			return true
		}
		if s.data.Set(k, params.CloneValue(v)) {
			changed = true
		}
		return true
	})
	s.mu.Unlock()

	if changed {
		s.rt.notify(s.base.snapshot())
	}
	return changed
}
