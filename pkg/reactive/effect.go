package reactive

// Effect is a side effect that re-runs whenever a store it read during its
// last run changes. Effects run once immediately when created.
type Effect struct {
	id      uint64
	rt      *Runtime
	fn      func() Cleanup
	cleanup Cleanup
	sources []*source

	running  bool
	dirty    bool
	disposed bool
}

// Effect creates and runs an effect.
func (rt *Runtime) Effect(fn func() Cleanup) *Effect {
	e := &Effect{id: nextID(), rt: rt, fn: fn}
	e.run()
	return e
}

// ID implements Listener.
func (e *Effect) ID() uint64 {
	return e.id
}

// MarkDirty implements Listener. An effect invalidated while it is running
// runs again once the current run returns.
func (e *Effect) MarkDirty() {
	if e.disposed {
		return
	}
	if e.running {
		e.dirty = true
		return
	}
	e.run()
}

// Dispose stops the effect, runs its pending cleanup and drops its
// subscriptions. Dispose is idempotent.
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.unsubscribe()
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	return e.disposed
}

func (e *Effect) addSource(s *source) {
	for _, existing := range e.sources {
		if existing == s {
			return
		}
	}
	e.sources = append(e.sources, s)
}

func (e *Effect) unsubscribe() {
	for _, s := range e.sources {
		s.unsubscribe(e)
	}
	e.sources = e.sources[:0]
}

func (e *Effect) run() {
	e.running = true
	defer func() { e.running = false }()

	for i := 0; ; i++ {
		if e.disposed {
			return
		}
		e.dirty = false

		if e.cleanup != nil {
			e.cleanup()
			e.cleanup = nil
		}
		e.unsubscribe()

		old := e.rt.listener
		e.rt.listener = e
		cleanup := e.runBody()
		e.rt.listener = old
		e.cleanup = cleanup

		if !e.dirty {
			return
		}
		if i+1 >= MaxReruns {
			e.rt.logger.Warn("effect invalidated itself too many times; stopping", "effect", e.id, "reruns", MaxReruns)
			return
		}
	}
}

func (e *Effect) runBody() (cleanup Cleanup) {
	defer func() {
		if r := recover(); r != nil {
			e.rt.logger.Error("effect panicked", "effect", e.id, "panic", r)
			cleanup = nil
		}
	}()
	return e.fn()
}
