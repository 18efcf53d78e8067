package reactive

import (
	"log/slog"
	"sync/atomic"
)

// MaxReruns bounds how many times an effect re-runs because it invalidated
// itself during its own execution. Hitting the bound means the effect keeps
// writing what it reads.
const MaxReruns = 100

var idCounter atomic.Uint64

func nextID() uint64 {
	return idCounter.Add(1)
}

// Listener is anything that can be notified when a dependency changes.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier, used for de-duplication.
	ID() uint64
}

// Cleanup is returned by an effect body. It runs before the effect re-runs
// and when the effect is disposed.
type Cleanup func()

// Runtime holds the tracking context for one goroutine.
type Runtime struct {
	listener   *Effect
	batchDepth int
	pending    []Listener
	logger     *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for effect diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// NewRuntime creates a Runtime.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{logger: slog.Default()}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger = rt.logger.With("component", "reactive")
	return rt
}

// Batch groups store writes so each affected listener is notified once,
// when the outermost batch completes.
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 {
			rt.flush()
		}
	}()
	fn()
}

// Untracked runs fn without recording its reads as dependencies.
func (rt *Runtime) Untracked(fn func()) {
	old := rt.listener
	rt.listener = nil
	defer func() { rt.listener = old }()
	fn()
}

// Tracking reports whether an effect is currently recording dependencies.
func (rt *Runtime) Tracking() bool {
	return rt.listener != nil
}

func (rt *Runtime) notify(subs []Listener) {
	if rt.batchDepth > 0 {
		rt.pending = append(rt.pending, subs...)
		return
	}
	for _, sub := range subs {
		sub.MarkDirty()
	}
}

func (rt *Runtime) flush() {
	for len(rt.pending) > 0 {
		updates := rt.pending
		rt.pending = nil

		seen := make(map[uint64]bool, len(updates))
		for _, l := range updates {
			if seen[l.ID()] {
				continue
			}
			seen[l.ID()] = true
			l.MarkDirty()
		}
	}
}
