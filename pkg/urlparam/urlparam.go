// Package urlparam binds typed fields to paths in a shared params store
// that mirrors the URL query string.
//
// A Context owns the store and the history bridge. Each declared field is
// described by a Query and bound to a dot path; the resulting Binding reads
// and writes the store, and every genuine change is written back to the URL
// as a whole-store push or replace.
//
// Example:
//
//	ctx := urlparam.New(browserHistory)
//
//	// Search input, replaces the current entry
//	search := urlparam.NewQuery("").Bind(ctx, "search")
//
//	// Page number under the public name "p", new entry per change
//	page := urlparam.NewQuery(1).As("p").UsePush().Bind(ctx, "pager.page")
//
//	// Opaque filter blob, always visible in the URL
//	filter := urlparam.NewQuery("all").
//	    Encoding(encoding.Base64URL).
//	    AlwaysShow().
//	    Bind(ctx, "filter")
//
//	search.Set("gophers") // URL becomes ?filter=YWxs&search=gophers
//
// The same bindings can be declared with functional options through Param:
//
//	page := urlparam.Param(ctx, "pager.page", 1, urlparam.Alias("p"), urlparam.Push)
package urlparam

import (
	"encoding/json"
	"reflect"

	"github.com/vango-dev/urlstate/pkg/encoding"
	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/reactive"
)

// Query describes one bound field: its initial value, public alias,
// encoding, visibility, and navigation mode. A Query is a template; Bind
// copies it, so one Query may be bound several times.
type Query[T any] struct {
	initial    T
	alias      string
	enc        encoding.Encoding[T]
	alwaysShow bool
	mode       history.Mode
	equal      func(a, b T) bool
}

// NewQuery creates a descriptor with the given initial value, the default
// encoding, replace navigation, and default values hidden from the URL.
func NewQuery[T any](initial T) *Query[T] {
	return &Query[T]{initial: initial}
}

// As overrides the store path the field is published under.
func (q *Query[T]) As(alias string) *Query[T] {
	q.alias = alias
	return q
}

// Encoding sets the value transform.
func (q *Query[T]) Encoding(enc encoding.Encoding[T]) *Query[T] {
	q.enc = enc
	return q
}

// Decode sets a decode-only transform; values are written with plain
// string coercion.
func (q *Query[T]) Decode(from func(raw any) (T, error)) *Query[T] {
	q.enc = encoding.Decoder(from)
	return q
}

// AlwaysShow keeps the value in the URL even when it equals the initial
// value.
func (q *Query[T]) AlwaysShow() *Query[T] {
	q.alwaysShow = true
	return q
}

// UsePush makes every write driven by this field add a history entry.
func (q *Query[T]) UsePush() *Query[T] {
	q.mode = history.ModePush
	return q
}

// UseReplace makes writes replace the current entry (the default).
func (q *Query[T]) UseReplace() *Query[T] {
	q.mode = history.ModeReplace
	return q
}

// WithEquals sets the function used to compare a value with the initial
// value. reflect.DeepEqual is used by default.
func (q *Query[T]) WithEquals(fn func(a, b T) bool) *Query[T] {
	q.equal = fn
	return q
}

// Bind binds the field living at path to ctx and returns its handle.
func (q *Query[T]) Bind(ctx *Context, path string) *Binding[T] {
	b := &Binding[T]{q: *q, ctx: ctx, path: path}
	if b.q.enc == nil {
		b.q.enc = encoding.Default[T]()
	}
	if b.q.equal == nil {
		b.q.equal = func(x, y T) bool { return reflect.DeepEqual(x, y) }
	}
	b.init()
	return b
}

// ParamOption configures a binding created with Param.
type ParamOption interface {
	applyParam(*paramConfig)
}

type paramConfig struct {
	alias      string
	alwaysShow bool
	mode       history.Mode
}

type modeOption struct {
	mode history.Mode
}

func (o modeOption) applyParam(c *paramConfig) {
	c.mode = o.mode
}

// Mode options as values.
var (
	// Push creates a new history entry on every change.
	Push ParamOption = modeOption{mode: history.ModePush}

	// Replace updates the current entry (default).
	Replace ParamOption = modeOption{mode: history.ModeReplace}
)

type aliasOption string

func (o aliasOption) applyParam(c *paramConfig) {
	c.alias = string(o)
}

// Alias publishes the field under another store path.
func Alias(name string) ParamOption {
	return aliasOption(name)
}

type alwaysShowOption struct{}

func (alwaysShowOption) applyParam(c *paramConfig) {
	c.alwaysShow = true
}

// AlwaysShow keeps default values visible in the URL.
var AlwaysShow ParamOption = alwaysShowOption{}

// Param binds the field at path with functional options. A nil enc uses
// the default encoding.
func Param[T any](ctx *Context, path string, initial T, opts ...ParamOption) *Binding[T] {
	return ParamWithEncoding(ctx, path, initial, nil, opts...)
}

// ParamWithEncoding is Param with an explicit encoding.
func ParamWithEncoding[T any](ctx *Context, path string, initial T, enc encoding.Encoding[T], opts ...ParamOption) *Binding[T] {
	var config paramConfig
	for _, opt := range opts {
		opt.applyParam(&config)
	}
	q := NewQuery(initial).As(config.alias)
	if enc != nil {
		q.Encoding(enc)
	}
	if config.alwaysShow {
		q.AlwaysShow()
	}
	q.mode = config.mode
	return q.Bind(ctx, path)
}

// State is the lifecycle state of a Binding.
type State int

const (
	StateUnbound State = iota
	StateInitializing
	StateBound
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateBound:
		return "bound"
	case StateDisposed:
		return "disposed"
	default:
		return "unbound"
	}
}

// Binding is the live handle of a bound field. The store is the single
// source of truth: Get always decodes the stored value, Set always writes
// it.
type Binding[T any] struct {
	q     Query[T]
	ctx   *Context
	path  string
	state State
	id    uint64

	effect      *reactive.Effect
	snapshot    string
	hasSnapshot bool
}

// init performs unbound -> initializing -> bound.
func (b *Binding[T]) init() {
	b.state = StateInitializing
	store := b.ctx.store
	key := b.Key()

	value := b.q.initial
	raw, found := store.Peek(key)
	if found {
		if v, err := b.q.enc.From(raw); err == nil {
			value = v
		} else {
			b.ctx.logger.Debug("stored value does not decode; using initial value", "key", key, "error", err)
		}
	}

	before := b.serialized(raw, found)
	b.write(value)
	after, ok := store.Peek(key)
	normalized := b.serialized(after, ok) != before

	b.state = StateBound
	b.id = b.ctx.register(b)
	b.effect = b.ctx.rt.Effect(b.track)

	if normalized && !b.ctx.closed {
		b.ctx.rt.Untracked(func() { b.ctx.write(history.ModeReplace) })
	}
}

// track is the change effect: it compares the serialized value at the
// bound path with the last snapshot and writes the URL on a real change.
func (b *Binding[T]) track() reactive.Cleanup {
	raw, ok := b.ctx.store.Get(b.Key())
	snap := b.serialized(raw, ok)
	if !b.hasSnapshot {
		b.snapshot, b.hasSnapshot = snap, true
		return nil
	}
	if snap == b.snapshot {
		return nil
	}
	b.snapshot = snap
	if b.ctx.inbound > 0 || b.ctx.closed {
		return nil
	}
	b.ctx.rt.Untracked(func() { b.ctx.write(b.q.mode) })
	return nil
}

func (b *Binding[T]) serialized(raw any, found bool) string {
	if !found || raw == nil {
		return ""
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return ""
	}
	return string(data)
}

// write stores value, or removes the param when value is the initial value
// and defaults are hidden.
func (b *Binding[T]) write(value T) {
	key := b.Key()
	if !b.q.alwaysShow && b.q.equal(value, b.q.initial) {
		b.ctx.store.Delete(key)
		return
	}
	shape := b.q.enc.To(value)
	if shape == nil {
		b.ctx.store.Delete(key)
		return
	}
	b.ctx.store.Set(key, shape)
}

// Key returns the store path the field is published under: the alias when
// set, the field path otherwise.
func (b *Binding[T]) Key() string {
	if b.q.alias != "" {
		return b.q.alias
	}
	return b.path
}

// Path returns the field path the binding was created with.
func (b *Binding[T]) Path() string {
	return b.path
}

// State returns the lifecycle state.
func (b *Binding[T]) State() State {
	return b.state
}

// Mode returns the navigation mode used for writes.
func (b *Binding[T]) Mode() history.Mode {
	return b.q.mode
}

// Initial returns the initial value.
func (b *Binding[T]) Initial() T {
	return b.q.initial
}

// Get returns the current value, decoded from the store. Inside an effect
// the read is tracked.
func (b *Binding[T]) Get() T {
	raw, ok := b.ctx.store.Get(b.Key())
	return b.decode(raw, ok)
}

// Peek returns the current value without tracking.
func (b *Binding[T]) Peek() T {
	raw, ok := b.ctx.store.Peek(b.Key())
	return b.decode(raw, ok)
}

func (b *Binding[T]) decode(raw any, found bool) T {
	if !found || raw == nil {
		return b.q.initial
	}
	v, err := b.q.enc.From(raw)
	if err != nil {
		b.ctx.logger.Debug("stored value does not decode; using initial value", "key", b.Key(), "error", err)
		return b.q.initial
	}
	return v
}

// Set writes a new value. A disposed binding ignores writes.
func (b *Binding[T]) Set(value T) {
	if b.state != StateBound {
		return
	}
	b.write(value)
}

// Update reads the current value, applies fn, and writes the result.
func (b *Binding[T]) Update(fn func(T) T) {
	b.Set(fn(b.Peek()))
}

// Reset writes the initial value back.
func (b *Binding[T]) Reset() {
	b.Set(b.q.initial)
}

// IsSet reports whether the current value differs from the initial value.
func (b *Binding[T]) IsSet() bool {
	return !b.q.equal(b.Peek(), b.q.initial)
}

// Dispose stops URL synchronization for the field. The stored value is
// left in place. Dispose is idempotent.
func (b *Binding[T]) Dispose() {
	if b.state == StateDisposed {
		return
	}
	b.state = StateDisposed
	if b.effect != nil {
		b.effect.Dispose()
	}
	b.ctx.unregister(b.id)
}
