package urlparam

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/params"
	"github.com/vango-dev/urlstate/pkg/querystring"
	"github.com/vango-dev/urlstate/pkg/reactive"
)

const tracerName = "github.com/vango-dev/urlstate/pkg/urlparam"

type contextConfig struct {
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	metrics        *history.Metrics
	runtime        *reactive.Runtime
	initialQuery   *string
}

// Option configures a Context.
type Option func(*contextConfig)

// WithLogger sets the logger for the context, its store runtime and its
// history bridge.
func WithLogger(l *slog.Logger) Option {
	return func(c *contextConfig) {
		c.logger = l
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *contextConfig) {
		c.tracerProvider = tp
	}
}

// WithMetrics records history navigation metrics.
func WithMetrics(m *history.Metrics) Option {
	return func(c *contextConfig) {
		c.metrics = m
	}
}

// WithRuntime runs the params store on an existing reactive runtime, so
// host effects and bindings share one tracking context.
func WithRuntime(rt *reactive.Runtime) Option {
	return func(c *contextConfig) {
		c.runtime = rt
	}
}

// WithInitialQuery seeds the store from query instead of the history's
// current location.
func WithInitialQuery(query string) Option {
	return func(c *contextConfig) {
		c.initialQuery = &query
	}
}

// Context is the page-scoped home of the params store and the history
// bridge. Every Binding is created against a Context; independent Contexts
// never share state.
type Context struct {
	rt     *reactive.Runtime
	store  *reactive.Store
	bridge *history.Bridge
	logger *slog.Logger
	tracer trace.Tracer

	// synced is the store as of the last URL sync, the query the current
	// history entry displays.
	synced *params.Map

	stop     func()
	bindings map[uint64]disposer
	nextID   uint64
	inbound  int
	closed   bool
}

type disposer interface {
	Dispose()
}

// New creates a Context over h. The store is seeded from the query of
// h.Location(). If h is already a *history.Bridge it is used as is;
// otherwise it is wrapped.
func New(h history.History, opts ...Option) *Context {
	config := contextConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&config)
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}
	if config.tracerProvider == nil {
		config.tracerProvider = otel.GetTracerProvider()
	}
	if config.runtime == nil {
		config.runtime = reactive.NewRuntime(reactive.WithLogger(config.logger))
	}

	query := ""
	if config.initialQuery != nil {
		query = *config.initialQuery
	} else if loc := h.Location(); loc != nil {
		query = loc.RawQuery
	}

	bridge, ok := h.(*history.Bridge)
	if !ok {
		bridge = history.Observe(h,
			history.WithLogger(config.logger),
			history.WithMetrics(config.metrics),
		)
	}

	c := &Context{
		rt:       config.runtime,
		store:    config.runtime.NewStore(querystring.Decode(query)),
		bridge:   bridge,
		logger:   config.logger.With("component", "urlparam"),
		tracer:   config.tracerProvider.Tracer(tracerName),
		bindings: make(map[uint64]disposer),
	}
	c.synced = c.store.Raw()
	c.stop = bridge.OnURLChange(c.handleChange)
	return c
}

// Store returns the params store.
func (c *Context) Store() *reactive.Store {
	return c.store
}

// Runtime returns the reactive runtime the store runs on.
func (c *Context) Runtime() *reactive.Runtime {
	return c.rt
}

// Bridge returns the history bridge. Code outside this package should
// navigate through it so the store hears about every URL change.
func (c *Context) Bridge() *history.Bridge {
	return c.bridge
}

// Query returns the store encoded as a query string.
func (c *Context) Query() string {
	return querystring.Encode(c.store.Raw())
}

// Merge replaces the store contents with next: keys in next are assigned,
// keys missing from next are removed. Bindings refresh their view without
// writing the URL back.
func (c *Context) Merge(next *params.Map) {
	_, span := c.tracer.Start(context.Background(), "urlparam.merge",
		trace.WithAttributes(attribute.Int("urlparam.keys", next.Len())))
	defer span.End()

	c.inbound++
	defer func() { c.inbound-- }()

	changed := c.store.Replace(next)
	c.synced = c.store.Raw()
	span.SetAttributes(attribute.Bool("urlparam.changed", changed))
}

// Close disposes every binding and stops listening to the bridge. The
// store keeps its contents. Close is idempotent.
func (c *Context) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.stop != nil {
		c.stop()
	}
	for id, b := range c.bindings {
		b.Dispose()
		delete(c.bindings, id)
	}
}

// Closed reports whether Close was called.
func (c *Context) Closed() bool {
	return c.closed
}

func (c *Context) handleChange(ch history.Change) {
	if c.closed {
		return
	}
	if ch.Source == history.SourcePop {
		q, ok := ch.State.Query()
		if !ok {
			c.logger.Debug("popstate without query payload ignored")
			return
		}
		c.Merge(params.MapFromAny(q))
		return
	}
	if ch.URL == nil {
		return
	}
	c.Merge(querystring.Decode(ch.URL.RawQuery))
}

func (c *Context) register(d disposer) uint64 {
	c.nextID++
	c.bindings[c.nextID] = d
	return c.nextID
}

func (c *Context) unregister(id uint64) {
	delete(c.bindings, id)
}
