// Package wshistory implements history.History over a WebSocket to a thin
// browser client.
//
// The server keeps the authoritative location and state. PushState and
// ReplaceState update them and forward the write to the client, which
// applies it with the browser History API. Back/forward navigation in the
// browser comes back as a "popstate" message and is reported to the
// registered pop handlers (normally a history.Bridge).
//
// Messages are JSON objects:
//
//	server -> client  {"type":"pushState","state":{...},"url":"?q=go"}
//	server -> client  {"type":"replaceState","state":{...},"url":"/search"}
//	client -> server  {"type":"popstate","state":{...},"url":"https://host/search?q=go"}
package wshistory

import (
	"encoding/json"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/urlstate/pkg/history"
)

// MessageType identifies a wire message.
type MessageType string

const (
	TypePushState    MessageType = "pushState"
	TypeReplaceState MessageType = "replaceState"
	TypePopState     MessageType = "popstate"
	TypeSet          MessageType = "set"
	TypeSync         MessageType = "sync"
	TypeSnapshot     MessageType = "snapshot"
	TypeError        MessageType = "error"
)

// Message is one frame on the wire. Fields not used by a type are omitted.
type Message struct {
	Type    MessageType     `json:"type"`
	Session string          `json:"session,omitempty"`
	State   history.State   `json:"state,omitempty"`
	URL     string          `json:"url,omitempty"`
	Field   string          `json:"field,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Query   string          `json:"query,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Socket is the subset of *websocket.Conn the adapter needs.
type Socket interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Socket = (*websocket.Conn)(nil)

// DefaultWriteTimeout bounds a single outbound frame.
const DefaultWriteTimeout = 10 * time.Second

// Conn is a History backed by a WebSocket client.
type Conn struct {
	ws           Socket
	writeMu      sync.Mutex
	writeTimeout time.Duration

	mu    sync.Mutex
	loc   *url.URL
	state history.State
	onPop []func(history.State, *url.URL)

	logger *slog.Logger
}

// Option configures a Conn.
type Option func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithWriteTimeout sets the per-frame write deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.writeTimeout = d
	}
}

// New wraps ws. location is the page URL the client reported when it
// connected.
func New(ws Socket, location *url.URL, opts ...Option) *Conn {
	if location == nil {
		location = &url.URL{Path: "/"}
	}
	loc := *location
	c := &Conn{
		ws:           ws,
		writeTimeout: DefaultWriteTimeout,
		loc:          &loc,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "wshistory")
	return c
}

// ReplaceState implements history.History.
func (c *Conn) ReplaceState(state history.State, _ string, rawURL string) {
	c.apply(state, rawURL)
	c.send(Message{Type: TypeReplaceState, State: state, URL: rawURL})
}

// PushState implements history.History.
func (c *Conn) PushState(state history.State, _ string, rawURL string) {
	c.apply(state, rawURL)
	c.send(Message{Type: TypePushState, State: state, URL: rawURL})
}

// State implements history.History.
func (c *Conn) State() history.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Location implements history.History.
func (c *Conn) Location() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	u := *c.loc
	return &u
}

// OnPopState implements history.PopSource.
func (c *Conn) OnPopState(fn func(history.State, *url.URL)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPop = append(c.onPop, fn)
}

// Read blocks for the next client message.
func (c *Conn) Read() (Message, error) {
	var msg Message
	err := c.ws.ReadJSON(&msg)
	return msg, err
}

// Send writes msg to the client.
func (c *Conn) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteJSON(msg)
}

// HandlePop applies a popstate message from the client and notifies the
// pop handlers.
func (c *Conn) HandlePop(msg Message) {
	c.mu.Lock()
	if msg.URL != "" {
		c.loc = resolve(c.loc, msg.URL)
	}
	c.state = msg.State
	loc := *c.loc
	handlers := make([]func(history.State, *url.URL), len(c.onPop))
	copy(handlers, c.onPop)
	c.mu.Unlock()

	for _, fn := range handlers {
		fn(msg.State, &loc)
	}
}

// Close closes the socket.
func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) apply(state history.State, rawURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loc = resolve(c.loc, rawURL)
	c.state = state
}

func (c *Conn) send(msg Message) {
	if err := c.Send(msg); err != nil {
		c.logger.Warn("history write not delivered", "type", string(msg.Type), "error", err)
	}
}

func resolve(base *url.URL, rawURL string) *url.URL {
	ref, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		u := *base
		return &u
	}
	return base.ResolveReference(ref)
}
