package server

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/encoding"
	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/urlparam"
	"github.com/vango-dev/urlstate/pkg/wshistory"
)

// field is a declared binding driven by client "set" messages.
type field interface {
	set(raw json.RawMessage) error
	value() any
}

type boundField[T any] struct {
	b *urlparam.Binding[T]
}

func (f boundField[T]) set(raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	f.b.Set(v)
	return nil
}

func (f boundField[T]) value() any {
	return f.b.Peek()
}

func declare[T any](s *Session, name string, b *urlparam.Binding[T]) {
	s.fields[name] = boundField[T]{b: b}
}

// Session is one WebSocket connection with its own params store.
type Session struct {
	ID        string
	CreatedAt time.Time

	conn   *wshistory.Conn
	ctx    *urlparam.Context
	fields map[string]field
	logger *slog.Logger
}

func newSession(id string, conn *wshistory.Conn, mode history.Mode, logger *slog.Logger, opts ...urlparam.Option) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		conn:      conn,
		ctx:       urlparam.New(conn, opts...),
		fields:    make(map[string]field),
		logger:    logger,
	}

	withMode := func(q *urlparam.Query[string]) *urlparam.Query[string] {
		if mode == history.ModePush {
			return q.UsePush()
		}
		return q
	}

	declare(s, "q", withMode(urlparam.NewQuery("")).Bind(s.ctx, "q"))
	declare(s, "page", withMode(urlparam.NewQuery("1")).Bind(s.ctx, "page"))

	tags := urlparam.NewQuery([]string(nil)).
		As("t").
		WithEquals(slices.Equal[[]string])
	if mode == history.ModePush {
		tags.UsePush()
	}
	declare(s, "tags", tags.Bind(s.ctx, "tags"))

	declare(s, "filter", urlparam.NewQuery("").
		Encoding(encoding.Base64URL).
		UsePush().
		Bind(s.ctx, "filter"))

	return s
}

// Fields returns the declared field names, sorted.
func (s *Session) Fields() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Query returns the session's store encoded as a query string.
func (s *Session) Query() string {
	return s.ctx.Query()
}

// snapshot reports the current field values and query.
func (s *Session) snapshot() wshistory.Message {
	values := make(map[string]any, len(s.fields))
	for name, f := range s.fields {
		values[name] = f.value()
	}
	data, err := json.Marshal(values)
	if err != nil {
		s.logger.Warn("snapshot not serializable", "error", err)
	}
	return wshistory.Message{
		Type:    wshistory.TypeSnapshot,
		Session: s.ID,
		Query:   s.ctx.Query(),
		Value:   data,
	}
}

// handle applies one client message and returns the reply, if any.
func (s *Session) handle(msg wshistory.Message) *wshistory.Message {
	switch msg.Type {
	case wshistory.TypePopState:
		s.conn.HandlePop(msg)
		return nil

	case wshistory.TypeSet:
		f, ok := s.fields[msg.Field]
		if !ok {
			return errorMessage(errors.New("E120").
				WithDetail("field " + quote(msg.Field) + " is not declared"))
		}
		if err := f.set(msg.Value); err != nil {
			return errorMessage(errors.New("E120").
				WithDetail("value for field " + quote(msg.Field) + " does not match its type").
				Wrap(err))
		}
		return nil

	case wshistory.TypeSync:
		snap := s.snapshot()
		return &snap

	default:
		return errorMessage(errors.New("E120").
			WithDetail("message type " + quote(string(msg.Type)) + " is not supported"))
	}
}

func (s *Session) close() {
	s.ctx.Close()
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close", "error", err)
	}
}

func errorMessage(e *errors.Error) *wshistory.Message {
	return &wshistory.Message{
		Type:  wshistory.TypeError,
		Code:  e.Code,
		Error: e.FormatCompact(),
	}
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// SessionManager tracks open sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	metrics  *Metrics
}

func newSessionManager(m *Metrics) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		metrics:  m,
	}
}

func (m *SessionManager) add(s *Session) {
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	m.metrics.sessionOpened()
}

func (m *SessionManager) remove(id string) {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		m.metrics.sessionClosed()
	}
}

// Get returns the session with the given id.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Shutdown closes every session's socket. Read loops then exit and tear
// their sessions down.
func (m *SessionManager) Shutdown() {
	m.mu.RLock()
	conns := make([]*wshistory.Conn, 0, len(m.sessions))
	for _, s := range m.sessions {
		conns = append(conns, s.conn)
	}
	m.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
