package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/urlstate/internal/config"
	"github.com/vango-dev/urlstate/internal/errors"
	"github.com/vango-dev/urlstate/pkg/history"
	"github.com/vango-dev/urlstate/pkg/urlparam"
	"github.com/vango-dev/urlstate/pkg/wshistory"
)

// Config configures a Server.
type Config struct {
	// Addr is the listen address.
	Addr string

	// Metrics exposes /metrics.
	Metrics bool

	// AllowedOrigins lists origins allowed to open /ws. Empty means same
	// origin only; "*" allows any.
	AllowedOrigins []string

	// DefaultMode is the navigation mode of the q, page and tags fields.
	DefaultMode history.Mode

	// Registry receives the server and history collectors. A fresh
	// registry is used when nil.
	Registry *prometheus.Registry

	// Logger is the server logger (default: slog.Default()).
	Logger *slog.Logger

	// ShutdownTimeout bounds graceful shutdown (default: 10s).
	ShutdownTimeout time.Duration
}

// ConfigFrom maps a loaded configuration file to a server Config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Addr:           cfg.Addr(),
		Metrics:        cfg.Server.Metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DefaultMode:    history.ParseMode(cfg.History.DefaultMode),
	}
}

// Server is the playground server.
type Server struct {
	config     Config
	router     chi.Router
	sessions   *SessionManager
	metrics    *Metrics
	history    *history.Metrics
	upgrader   websocket.Upgrader
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server and its routes.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	s := &Server{
		config:  cfg,
		metrics: NewMetrics(cfg.Registry),
		history: history.NewMetrics(history.WithRegistry(cfg.Registry)),
		logger:  cfg.Logger.With("component", "server"),
	}
	s.sessions = newSessionManager(s.metrics)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/encode", s.handleEncode)
		r.Post("/decode", s.handleDecode)
	})
	r.Get("/ws", s.handleWS)
	if s.config.Metrics {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.config.Registry, promhttp.HandlerOpts{}))
	}
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the session registry.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", "address", s.config.Addr, "metrics", s.config.Metrics)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		s.logger.Info("shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(sctx)
	}
}

// Shutdown closes all sessions, then stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sessions.Shutdown()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}
	s.logger.Info("server shutdown complete")
	return nil
}

// observe logs and measures each request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.request(route, strconv.Itoa(status), elapsed.Seconds())
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", elapsed,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.config.AllowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
	for _, allowed := range s.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// handleWS runs one session for the lifetime of the connection. The query
// of the /ws request is the page query the session starts from.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.metrics.wsError("upgrade")
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	id := uuid.NewString()
	logger := s.logger.With("session", id)
	conn := wshistory.New(ws, &url.URL{Path: "/", RawQuery: r.URL.RawQuery}, wshistory.WithLogger(logger))
	sess := newSession(id, conn, s.config.DefaultMode, logger,
		urlparam.WithLogger(logger),
		urlparam.WithMetrics(s.history),
	)
	s.sessions.add(sess)
	logger.Info("session started", "query", sess.Query())
	defer func() {
		s.sessions.remove(id)
		sess.close()
		logger.Info("session closed")
	}()

	if err := conn.Send(sess.snapshot()); err != nil {
		s.metrics.wsError("write")
		return
	}

	for {
		msg, err := conn.Read()
		if err != nil {
			if isFrameError(err) {
				s.metrics.wsError("invalid_message")
				reply := errorMessage(errors.New("E120").Wrap(err))
				if err := conn.Send(*reply); err != nil {
					return
				}
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.metrics.wsError("read")
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		s.metrics.message(msg.Type)
		if reply := sess.handle(msg); reply != nil {
			if reply.Type == wshistory.TypeError {
				s.metrics.wsError("invalid_message")
			}
			if err := conn.Send(*reply); err != nil {
				s.metrics.wsError("write")
				return
			}
		}
	}
}

// isFrameError reports whether err came from decoding a frame rather than
// from the connection.
func isFrameError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return stderrors.As(err, &syntaxErr) ||
		stderrors.As(err, &typeErr) ||
		stderrors.Is(err, io.ErrUnexpectedEOF)
}
