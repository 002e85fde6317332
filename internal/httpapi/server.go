// Package httpapi exposes a fetch.Controller over HTTP: the current state,
// a retry action, single-user lookups and a live state stream.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/IoannisAndreoulakis/APIcallTutorialApp/internal/fetch"
)

// DefaultRequestTimeout bounds every non-streaming request.
const DefaultRequestTimeout = 30 * time.Second

// Server serves the controller's state. It implements http.Handler.
type Server struct {
	ctrl    *fetch.Controller
	logger  *slog.Logger
	timeout time.Duration
	router  *chi.Mux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithRequestTimeout overrides DefaultRequestTimeout. The state stream is
// not subject to it.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// NewServer builds the router for ctrl.
func NewServer(ctrl *fetch.Controller, opts ...Option) *Server {
	s := &Server{
		ctrl:    ctrl,
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/state/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))

			r.Get("/health", s.handleHealth)
			r.Get("/state", s.handleState)
			r.Post("/fetch", s.handleFetch)
			r.Get("/users/{id}", s.handleUser)
		})
	})

	s.router = r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down. Request
// contexts derive from ctx, so open state streams end with it.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("httpapi: shutdown", "error", err)
		}
	})
	defer stop()

	s.logger.Info("httpapi: listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("httpapi: serve: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.ctrl.State())
}

// handleFetch is the retry action. The cycle outlives the request.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	s.ctrl.FetchUsers(context.WithoutCancel(r.Context()))
	s.ctrl.Flush()
	respondJSON(w, http.StatusAccepted, s.ctrl.State())
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "id must be an integer", err)
		return
	}

	u, ok := s.ctrl.State().User(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("user %d not found", id), nil)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// handleStream sends the current state, then every change, until the client
// goes away or the controller closes.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sw := newSSEWriter(w)
	sw.init()

	for st := range s.ctrl.Store().Watch(r.Context(), 0) {
		if err := sw.writeState(st); err != nil {
			s.logger.Debug("httpapi: stream closed", "error", err)
			return
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]string{
		"error": message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}

// requestLogger logs one record per request with the chi request ID.
func requestLogger(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				l.LogAttrs(r.Context(), slog.LevelInfo, "httpapi: request",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Int("status", ww.Status()),
					slog.Int("bytes", ww.BytesWritten()),
					slog.Duration("elapsed", time.Since(start)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
