// ABOUTME: HTTP server exposing the session, dispatch flow, diagrams, and transcripts
// ABOUTME: chi router with request-id, recovery, heartbeat, and optional bearer auth

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/2389/mediflow/internal/auth"
	"github.com/2389/mediflow/internal/diagram"
	"github.com/2389/mediflow/internal/dispatch"
	"github.com/2389/mediflow/internal/session"
	"github.com/2389/mediflow/internal/transcript"
)

const defaultKeepAlive = 15 * time.Second

// Options configures a Server.
type Options struct {
	Session    *session.Store
	Dispatcher *dispatch.Dispatcher
	Renderer   *diagram.Renderer
	Exporter   *transcript.Exporter
	// Verifier enables bearer authentication. Nil serves the API openly.
	Verifier auth.TokenVerifier
	// KeepAlive is the interval between SSE comment pings.
	KeepAlive time.Duration
	Logger    *slog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	session    *session.Store
	dispatcher *dispatch.Dispatcher
	renderer   *diagram.Renderer
	exporter   *transcript.Exporter
	verifier   auth.TokenVerifier
	keepAlive  time.Duration
	logger     *slog.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	return &Server{
		session:    opts.Session,
		dispatcher: opts.Dispatcher,
		renderer:   opts.Renderer,
		exporter:   opts.Exporter,
		verifier:   opts.Verifier,
		keepAlive:  opts.KeepAlive,
		logger:     opts.Logger.With("component", "api"),
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Route("/api", func(r chi.Router) {
		if s.verifier != nil {
			r.Use(auth.Middleware(s.verifier, s.logger))
		}

		r.Get("/session", s.handleGetSession)

		r.Get("/messages", s.handleListMessages)
		r.Post("/messages", s.handleSubmit)
		r.Delete("/messages", s.handleClear)
		r.Post("/messages/regenerate", s.handleRegenerate)
		r.Post("/dispatches/{id}/cancel", s.handleCancel)

		r.Put("/credential", s.handleSetCredential)
		r.Delete("/credential", s.handleDeleteCredential)
		r.Put("/premium", s.handleSetPremium)
		r.Put("/preferences", s.handleSetPreferences)

		r.Get("/diagrams/{ref}", s.handleGetDiagram)
		r.Get("/diagrams/{ref}/export", s.handleExportDiagram)
		r.Get("/transcript", s.handleTranscript)

		r.Get("/events", s.handleEvents)
	})

	return r
}

// requestLogger logs each request through slog once it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()))
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into v, answering 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
