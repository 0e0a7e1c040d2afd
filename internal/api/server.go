// Package api provides the HTTP API server and handlers for the deck service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/gwentdecks/decks-server/internal/ratelimit"
	"github.com/gwentdecks/decks-server/internal/sse"
	"github.com/gwentdecks/decks-server/internal/store"
)

// IndexStats reports on the public deck search index.
type IndexStats interface {
	DocumentCount() (uint64, error)
}

// Options configures the HTTP layer.
type Options struct {
	CORSAllowedOrigins []string
	RateLimitRPS       float64 // 0 disables rate limiting
	RateLimitBurst     int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	api        huma.API
	router     *chi.Mux
	services   *Services
	tree       store.Tree
	index      IndexStats
	sseManager *sse.Manager
	sseHandler *sse.Handler
	limiter    *ratelimit.KeyedRateLimiter
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
// index may be nil when search is disabled.
func NewServer(
	tree store.Tree,
	services *Services,
	index IndexStats,
	sseManager *sse.Manager,
	sseHandler *sse.Handler,
	opts Options,
	logger *slog.Logger,
) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		services:   services,
		tree:       tree,
		index:      index,
		sseManager: sseManager,
		sseHandler: sseHandler,
		logger:     logger,
	}
	if opts.RateLimitRPS > 0 {
		s.limiter = ratelimit.New(opts.RateLimitRPS, opts.RateLimitBurst)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Gwent Decks API", "1.0.0")
	humaConfig.Info.Description = "Deck building, publishing and live deck feeds for Gwent"
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerDeckRoutes()
	s.registerPublicDeckRoutes()
	s.registerCardRoutes()
	s.registerStreamRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, used to dump the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// Shutdown releases the server's background resources.
func (s *Server) Shutdown() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}
	return nil
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderUserID, "Last-Event-ID"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(s.identityMiddleware)
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}

// requestLogger logs each completed request at debug, and at warn for 5xx.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
