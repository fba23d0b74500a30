// Package api provides the HTTP maintenance API of the ClipBox daemon.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clipbox/clipbox/internal/ratelimit"
	"github.com/clipbox/clipbox/internal/service"
	"github.com/clipbox/clipbox/internal/sse"
)

// ClipSearcher finds clips by free text.
type ClipSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
	DocumentCount() (uint64, error)
}

// Options holds the server's dependencies.
type Options struct {
	Coordinator *service.Coordinator
	Capturer    ClipCapturer // Optional
	Search      ClipSearcher // Optional
	SSEManager  *sse.Manager // Optional
	// Limiter throttles maintenance requests per client. Nil disables it.
	Limiter *ratelimit.Keyed
	// AllowedOrigins for CORS. Empty allows any origin.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	coordinator *service.Coordinator
	capturer    ClipCapturer
	search      ClipSearcher
	sseManager  *sse.Manager
	limiter     *ratelimit.Keyed
	router      *chi.Mux
	api         huma.API
	logger      *slog.Logger
}

// NewServer creates the HTTP server with every route registered.
func NewServer(opts Options) *Server {
	s := &Server{
		coordinator: opts.Coordinator,
		capturer:    opts.Capturer,
		search:      opts.Search,
		sseManager:  opts.SSEManager,
		limiter:     opts.Limiter,
		router:      chi.NewRouter(),
		logger:      opts.Logger,
	}

	s.setupMiddleware(opts.AllowedOrigins)

	humaConfig := huma.DefaultConfig("ClipBox API", "1.0.0")
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerMaintenanceRoutes()
	s.registerSyncRoutes()
	s.registerClipRoutes()
	if s.capturer != nil {
		s.registerCaptureRoutes()
	}

	if s.sseManager != nil {
		s.router.Get("/api/v1/events", sse.NewHandler(s.sseManager, s.logger).ServeHTTP)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	s.router.Use(requestLogger(s.logger))
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
