// Package api provides the HTTP API server and handlers for the reading engine.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/readtrack-server/internal/metrics"
	"github.com/listenupapp/readtrack-server/internal/ratelimit"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// Config holds the transport settings for the server.
type Config struct {
	CORSOrigins   []string
	ProgressRPS   float64
	ProgressBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services        *Services
	metrics         *metrics.Metrics
	router          *chi.Mux
	api             huma.API
	progressLimiter *ratelimit.KeyedRateLimiter
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(cfg Config, services *Services, m *metrics.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services:        services,
		metrics:         m,
		router:          router,
		progressLimiter: newProgressLimiter(cfg.ProgressRPS, cfg.ProgressBurst),
		logger:          logger,
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig("ReadTrack API", Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, mainly for tests.
func (s *Server) API() huma.API {
	return s.api
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.progressLimiter.Stop()
}

func (s *Server) setupMiddleware(cfg Config) {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	s.router.Use(requestLogger(s.logger))
	s.router.Use(authMiddleware(s.services.Tokens))
}

func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerSessionRoutes()
	s.registerProgressRoutes()
	s.registerGoalRoutes()
	s.registerBookmarkRoutes()

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
}
