// Package api provides the HTTP API server and handlers for BooksSwap.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/booksswap/booksswap-server/internal/service"
	"github.com/booksswap/booksswap-server/internal/sse"
)

const (
	apiPrefix  = "/api/v1"
	eventsPath = apiPrefix + "/events"
)

// Services groups the business services used by the API server.
type Services struct {
	Auth      *service.AuthService
	User      *service.UserService
	Book      *service.BookService
	Swap      *service.SwapService
	Community *service.CommunityService
	Billing   *service.BillingService
}

// Pinger reports whether the entity store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IndexStats reports the size of the search index.
type IndexStats interface {
	DocumentCount() (uint64, error)
}

// Options carries the optional collaborators of a Server.
type Options struct {
	// SSE enables the event stream at /api/v1/events.
	SSE *sse.Manager
	// Search is checked by /health when set.
	Search IndexStats
	// Metrics is served at /metrics and wraps every request when set.
	Metrics MetricsProvider
	// AuthRateLimiter limits /api/v1/auth requests per client IP.
	AuthRateLimiter *RateLimiter
	// AllowedOrigins configures CORS. Empty disables the CORS middleware.
	AllowedOrigins []string
}

// MetricsProvider exposes request instrumentation and a scrape handler.
// *metrics.Metrics satisfies it.
type MetricsProvider interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store           Pinger
	services        *Services
	sseManager      *sse.Manager
	search          IndexStats
	metrics         MetricsProvider
	authRateLimiter *RateLimiter
	router          *chi.Mux
	api             huma.API
	logger          *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st Pinger, services *Services, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		store:           st,
		services:        services,
		sseManager:      opts.SSE,
		search:          opts.Search,
		metrics:         opts.Metrics,
		authRateLimiter: opts.AuthRateLimiter,
		router:          chi.NewRouter(),
		logger:          logger,
	}

	s.setupMiddleware(opts.AllowedOrigins)

	humaConfig := huma.DefaultConfig("BooksSwap API", "1.0.0")
	humaConfig.Info.Description = "Local book swapping: listings, swap requests, badges and subscriptions."
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API exposes the huma API, mainly for OpenAPI generation.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures the middleware stack.
func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.metrics != nil {
		s.router.Use(s.metrics.Middleware)
	}
	if len(allowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	s.router.Use(RateLimitMiddleware(s.authRateLimiter, apiPrefix+"/auth/", s.logger))
	if s.services != nil && s.services.Auth != nil {
		s.router.Use(authMiddleware(s.services.Auth))
	}
}

func (s *Server) registerRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerSwapRoutes()
	s.registerCommunityRoutes()
	s.registerBillingRoutes()

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}
	if s.sseManager != nil {
		s.router.Get(eventsPath, sse.NewHandler(s.sseManager, userFromContext, s.logger).ServeHTTP)
	}
}

// requestLogger logs one line per request with its ID, status and latency.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
