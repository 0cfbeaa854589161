package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/PortNumber53/trialgate/internal/config"
	"github.com/PortNumber53/trialgate/internal/handlers"
	requesttracking "github.com/PortNumber53/trialgate/internal/middleware"
)

const (
	notFoundBody     = "Page Not Found."
	storeUnboundBody = "KV storage is not bound."
)

// Entitlements is the behaviour the routes need from the entitlement service.
type Entitlements interface {
	handlers.EventApplier
	handlers.AccessChecker
	handlers.PageVisitor
}

// Deps are the collaborators wired into the router. A nil Entitlements means
// no record store is bound and every request is answered with 500.
type Deps struct {
	Entitlements Entitlements
	Interpreter  handlers.EventInterpreter
	Checkout     handlers.CheckoutLinker
	Logger       zerolog.Logger
}

// Server wraps an http.Server with convenience helpers for startup/shutdown.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New constructs an HTTP server using the provided configuration and collaborators.
func New(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger.With().Str("component", "http").Logger()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requesttracking.NewRequestTracker(logger).Middleware())
	router.Use(middleware.Recoverer)

	if deps.Entitlements == nil {
		logger.Error().Msg("no record store bound; all requests will fail")
		router.Use(storeUnbound)
	}

	router.NotFound(notFound)
	router.MethodNotAllowed(notFound)

	router.Get("/healthz", handlers.Health(cfg.StoreDriver))
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if deps.Entitlements != nil {
		pages := handlers.NewPages(deps.Entitlements, deps.Checkout, cfg.AppEmbedURL, cfg.TrialDuration, logger)
		router.Get("/", pages.Home())
		router.Get("/checkout", pages.CheckoutRedirect())
		router.Get("/success", pages.Success())

		router.Post("/api/webhook", handlers.Webhook(deps.Interpreter, deps.Entitlements, logger))

		router.Group(func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: cfg.CORSAllowedOrigins,
				AllowedMethods: []string{http.MethodPost, http.MethodOptions},
				AllowedHeaders: []string{"Origin", "Content-Type"},
				MaxAge:         int((12 * time.Hour).Seconds()),
			}))
			r.Post("/api/check-access", handlers.CheckAccess(deps.Entitlements, logger))
			r.Options("/api/check-access", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		})
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func notFound(w http.ResponseWriter, r *http.Request) {
	http.Error(w, notFoundBody, http.StatusNotFound)
}

func storeUnbound(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, storeUnboundBody, http.StatusInternalServerError)
	})
}
