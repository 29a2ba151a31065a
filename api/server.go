// Package api exposes the circulation service over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"library-circulation/library"
)

// Options configures the HTTP surface.
type Options struct {
	CORSOrigins []string
	LoginRate   float64
	LoginBurst  int
	// TrustProxy takes the client address from X-Forwarded-For/X-Real-IP.
	// Enable it only behind a proxy that overwrites those headers.
	TrustProxy bool
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	manager   *library.LibraryManager
	validator *Validator
	limiter   *RateLimiter
	opts      Options
	router    *chi.Mux
	logger    *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(manager *library.LibraryManager, opts Options, logger *slog.Logger) *Server {
	if opts.LoginRate <= 0 {
		opts.LoginRate = 1
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 5
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		manager:   manager,
		validator: NewValidator(),
		limiter:   NewRateLimiter(opts.LoginRate, opts.LoginBurst),
		opts:      opts,
		router:    chi.NewRouter(),
		logger:    logger,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Close stops background work. Call it after the HTTP server has shut down.
func (s *Server) Close() {
	s.limiter.Stop()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if s.opts.TrustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(RateLimitMiddleware(s.limiter, s.logger)).Post("/login", s.handleLogin)
			r.With(s.requireAuth).Post("/logout", s.handleLogout)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/me", s.handleMe)
			r.Get("/books", s.handleBrowseBooks)
			r.Get("/loans/mine", s.handleMyLoans)

			// Staff desk.
			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Get("/books/all", s.handleListAllBooks)
				r.Get("/books/issuable", s.handleIssuableBooks)
				r.Post("/books", s.handleAddBook)
				r.Get("/students", s.handleSearchStudents)
				r.Get("/loans", s.handleListLoans)
				r.Post("/loans", s.handleIssueLoan)
				r.Delete("/loans/{id}", s.handleReturnLoan)
				r.Post("/loans/{id}/fine", s.handleApplyFine)
				r.Get("/stats", s.handleStats)
				r.Get("/consistency", s.handleConsistency)
			})
		})
	})
}
