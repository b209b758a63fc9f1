package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/skillcoin/learn-engine/internal/auth"
	"github.com/skillcoin/learn-engine/internal/catalog"
	"github.com/skillcoin/learn-engine/internal/certificate"
	"github.com/skillcoin/learn-engine/internal/config"
	"github.com/skillcoin/learn-engine/internal/jobs"
	"github.com/skillcoin/learn-engine/internal/profile"
	"github.com/skillcoin/learn-engine/internal/progress"
	"github.com/skillcoin/learn-engine/internal/storage"
	"github.com/skillcoin/learn-engine/internal/store"
	"github.com/skillcoin/learn-engine/internal/subscription"
)

// Server represents the HTTP API server
type Server struct {
	config   config.ServerConfig
	router   *chi.Mux
	auth     *auth.Service
	tracker  *progress.Tracker
	issuer   *certificate.Issuer
	jobs     *jobs.Service
	profiles *profile.Service
	usage    *subscription.Service
	catalog  *catalog.Catalog
	store    store.Store
	users    storage.UserRepository
}

// Deps bundles the services the server exposes
type Deps struct {
	Auth     *auth.Service
	Tracker  *progress.Tracker
	Issuer   *certificate.Issuer
	Jobs     *jobs.Service
	Profiles *profile.Service
	Usage    *subscription.Service
	Catalog  *catalog.Catalog
	Store    store.Store
	Users    storage.UserRepository
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		config:   cfg,
		auth:     deps.Auth,
		tracker:  deps.Tracker,
		issuer:   deps.Issuer,
		jobs:     deps.Jobs,
		profiles: deps.Profiles,
		usage:    deps.Usage,
		catalog:  deps.Catalog,
		store:    deps.Store,
		users:    deps.Users,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health checks (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/certificates/verify/{verificationId}", s.handleVerifyCertificate)

		// Authenticated endpoints
		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/me", s.handleMe)

			r.Route("/tracks", func(r chi.Router) {
				r.Get("/", s.handleListTracks)
				r.Get("/{id}", s.handleGetTrack)
				r.Get("/{id}/lessons", s.handleListTrackLessons)
			})

			r.Post("/lessons/{id}/complete", s.handleCompleteLesson)
			r.Get("/progress", s.handleGetProgress)

			r.Route("/certificates", func(r chi.Router) {
				r.Get("/", s.handleListCertificates)
				r.Post("/{id}/mint", s.handleMintNFT)
				r.Get("/{id}/mint/ws", s.handleMintWS)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.handleListJobs)
				r.Get("/{id}", s.handleGetJob)
				r.Post("/{id}/apply", s.handleApplyToJob)
			})

			r.Get("/applications", s.handleListApplications)
		})
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
