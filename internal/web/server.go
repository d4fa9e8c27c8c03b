// Package web provides the HTTP API and admin pages of the station photo
// inbox.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/stationinbox/internal/config"
	"github.com/JonMunkholm/stationinbox/internal/core"
	"github.com/JonMunkholm/stationinbox/internal/web/middleware"
)

// maxJSONBody bounds the JSON request bodies; photos are limited by the storage.
const maxJSONBody = 1 << 20

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Server is the HTTP server of the inbox API.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	health  HealthCheck

	limiters []*rateLimiter
	stop     context.CancelFunc
}

// NewServer creates a Server. health may be nil.
func NewServer(service *core.Service, cfg *config.Config, health HealthCheck) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
		health:  health,
		stop:    cancel,
	}
	s.setupMiddleware()
	s.setupRoutes()
	for _, rl := range s.limiters {
		go rl.run(ctx)
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	if s.cfg.Server.RequestTimeout > 0 {
		s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
	}
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
	s.router.Use(requestMetadata)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newLimiter(s.cfg.Rate.RequestsPerMinute).middleware)
	}
}

func (s *Server) newLimiter(perMinute int) *rateLimiter {
	rl := newRateLimiter(perMinute)
	s.limiters = append(s.limiters, rl)
	return rl
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	auth := middleware.JWTAuth(s.cfg.Security.JWTSecret)

	s.router.Route("/api", func(r chi.Router) {
		// Anonymous
		r.Get("/publicInbox", s.handlePublicInbox)
		r.Get("/publicInbox.geojson", s.handlePublicInboxGeoJSON)

		// Photographers
		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(s.newLimiter(s.cfg.Rate.UploadLimit).middleware)
				}
				r.Post("/photoUpload", s.handlePhotoUpload)
				r.Post("/photoUploadMultipartFormdata", s.handlePhotoUploadMultipart)
			})
			r.Post("/reportProblem", s.handleReportProblem)
			r.Post("/userInbox", s.handleUserInbox)
		})

		// Administrators
		r.Group(func(r chi.Router) {
			r.Use(auth, middleware.RequireAdmin)
			r.Get("/adminInbox", s.handleAdminInbox)
			r.Post("/adminInbox", s.handleAdminCommand)
			r.Get("/adminInboxCount", s.handleAdminInboxCount)
			r.Get("/nextZ", s.handleNextZ)
		})
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth, middleware.RequireAdmin)
		r.Get("/admin/inbox", s.handleAdminInboxPage)
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// The admin page only uses an inline stylesheet and links out to photos.
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'; img-src 'self' https:; frame-ancestors 'none'")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	slog.Debug("http error", "status", status, "message", message)
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			slog.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
